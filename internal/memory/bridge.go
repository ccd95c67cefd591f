package memory

import "time"

// RelationType is the typed relationship a bridge represents.
type RelationType string

const (
	RelationExtends     RelationType = "extends"
	RelationContradicts RelationType = "contradicts"
	RelationDepends     RelationType = "depends"
	RelationReplaces    RelationType = "replaces"
	RelationChildOf     RelationType = "child_of"
	RelationSibling     RelationType = "sibling"
)

// BridgeStatus reflects the decayed health of a bridge.
type BridgeStatus string

const (
	BridgeActive  BridgeStatus = "active"
	BridgeWeak    BridgeStatus = "weak"
	BridgeInvalid BridgeStatus = "invalid"
)

// Producer tags who created a bridge, used by gossip/decay/merge logic.
type Producer string

const (
	ProducerThreadManager Producer = "thread_manager"
	ProducerBirth         Producer = "birth"
	ProducerGossipV2      Producer = "gossip_v2"
	ProducerUser          Producer = "user"
)

// Bridge is a typed weighted edge between two threads.
type Bridge struct {
	ID               string
	SourceID         string
	TargetID         string
	Relation         RelationType
	Status           BridgeStatus
	Weight           float64
	Confidence       float64
	Reason           string
	SharedConcepts   []string
	UseCount         int64
	PropagatedFrom   *string
	PropagationDepth int
	CreatedBy        Producer
	CreatedAt        time.Time
	LastReinforced   *time.Time
}

// StatusForWeight derives the bridge status from its weight per spec §3:
// weight < 0.05 => invalid; 0.05 <= weight < 0.3 with an active producer
// downgrades to weak; otherwise unchanged.
func StatusForWeight(weight float64, current BridgeStatus) BridgeStatus {
	switch {
	case weight < 0.05:
		return BridgeInvalid
	case weight < 0.3:
		if current == BridgeActive {
			return BridgeWeak
		}
		return current
	default:
		return current
	}
}

// ReferenceTime returns the timestamp decay should measure age from:
// last_reinforced if present, otherwise created_at.
func (b *Bridge) ReferenceTime() time.Time {
	if b.LastReinforced != nil {
		return *b.LastReinforced
	}
	return b.CreatedAt
}
