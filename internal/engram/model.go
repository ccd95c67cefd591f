// Package engram implements the retrieval oracle (spec §4.3): a
// nine-validator consensus scorer that decides which threads to inject
// into the next prompt.
package engram

import (
	"time"

	"github.com/rpggio/memengine/internal/memory"
)

// Vote is one validator's judgment on one candidate thread.
type Vote struct {
	Pass       bool
	Confidence float64
}

// NeutralVote is returned when a validator's required signal is absent —
// never a penalty, per spec §4.3.
func NeutralVote(confidence float64) Vote {
	return Vote{Pass: true, Confidence: confidence}
}

// QueryContext carries everything a validator might need about the
// current retrieval request beyond the candidate thread itself.
type QueryContext struct {
	QueryEmbedding []float32
	QueryTopics    []string
	QueryConcepts  []string
	LabelHint      string
	FocusTopics    []string
	ActiveBridges  []*memory.Bridge
	Now            time.Time
}

// Validator is the open interface spec §9 names — the validator set is
// extensible, not a closed nine-element enum.
type Validator interface {
	Name() string
	Vote(qc QueryContext, th *memory.Thread) Vote
}

// InjectionDecision is Phase 3's per-candidate verdict.
type InjectionDecision string

const (
	StrongInject InjectionDecision = "strong_inject"
	WeakInject   InjectionDecision = "weak_inject"
	Skip         InjectionDecision = "skip"
)

// Scored pairs a candidate thread with its consensus outcome.
type Scored struct {
	Thread        *memory.Thread
	WeightedScore float64
	PassCount     int
	Decision      InjectionDecision
	Votes         []Vote
}
