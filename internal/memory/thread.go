// Package memory defines the core entities of the cognitive-memory graph:
// threads, their messages, and the bridges that connect them.
package memory

import "time"

// ThreadStatus is the lifecycle state of a thread.
type ThreadStatus string

const (
	StatusActive    ThreadStatus = "active"
	StatusSuspended ThreadStatus = "suspended"
	StatusArchived  ThreadStatus = "archived"
)

// OriginType records what kind of event created a thread.
type OriginType string

const (
	OriginPrompt       OriginType = "prompt"
	OriginFileRead     OriginType = "file_read"
	OriginFileWrite    OriginType = "file_write"
	OriginTask         OriginType = "task"
	OriginFetch        OriginType = "fetch"
	OriginResponse     OriginType = "response"
	OriginCommand      OriginType = "command"
	OriginSplit        OriginType = "split"
	OriginReactivation OriginType = "reactivation"
)

// Bag size caps enforced after any merge or update (spec §3 invariants).
const (
	MaxTopics   = 10
	MaxLabels   = 5
	MaxConcepts = 25
)

// WorkContext tracks the files and actions associated with a thread's
// ongoing work, plus a freshness signal derived from its last update.
type WorkContext struct {
	Files     []string  `json:"files,omitempty"`
	Actions   []string  `json:"actions,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FreshnessFactor buckets recency of work into the scale used by the
// TemporalProximity validator: <2h -> 1.0, 2-8h -> 0.5, 8-24h -> 0.1, else 0.
func (wc *WorkContext) FreshnessFactor(now time.Time) float64 {
	if wc == nil || wc.UpdatedAt.IsZero() {
		return 0
	}
	age := now.Sub(wc.UpdatedAt)
	switch {
	case age < 2*time.Hour:
		return 1.0
	case age < 8*time.Hour:
		return 0.5
	case age < 24*time.Hour:
		return 0.1
	default:
		return 0.0
	}
}

// ImportanceBoost returns the auto-importance contribution of this work
// context. Busier work contexts (more distinct files touched) nudge
// importance up slightly; this is intentionally small and bounded.
func (wc *WorkContext) ImportanceBoost() float64 {
	if wc == nil {
		return 0
	}
	n := len(wc.Files)
	switch {
	case n > 10:
		return 0.1
	case n > 3:
		return 0.05
	default:
		return 0
	}
}

// InjectionStats tracks how often a thread has been offered to the
// retriever and how often that offer was actually used downstream.
type InjectionStats struct {
	InjectionCount int        `json:"injection_count"`
	UsedCount      int        `json:"used_count"`
	LastInjected   *time.Time `json:"last_injected,omitempty"`
	LastUsed       *time.Time `json:"last_used,omitempty"`
}

// UsageRatio is the fraction of injections that were actually used.
// An empty history returns 0, which the engram InjectionHistory validator treats
// together with injection_count < 3 rather than as a hard fail.
func (s *InjectionStats) UsageRatio() float64 {
	if s == nil || s.InjectionCount == 0 {
		return 0
	}
	return float64(s.UsedCount) / float64(s.InjectionCount)
}

// DriftEvent is an opaque record of a thread's topical drift over time.
type DriftEvent struct {
	At      time.Time `json:"at"`
	Summary string    `json:"summary"`
	Delta   float64   `json:"delta"`
}

// Rating is an opaque feedback record attached to a thread.
type Rating struct {
	At     time.Time `json:"at"`
	Source string    `json:"source"`
	Score  float64   `json:"score"`
	Note   string    `json:"note,omitempty"`
}

// SplitLock, when set, prevents a thread from being split/forked again
// until the expiry passes — guards against thrashing on noisy input.
type SplitLock struct {
	Locked    bool       `json:"locked"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Active reports whether the lock is still in effect at the given time.
func (l *SplitLock) Active(now time.Time) bool {
	if l == nil || !l.Locked {
		return false
	}
	if l.ExpiresAt == nil {
		return true
	}
	return now.Before(*l.ExpiresAt)
}

// Thread is a topical memory unit. See spec §3 for the full invariant set.
type Thread struct {
	ID          string
	Title       string
	Status      ThreadStatus
	Origin      OriginType
	Weight      float64
	Importance  float64
	ImportanceManuallySet bool
	RelevanceScore        float64
	ActivationCount       int64
	CreatedAt   time.Time
	LastActive  time.Time
	ParentID    *string
	ChildIDs    []string

	Topics   []string
	Labels   []string
	Tags     []string
	Concepts []string

	Embedding []float32
	Summary   string

	WorkContext    *WorkContext
	InjectionStats *InjectionStats
	SplitLock      *SplitLock

	DriftHistory []DriftEvent
	Ratings      []Rating
}

// NormalizeBags dedups the string bags case-insensitively, eliminates any
// topic that is a case-insensitive substring of a longer topic in the same
// bag, and enforces the per-bag size caps. Must be called after any mutation
// to Topics/Labels/Concepts per spec §3 invariant 2.
func (t *Thread) NormalizeBags() {
	t.Topics = dedupCaseInsensitive(t.Topics)
	t.Topics = eliminateSubstrings(t.Topics)
	t.Topics = capBag(t.Topics, MaxTopics)

	t.Labels = dedupCaseInsensitive(t.Labels)
	t.Labels = capBag(t.Labels, MaxLabels)

	t.Concepts = dedupCaseInsensitive(t.Concepts)
	t.Concepts = capBag(t.Concepts, MaxConcepts)

	t.Tags = dedupCaseInsensitive(t.Tags)
}

// CanTransitionTo reports whether the status transition is legal per
// spec §3: active <-> suspended -> archived, archive terminal until an
// explicit reactivation (handled by the caller, not by this check).
func (s ThreadStatus) CanTransitionTo(next ThreadStatus) bool {
	switch s {
	case StatusActive:
		return next == StatusSuspended || next == StatusArchived
	case StatusSuspended:
		return next == StatusActive || next == StatusArchived
	case StatusArchived:
		return next == StatusActive // explicit reactivation only
	}
	return false
}
