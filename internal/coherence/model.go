// Package coherence scores whether a new piece of captured input belongs
// to a candidate parent thread (spec §2's "Coherence checker"), producing
// the parent hint the thread manager's dual gate consumes. Grounded on the
// original's check_coherence: an LLM judgment with an embedding-similarity
// fallback when the LLM is disabled or fails.
package coherence

// Result is the coherence checker's verdict for one (parent, content) pair.
type Result struct {
	Score         float64  `json:"score"`
	Reason        string   `json:"reason"`
	UpdatedLabels []string `json:"updated_labels"`
}

// Action classifies a Result against the configured thresholds.
type Action string

const (
	ActionChild  Action = "child"
	ActionOrphan Action = "orphan"
	ActionForget Action = "forget"
)

// DetermineAction maps a coherence score onto an Action: score >=
// childThreshold is Child (belongs to the parent), score >= orphanThreshold
// is Orphan (unrelated but substantial enough to keep), otherwise Forget.
func DetermineAction(score, childThreshold, orphanThreshold float64) Action {
	switch {
	case score >= childThreshold:
		return ActionChild
	case score >= orphanThreshold:
		return ActionOrphan
	default:
		return ActionForget
	}
}
