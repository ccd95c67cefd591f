// Package manager implements the thread manager (spec §4.2): the
// new/continue/fork/reactivate decision algorithm, quota enforcement, and
// birth bridge discovery that run on every captured input.
package manager

// ActionKind is one of the four decisions the manager can make for a
// captured input.
type ActionKind string

const (
	ActionNewThread  ActionKind = "new_thread"
	ActionContinue   ActionKind = "continue"
	ActionFork       ActionKind = "fork"
	ActionReactivate ActionKind = "reactivate"
)

// Decision is the manager's verdict plus the thread it applies to, if any.
type Decision struct {
	Action   ActionKind
	ThreadID string // empty for ActionNewThread
}
