package registry

import "errors"

var (
	ErrAgentNotFound        = errors.New("agent not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrCyclicSupervisor     = errors.New("supervisor assignment would create a cycle")
	ErrLastAgentOfProject   = errors.New("cannot delete the last remaining agent of a project")
	ErrDependencyIncomplete = errors.New("task has incomplete dependencies")
	ErrInvalidInput         = errors.New("invalid input")
)
