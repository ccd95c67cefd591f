package registry

import "context"

// Repository provides persistence for agents and tasks, implemented by
// internal/store against the global registry.db.
type Repository interface {
	CreateAgent(ctx context.Context, a *Agent) error
	GetAgent(ctx context.Context, id string) (*Agent, error)
	ListAgents(ctx context.Context, projectHash string) ([]*Agent, error)
	UpdateAgent(ctx context.Context, a *Agent) error
	DeleteAgent(ctx context.Context, id string) error

	CreateTask(ctx context.Context, t *AgentTask) error
	GetTask(ctx context.Context, id string) (*AgentTask, error)
	UpdateTask(ctx context.Context, t *AgentTask) error
	ListTasksForAgent(ctx context.Context, assignee string) ([]*AgentTask, error)
}
