package store

import (
	"context"
	"database/sql"

	"github.com/rpggio/memengine/internal/registry"
)

// AgentRepository implements registry.Repository against the global
// registry.db, in the same plain-database/sql style as ThreadRepository.
type AgentRepository struct {
	db *DB
}

func NewAgentRepository(db *DB) *AgentRepository {
	return &AgentRepository{db: db}
}

var _ registry.Repository = (*AgentRepository)(nil)

func (r *AgentRepository) CreateAgent(ctx context.Context, a *registry.Agent) error {
	specializations, err := encodeJSON(a.Specializations)
	if err != nil {
		return err
	}
	capabilities, err := encodeJSON(a.Capabilities)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO agents (
			id, project_hash, name, role, description, coordination_mode,
			quota_mode, status, last_seen, supervisor_id, specializations,
			capabilities, current_activity, tick
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
	`, a.ID, a.ProjectHash, a.Name, a.Role, a.Description, a.CoordinationMode,
		a.QuotaMode, a.Status, encodeTime(a.LastSeen), a.SupervisorID, specializations,
		capabilities, a.CurrentActivity)
	return err
}

func (r *AgentRepository) GetAgent(ctx context.Context, id string) (*registry.Agent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_hash, name, role, description, coordination_mode,
			quota_mode, status, last_seen, supervisor_id, specializations,
			capabilities, current_activity
		FROM agents WHERE id = ?
	`, id)
	return scanAgent(row.Scan)
}

func scanAgent(scan scanFunc) (*registry.Agent, error) {
	var a registry.Agent
	var lastSeen, specializations, capabilities string

	err := scan(&a.ID, &a.ProjectHash, &a.Name, &a.Role, &a.Description, &a.CoordinationMode,
		&a.QuotaMode, &a.Status, &lastSeen, &a.SupervisorID, &specializations,
		&capabilities, &a.CurrentActivity)
	if err == sql.ErrNoRows {
		return nil, registry.ErrAgentNotFound
	}
	if err != nil {
		return nil, err
	}
	a.LastSeen = decodeTime(lastSeen)
	if err := decodeJSON(specializations, &a.Specializations); err != nil {
		return nil, err
	}
	if err := decodeJSON(capabilities, &a.Capabilities); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AgentRepository) ListAgents(ctx context.Context, projectHash string) ([]*registry.Agent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_hash, name, role, description, coordination_mode,
			quota_mode, status, last_seen, supervisor_id, specializations,
			capabilities, current_activity
		FROM agents WHERE project_hash = ?
	`, projectHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []*registry.Agent
	for rows.Next() {
		a, err := scanAgent(rows.Scan)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (r *AgentRepository) UpdateAgent(ctx context.Context, a *registry.Agent) error {
	specializations, err := encodeJSON(a.Specializations)
	if err != nil {
		return err
	}
	capabilities, err := encodeJSON(a.Capabilities)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE agents SET name = ?, role = ?, description = ?, coordination_mode = ?,
			quota_mode = ?, status = ?, last_seen = ?, supervisor_id = ?,
			specializations = ?, capabilities = ?, current_activity = ?, tick = tick + 1
		WHERE id = ?
	`, a.Name, a.Role, a.Description, a.CoordinationMode, a.QuotaMode, a.Status,
		encodeTime(a.LastSeen), a.SupervisorID, specializations, capabilities,
		a.CurrentActivity, a.ID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return registry.ErrAgentNotFound
	}
	return nil
}

func (r *AgentRepository) DeleteAgent(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return registry.ErrAgentNotFound
	}
	return nil
}

func (r *AgentRepository) CreateTask(ctx context.Context, t *registry.AgentTask) error {
	deps, err := encodeJSON(t.Dependencies)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO agent_tasks (id, assignee, assigner, title, description, priority, status, dependencies, deadline, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Assignee, t.Assigner, t.Title, t.Description, t.Priority, t.Status, deps, encodeTimePtr(t.Deadline), t.Result)
	return err
}

func (r *AgentRepository) GetTask(ctx context.Context, id string) (*registry.AgentTask, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, assignee, assigner, title, description, priority, status, dependencies, deadline, result
		FROM agent_tasks WHERE id = ?
	`, id)
	return scanTask(row.Scan)
}

func scanTask(scan scanFunc) (*registry.AgentTask, error) {
	var t registry.AgentTask
	var deps string
	var deadline sql.NullString
	var result sql.NullString

	err := scan(&t.ID, &t.Assignee, &t.Assigner, &t.Title, &t.Description, &t.Priority, &t.Status, &deps, &deadline, &result)
	if err == sql.ErrNoRows {
		return nil, registry.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(deps, &t.Dependencies); err != nil {
		return nil, err
	}
	if deadline.Valid {
		t.Deadline = decodeTimePtr(&deadline.String)
	}
	if result.Valid {
		t.Result = result.String
	}
	return &t, nil
}

func (r *AgentRepository) UpdateTask(ctx context.Context, t *registry.AgentTask) error {
	deps, err := encodeJSON(t.Dependencies)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE agent_tasks SET title = ?, description = ?, priority = ?, status = ?,
			dependencies = ?, deadline = ?, result = ?, tick = tick + 1
		WHERE id = ?
	`, t.Title, t.Description, t.Priority, t.Status, deps, encodeTimePtr(t.Deadline), t.Result, t.ID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return registry.ErrTaskNotFound
	}
	return nil
}

func (r *AgentRepository) ListTasksForAgent(ctx context.Context, assignee string) ([]*registry.AgentTask, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, assignee, assigner, title, description, priority, status, dependencies, deadline, result
		FROM agent_tasks WHERE assignee = ?
	`, assignee)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*registry.AgentTask
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
