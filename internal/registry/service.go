package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service handles agent/task operations over a Repository.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// RegisterAgentRequest defines agent registration inputs.
type RegisterAgentRequest struct {
	ProjectHash      string
	Name             string
	Role             string
	Description      string
	CoordinationMode string
	QuotaMode        QuotaMode
	SupervisorID     *string
	Specializations  []string
	Capabilities     []string
}

// RegisterAgent creates a new agent, checking the supervisor chain for
// cycles before persisting.
func (s *Service) RegisterAgent(ctx context.Context, req RegisterAgentRequest) (*Agent, error) {
	if req.Name == "" {
		return nil, ErrInvalidInput
	}
	if req.QuotaMode == "" {
		req.QuotaMode = QuotaNormal
	}

	agent := &Agent{
		ID:               uuid.NewString(),
		ProjectHash:      req.ProjectHash,
		Name:             req.Name,
		Role:             req.Role,
		Description:      req.Description,
		CoordinationMode: req.CoordinationMode,
		QuotaMode:        req.QuotaMode,
		Status:           AgentAlive,
		LastSeen:         time.Now(),
		SupervisorID:     req.SupervisorID,
		Specializations:  req.Specializations,
		Capabilities:     req.Capabilities,
	}

	if agent.SupervisorID != nil {
		if err := s.checkAcyclic(ctx, agent.ID, *agent.SupervisorID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.CreateAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("register agent: %w", err)
	}
	return agent, nil
}

// checkAcyclic walks the supervisor chain starting at supervisorID, the
// same O(n) scan-and-check idiom the teacher's session service uses to
// verify membership, applied here to a parent-pointer chain instead of an
// activation list: if candidateID appears in the chain, assigning it as a
// subordinate of supervisorID would close a cycle.
func (s *Service) checkAcyclic(ctx context.Context, candidateID, supervisorID string) error {
	seen := map[string]bool{candidateID: true}
	current := supervisorID
	for current != "" {
		if seen[current] {
			return ErrCyclicSupervisor
		}
		seen[current] = true

		sup, err := s.repo.GetAgent(ctx, current)
		if err != nil {
			if errors.Is(err, ErrAgentNotFound) {
				return nil
			}
			return fmt.Errorf("walk supervisor chain: %w", err)
		}
		if sup.SupervisorID == nil {
			return nil
		}
		current = *sup.SupervisorID
	}
	return nil
}

func (s *Service) GetAgent(ctx context.Context, id string) (*Agent, error) {
	return s.repo.GetAgent(ctx, id)
}

func (s *Service) ListAgents(ctx context.Context, projectHash string) ([]*Agent, error) {
	return s.repo.ListAgents(ctx, projectHash)
}

// UpdateHeartbeat refreshes an agent's last-seen timestamp and derived
// status.
func (s *Service) UpdateHeartbeat(ctx context.Context, id string, now time.Time, aliveAfter, idleAfter, offlineAfter time.Duration) error {
	agent, err := s.repo.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	agent.LastSeen = now
	agent.Status = AgentAlive
	if err := s.repo.UpdateAgent(ctx, agent); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// SweepStatuses reclassifies every agent of a project by elapsed time since
// LastSeen against the guardianconfig heartbeat thresholds, called from the
// daemon's periodic stale-heartbeat sweep loop (spec §5). Returns the
// number of agents whose status changed.
func (s *Service) SweepStatuses(ctx context.Context, projectHash string, now time.Time, aliveAfter, idleAfter, offlineAfter time.Duration) (int, error) {
	agents, err := s.repo.ListAgents(ctx, projectHash)
	if err != nil {
		return 0, fmt.Errorf("sweep heartbeats: list agents: %w", err)
	}

	changed := 0
	for _, agent := range agents {
		elapsed := now.Sub(agent.LastSeen)
		next := AgentAlive
		switch {
		case elapsed >= offlineAfter:
			next = AgentOffline
		case elapsed >= idleAfter:
			next = AgentIdle
		}
		if next == agent.Status {
			continue
		}
		agent.Status = next
		if err := s.repo.UpdateAgent(ctx, agent); err != nil {
			return changed, fmt.Errorf("sweep heartbeats: update agent %s: %w", agent.ID, err)
		}
		changed++
	}
	return changed, nil
}

// DeleteAgent removes an agent, refusing to remove the last remaining agent of a
// project and promoting subordinates to the deleted agent's supervisor (or
// making them autonomous when it had none).
func (s *Service) DeleteAgent(ctx context.Context, id string) error {
	agent, err := s.repo.GetAgent(ctx, id)
	if err != nil {
		return err
	}

	siblings, err := s.repo.ListAgents(ctx, agent.ProjectHash)
	if err != nil {
		return fmt.Errorf("list agents for delete check: %w", err)
	}
	if len(siblings) <= 1 {
		return ErrLastAgentOfProject
	}

	for _, sib := range siblings {
		if sib.SupervisorID == nil || *sib.SupervisorID != id {
			continue
		}
		sib.SupervisorID = agent.SupervisorID
		if err := s.repo.UpdateAgent(ctx, sib); err != nil {
			return fmt.Errorf("promote subordinate %s: %w", sib.ID, err)
		}
	}

	if err := s.repo.DeleteAgent(ctx, id); err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	return nil
}

// CreateTaskRequest defines task delegation inputs.
type CreateTaskRequest struct {
	Assignee     string
	Assigner     string
	Title        string
	Description  string
	Priority     string
	Dependencies []string
	Deadline     *time.Time
}

func (s *Service) CreateTask(ctx context.Context, req CreateTaskRequest) (*AgentTask, error) {
	if req.Title == "" || req.Assignee == "" {
		return nil, ErrInvalidInput
	}
	task := &AgentTask{
		ID:           uuid.NewString(),
		Assignee:     req.Assignee,
		Assigner:     req.Assigner,
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		Status:       TaskPending,
		Dependencies: req.Dependencies,
		Deadline:     req.Deadline,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// TransitionTask moves a task to next, enforcing the dependency-complete
// gate on entry to in_progress (spec §3 AgentTask invariant).
func (s *Service) TransitionTask(ctx context.Context, id string, next TaskStatus) error {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if next == TaskInProgress {
		for _, depID := range task.Dependencies {
			dep, err := s.repo.GetTask(ctx, depID)
			if err != nil {
				return fmt.Errorf("check dependency %s: %w", depID, err)
			}
			if dep.Status != TaskCompleted {
				return ErrDependencyIncomplete
			}
		}
	}

	task.Status = next
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("transition task: %w", err)
	}
	return nil
}

func (s *Service) ListTasksForAgent(ctx context.Context, assignee string) ([]*AgentTask, error) {
	return s.repo.ListTasksForAgent(ctx, assignee)
}
