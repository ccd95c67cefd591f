// Package registry implements the Agent/AgentTask domain: registration,
// supervisor hierarchy, heartbeat, and delegated work tracking (spec §3,
// "Registry" in §2's component table). Modeled on the teacher's
// internal/domain/project package: a Service over a storage-agnostic
// Repository interface.
package registry

import "time"

// QuotaMode names a coordination-derived active-thread quota band.
type QuotaMode string

const (
	QuotaLight  QuotaMode = "light"
	QuotaNormal QuotaMode = "normal"
	QuotaHeavy  QuotaMode = "heavy"
	QuotaMax    QuotaMode = "max"
)

// Quota returns the active-thread cap for the mode (spec §3).
func (m QuotaMode) Quota() int {
	switch m {
	case QuotaLight:
		return 15
	case QuotaHeavy:
		return 100
	case QuotaMax:
		return 200
	default:
		return 50
	}
}

// AgentStatus is the liveness state surfaced by heartbeat.
type AgentStatus string

const (
	AgentAlive   AgentStatus = "alive"
	AgentIdle    AgentStatus = "idle"
	AgentOffline AgentStatus = "offline"
)

// Agent is a registered identity within a project.
type Agent struct {
	ID               string
	ProjectHash      string
	Name             string
	Role             string
	Description      string
	CoordinationMode string
	QuotaMode        QuotaMode
	Status           AgentStatus
	LastSeen         time.Time
	SupervisorID     *string
	Specializations  []string
	Capabilities     []string
	CurrentActivity  string
}

// TaskStatus is the AgentTask lifecycle state.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskBlocked    TaskStatus = "blocked"
)

// AgentTask is a delegated unit of work between agents.
type AgentTask struct {
	ID           string
	Assignee     string
	Assigner     string
	Title        string
	Description  string
	Priority     string
	Status       TaskStatus
	Dependencies []string
	Deadline     *time.Time
	Result       string
}
