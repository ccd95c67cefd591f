// Package healthguard runs a small fixed battery of maintenance checks
// against a project's storage and reports anything that needs an
// operator's attention, grounded on
// original_source/src/intelligence/healthguard.rs and
// original_source/src/healthguard/checks.rs's HealthGuard/check_* split:
// each check here is a standalone function returning an optional Finding,
// and Guard.Run sequences them behind a cooldown file the same way the
// original gates repeated injections with healthguard_last.txt.
package healthguard

import "fmt"

// Priority ranks how urgently a Finding should be surfaced. Findings sort
// by Priority descending, mirroring the original's HealthPriority ordering.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// Finding is one maintenance issue surfaced by a single check.
type Finding struct {
	Priority    Priority
	Category    string
	Message     string
	MetricValue float64
	Threshold   float64
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s: %s (value=%.2f threshold=%.2f)",
		f.Priority, f.Category, f.Message, f.MetricValue, f.Threshold)
}
