package mcp

import "time"

// RecallParams is ai_recall's input: retrieve relevant threads for a
// freshly captured message, optionally anchored to a set of focus topics.
type RecallParams struct {
	Query       string   `json:"query"`
	FocusTopics []string `json:"focus_topics,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// ThreadSummary is the trimmed view of a thread returned to MCP callers.
type ThreadSummary struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Status     string   `json:"status"`
	Topics     []string `json:"topics"`
	Labels     []string `json:"labels"`
	Concepts   []string `json:"concepts,omitempty"`
	Importance float64  `json:"importance"`
	Weight     float64  `json:"weight"`
	Summary    string   `json:"summary,omitempty"`
}

// RecallResult is ai_recall's output.
type RecallResult struct {
	Threads []ThreadSummary `json:"threads"`
}

// ThreadSuspendParams is ai_thread_suspend's input.
type ThreadSuspendParams struct {
	ThreadID string `json:"thread_id"`
	Reactivate bool `json:"reactivate,omitempty"`
}

// StatusResult is a generic acknowledgement response.
type StatusResult struct {
	Status string `json:"status"`
}

// MergeParams is ai_merge's input: force arbitration between two threads,
// bypassing the auto-band overlap gate gossip applies to its own candidates.
type MergeParams struct {
	ThreadAID string `json:"thread_a_id"`
	ThreadBID string `json:"thread_b_id"`
}

// LabelParams is ai_label's input: replace or append a thread's labels.
type LabelParams struct {
	ThreadID string   `json:"thread_id"`
	Labels   []string `json:"labels"`
	Replace  bool     `json:"replace,omitempty"`
}

// FocusParams is ai_focus's input: set the session-wide focus-topic list
// consumed by the FocusAlignment validator.
type FocusParams struct {
	Topics []string `json:"topics"`
}

// OrphanScanResult is ai_bridge_scan_orphans's output.
type OrphanScanResult struct {
	Purged int64 `json:"purged"`
}

// BackupParams is ai_backup's input.
type BackupParams struct {
	Label string `json:"label,omitempty"`
}

// BackupResult is ai_backup's output.
type BackupResult struct {
	Path    string    `json:"path"`
	Bytes   int64     `json:"bytes"`
	TakenAt time.Time `json:"taken_at"`
}

// ToolDefinition describes a callable tool for the raw JSON-RPC catalog
// surface (doc resources, non-SDK transports).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}
