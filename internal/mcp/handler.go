// Package mcp exposes the cognitive-memory graph to MCP clients,
// generalizing the teacher's internal/mcp catalog/handler/server split to
// the ai-smartness tool set (spec §6/§7 expansion).
package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/rpggio/memengine/internal/backup"
	"github.com/rpggio/memengine/internal/engram"
	"github.com/rpggio/memengine/internal/memerr"
	"github.com/rpggio/memengine/internal/memory"
	"github.com/rpggio/memengine/internal/merge"
)

// ThreadRepository is the subset of store.ThreadRepository the handler needs.
type ThreadRepository interface {
	GetWithTick(ctx context.Context, id string) (*memory.Thread, int64, error)
	Update(ctx context.Context, th *memory.Thread, expectedTick int64) error
}

// BridgeRepository is the subset of store.BridgeRepository the handler needs.
type BridgeRepository interface {
	PurgeOrphans(ctx context.Context) (int64, error)
}

// Handler dispatches MCP tool calls to the domain packages.
type Handler struct {
	threads   ThreadRepository
	bridges   BridgeRepository
	retriever *engram.Retriever
	merger    *merge.Evaluator
	backup    *backup.Service

	mu          sync.Mutex
	focusTopics []string
}

func NewHandler(threads ThreadRepository, bridges BridgeRepository, retriever *engram.Retriever, merger *merge.Evaluator, backupSvc *backup.Service) *Handler {
	return &Handler{threads: threads, bridges: bridges, retriever: retriever, merger: merger, backup: backupSvc}
}

// Recall implements ai_recall.
func (h *Handler) Recall(ctx context.Context, p RecallParams) (*RecallResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	focus := p.FocusTopics
	if len(focus) == 0 {
		focus = h.currentFocus()
	}

	threads, err := h.retriever.GetRelevantContext(ctx, p.Query, focus, limit)
	if err != nil {
		return nil, mapError(err)
	}
	return &RecallResult{Threads: toSummaries(threads)}, nil
}

// ThreadSuspend implements ai_thread_suspend, toggling a thread between
// active and suspended.
func (h *Handler) ThreadSuspend(ctx context.Context, p ThreadSuspendParams) (*StatusResult, error) {
	th, tick, err := h.threads.GetWithTick(ctx, p.ThreadID)
	if err != nil {
		return nil, mapError(err)
	}

	if p.Reactivate {
		th.Status = memory.StatusActive
	} else {
		th.Status = memory.StatusSuspended
	}
	if err := h.threads.Update(ctx, th, tick); err != nil {
		return nil, mapError(err)
	}
	return &StatusResult{Status: string(th.Status)}, nil
}

// Merge implements ai_merge: a manual override of the gossip-triggered
// auto-merge path.
func (h *Handler) Merge(ctx context.Context, p MergeParams) (*StatusResult, error) {
	if p.ThreadAID == "" || p.ThreadBID == "" {
		return nil, mapError(memerr.InvalidInput("thread_a_id and thread_b_id are required"))
	}
	if err := h.merger.ForceMerge(ctx, p.ThreadAID, p.ThreadBID); err != nil {
		return nil, mapError(err)
	}
	return &StatusResult{Status: "merged"}, nil
}

// Label implements ai_label: mutates a thread's label bag, still subject
// to the normal dedup/cap invariants.
func (h *Handler) Label(ctx context.Context, p LabelParams) (*StatusResult, error) {
	th, tick, err := h.threads.GetWithTick(ctx, p.ThreadID)
	if err != nil {
		return nil, mapError(err)
	}

	if p.Replace {
		th.Labels = p.Labels
	} else {
		th.Labels = append(th.Labels, p.Labels...)
	}
	th.ImportanceManuallySet = true
	th.NormalizeBags()

	if err := h.threads.Update(ctx, th, tick); err != nil {
		return nil, mapError(err)
	}
	return &StatusResult{Status: "ok"}, nil
}

// Focus implements ai_focus: sets the process-wide focus-topic list that
// Recall falls back to when a call doesn't supply its own, and that
// feeds the FocusAlignment validator's QueryContext.
func (h *Handler) Focus(ctx context.Context, p FocusParams) (*StatusResult, error) {
	h.mu.Lock()
	h.focusTopics = append([]string(nil), p.Topics...)
	h.mu.Unlock()
	return &StatusResult{Status: "ok"}, nil
}

func (h *Handler) currentFocus() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.focusTopics...)
}

// BridgeScanOrphans implements ai_bridge_scan_orphans.
func (h *Handler) BridgeScanOrphans(ctx context.Context, _ struct{}) (*OrphanScanResult, error) {
	purged, err := h.bridges.PurgeOrphans(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return &OrphanScanResult{Purged: purged}, nil
}

// Backup implements ai_backup.
func (h *Handler) Backup(ctx context.Context, p BackupParams) (*BackupResult, error) {
	if h.backup == nil {
		return nil, mapError(memerr.InvalidState("backup is not configured for this project"))
	}
	label := p.Label
	if label == "" {
		label = "ai"
	}
	result, err := h.backup.Run(ctx, label)
	if err != nil {
		return nil, mapError(err)
	}
	return &BackupResult{Path: result.DestPath, Bytes: result.Bytes, TakenAt: result.TakenAt}, nil
}

func toSummaries(threads []*memory.Thread) []ThreadSummary {
	out := make([]ThreadSummary, 0, len(threads))
	for _, th := range threads {
		out = append(out, ThreadSummary{
			ID:         th.ID,
			Title:      th.Title,
			Status:     string(th.Status),
			Topics:     th.Topics,
			Labels:     th.Labels,
			Concepts:   th.Concepts,
			Importance: th.Importance,
			Weight:     th.Weight,
			Summary:    th.Summary,
		})
	}
	return out
}

var errUnknownMethod = fmt.Errorf("unknown method")
