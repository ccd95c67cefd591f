package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rpggio/memengine/internal/merge"
	"github.com/rpggio/memengine/internal/worker"
)

// asyncMergeSink implements gossip.MergeCandidateSink by buffering bridge
// ids discovered during one gossip pass and evaluating them concurrently
// through the bounded worker pool once the pass completes, rather than
// blocking gossip's synchronous discovery loop on each merge evaluator's
// LLM/embedding calls (spec §5's CPU-bound-work-through-the-pool note).
type asyncMergeSink struct {
	pool      *worker.Pool
	evaluator *merge.Evaluator
	logger    *slog.Logger

	mu      sync.Mutex
	pending []string
}

func newAsyncMergeSink(pool *worker.Pool, evaluator *merge.Evaluator, logger *slog.Logger) *asyncMergeSink {
	return &asyncMergeSink{pool: pool, evaluator: evaluator, logger: logger}
}

// Submit queues bridgeID for evaluation; the actual merge.Evaluator call
// happens in Flush, off the gossip loop's call stack.
func (s *asyncMergeSink) Submit(ctx context.Context, bridgeID string) error {
	s.mu.Lock()
	s.pending = append(s.pending, bridgeID)
	s.mu.Unlock()
	return nil
}

// Flush evaluates every bridge queued since the last flush, one failure
// never blocking another's evaluation.
func (s *asyncMergeSink) Flush(ctx context.Context) {
	s.mu.Lock()
	ids := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(ids) == 0 {
		return
	}

	tasks := make([]worker.Task, len(ids))
	for i, id := range ids {
		bridgeID := id
		tasks[i] = func(ctx context.Context) error { return s.evaluator.Evaluate(ctx, bridgeID) }
	}
	for _, err := range s.pool.RunBestEffort(ctx, tasks...) {
		if err != nil && s.logger != nil {
			s.logger.Warn("merge evaluation failed", "error", err)
		}
	}
}
