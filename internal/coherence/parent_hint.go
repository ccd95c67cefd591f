package coherence

import (
	"context"

	"github.com/rpggio/memengine/internal/memory"
)

// ThreadRepository is the subset of store.ThreadRepository the parent-hint
// resolver needs.
type ThreadRepository interface {
	ListActive(ctx context.Context) ([]*memory.Thread, error)
}

// ParentHint picks the most recently active thread as the candidate parent
// (the "pending context" the original pipeline checks new input against),
// scores coherence between it and content, and returns its ID only when
// the result classifies as Child — the parent hint the thread manager's
// dual gate consumes (spec §4.2). Returns nil when there is no active
// thread, or when content doesn't cohere closely enough with one.
func ParentHint(ctx context.Context, checker *Checker, threads ThreadRepository, childThreshold, orphanThreshold float64, content string) (*string, error) {
	active, err := threads.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	parent := mostRecentlyActive(active)
	if parent == nil {
		return nil, nil
	}

	result := checker.Check(ctx, parent.Title+"\n"+parent.Summary, content, parent.Labels)
	if DetermineAction(result.Score, childThreshold, orphanThreshold) != ActionChild {
		return nil, nil
	}
	id := parent.ID
	return &id, nil
}

func mostRecentlyActive(threads []*memory.Thread) *memory.Thread {
	var best *memory.Thread
	for _, th := range threads {
		if best == nil || th.LastActive.After(best.LastActive) {
			best = th
		}
	}
	return best
}
