// Package decay implements the decayer and archiver (spec §4.6): weight
// decay for threads and bridges, auto-suspend, orphan-bridge cleanup, and
// archival of long-suspended threads.
package decay

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/rpggio/memengine/internal/guardianconfig"
	"github.com/rpggio/memengine/internal/memory"
)

// ThreadRepository is the subset of store.ThreadRepository decay needs.
type ThreadRepository interface {
	ListActive(ctx context.Context) ([]*memory.Thread, error)
	ListSuspended(ctx context.Context) ([]*memory.Thread, error)
	GetWithTick(ctx context.Context, id string) (*memory.Thread, int64, error)
	Update(ctx context.Context, th *memory.Thread, expectedTick int64) error
}

// BridgeRepository is the subset of store.BridgeRepository decay needs.
type BridgeRepository interface {
	ListAll(ctx context.Context) ([]*memory.Bridge, error)
	Update(ctx context.Context, b *memory.Bridge) error
	PurgeOrphans(ctx context.Context) (int64, error)
}

// Decayer runs the weight-decay and auto-suspend pass over threads and
// bridges, then purges orphaned bridges.
type Decayer struct {
	threads ThreadRepository
	bridges BridgeRepository
	logger  *slog.Logger
	now     func() time.Time
}

func NewDecayer(threads ThreadRepository, bridges BridgeRepository, logger *slog.Logger) *Decayer {
	return &Decayer{threads: threads, bridges: bridges, logger: logger, now: time.Now}
}

const (
	minWeightDelta  = 0.001
	autoSuspendBelow = 0.1
	bridgeHalfLifeDays = 2.0
)

// Run executes one decay cycle: thread weight decay + auto-suspend,
// bridge weight decay + status transitions, then orphan purge.
func (d *Decayer) Run(ctx context.Context) error {
	if err := d.decayThreads(ctx); err != nil {
		return fmt.Errorf("decay: threads: %w", err)
	}
	if err := d.decayBridges(ctx); err != nil {
		return fmt.Errorf("decay: bridges: %w", err)
	}
	purged, err := d.bridges.PurgeOrphans(ctx)
	if err != nil {
		return fmt.Errorf("decay: purge orphans: %w", err)
	}
	if purged > 0 && d.logger != nil {
		d.logger.Info("purged orphan bridges", "count", purged)
	}
	return nil
}

// ThreadHalfLife implements spec §4.6: half_life = 0.75 + importance*(7.0-0.75).
func ThreadHalfLife(importance float64) float64 {
	return 0.75 + importance*(7.0-0.75)
}

func (d *Decayer) decayThreads(ctx context.Context) error {
	active, err := d.threads.ListActive(ctx)
	if err != nil {
		return err
	}
	now := d.now()

	for _, th := range active {
		ageDays := now.Sub(th.LastActive).Hours() / 24
		if ageDays <= 0 {
			continue
		}
		halfLife := ThreadHalfLife(th.Importance)
		newWeight := th.Weight * math.Pow(0.5, ageDays/halfLife)
		if math.Abs(newWeight-th.Weight) < minWeightDelta {
			continue
		}

		fresh, tick, err := d.threads.GetWithTick(ctx, th.ID)
		if err != nil {
			return err
		}
		fresh.Weight = newWeight
		if newWeight < autoSuspendBelow {
			fresh.Status = memory.StatusSuspended
		}
		if err := d.threads.Update(ctx, fresh, tick); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decayer) decayBridges(ctx context.Context) error {
	all, err := d.bridges.ListAll(ctx)
	if err != nil {
		return err
	}
	now := d.now()

	for _, b := range all {
		if b.Status == memory.BridgeInvalid {
			continue
		}
		ageDays := now.Sub(b.ReferenceTime()).Hours() / 24
		if ageDays <= 0 {
			continue
		}
		newWeight := b.Weight * math.Pow(0.5, ageDays/bridgeHalfLifeDays)
		b.Weight = newWeight
		b.Status = memory.StatusForWeight(newWeight, b.Status)
		if err := d.bridges.Update(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// Archiver marks suspended threads archived once they've been inactive
// long enough, per spec §4.6. Archival is terminal until an explicit
// reactivate from the retriever.
type Archiver struct {
	threads ThreadRepository
	cfg     guardianconfig.DecayConfig
	now     func() time.Time
}

func NewArchiver(threads ThreadRepository, cfg guardianconfig.DecayConfig) *Archiver {
	return &Archiver{threads: threads, cfg: cfg, now: time.Now}
}

func (a *Archiver) Run(ctx context.Context) error {
	suspended, err := a.threads.ListSuspended(ctx)
	if err != nil {
		return fmt.Errorf("archiver: list suspended: %w", err)
	}
	now := a.now()
	archiveAfter := time.Duration(a.cfg.ArchiveAfterHours * float64(time.Hour))

	for _, th := range suspended {
		if now.Sub(th.LastActive) < archiveAfter {
			continue
		}
		fresh, tick, err := a.threads.GetWithTick(ctx, th.ID)
		if err != nil {
			return err
		}
		fresh.Status = memory.StatusArchived
		if err := a.threads.Update(ctx, fresh, tick); err != nil {
			return err
		}
	}
	return nil
}
