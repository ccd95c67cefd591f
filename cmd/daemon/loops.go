package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/memengine/internal/backup"
	"github.com/rpggio/memengine/internal/broker"
	"github.com/rpggio/memengine/internal/decay"
	"github.com/rpggio/memengine/internal/engram"
	"github.com/rpggio/memengine/internal/gossip"
	"github.com/rpggio/memengine/internal/guardianconfig"
	"github.com/rpggio/memengine/internal/healthguard"
	"github.com/rpggio/memengine/internal/inbox"
	"github.com/rpggio/memengine/internal/observability"
	"github.com/rpggio/memengine/internal/registry"
	"github.com/rpggio/memengine/internal/store"
)

// daemon bundles every background-loop dependency. It carries no business
// logic of its own — each loop delegates to the domain package that owns
// the behavior; daemon only owns cadence and lifecycle.
type daemon struct {
	projectHash string
	retriever   *engram.Retriever
	decayer     *decay.Decayer
	archiver    *decay.Archiver
	gossip      *gossip.Engine
	mergeSink   *asyncMergeSink
	backup      *backup.Service
	registry    *registry.Service
	inbox       *inbox.Service
	broker      *broker.Broker
	projectDB   *store.DB
	healthguard *healthguard.Guard
	guardianCfg guardianconfig.Config
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// startLoops launches every background loop as its own goroutine on its
// own cadence, each registered against wg so main can wait for clean exit
// after ctx is cancelled.
func (d *daemon) startLoops(ctx context.Context, wg *sync.WaitGroup) {
	gossipCadence := time.Duration(d.guardianCfg.Gossip.CadenceSeconds) * time.Second
	if gossipCadence <= 0 {
		gossipCadence = 5 * time.Minute
	}

	d.runLoop(ctx, wg, "decay", 2*time.Minute, func(ctx context.Context) error {
		d.metrics.Inc("decay_ticks_total", 1)
		return d.decayer.Run(ctx)
	})
	d.runLoop(ctx, wg, "archive", 10*time.Minute, d.archiver.Run)
	d.runLoop(ctx, wg, "gossip", gossipCadence, d.runGossip)
	d.runLoop(ctx, wg, "heartbeat_sweep", 1*time.Minute, d.sweepHeartbeats)
	d.runLoop(ctx, wg, "inbox_ttl_expiry", 1*time.Minute, d.expireInbox)
	d.runLoop(ctx, wg, "wal_checkpoint", 30*time.Second, d.checkpoint)
	d.runLoop(ctx, wg, "backup", 24*time.Hour, d.runBackup)
	d.runLoop(ctx, wg, "healthguard", 1*time.Minute, d.runHealthguard)
}

// runLoop ticks fn on interval until ctx is cancelled, logging (not
// panicking on) every failure — one loop's error never stops another's,
// the same degrade-don't-cascade policy the worker pool's RunBestEffort
// applies to a single pass's tasks, applied here across passes over time.
func (d *daemon) runLoop(ctx context.Context, wg *sync.WaitGroup, name string, interval time.Duration, fn func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					d.logger.Warn("background loop failed", "loop", name, "error", err)
				}
			}
		}
	}()
}

func (d *daemon) runGossip(ctx context.Context) error {
	if err := d.gossip.Run(ctx); err != nil {
		return err
	}
	d.mergeSink.Flush(ctx)
	return nil
}

func (d *daemon) sweepHeartbeats(ctx context.Context) error {
	hb := d.guardianCfg.Heartbeat
	changed, err := d.registry.SweepStatuses(ctx, d.projectHash, time.Now(),
		time.Duration(hb.AliveSeconds)*time.Second,
		time.Duration(hb.IdleSeconds)*time.Second,
		time.Duration(hb.OfflineSeconds)*time.Second)
	if err != nil {
		return err
	}
	if changed > 0 {
		d.logger.Info("reclassified agent statuses", "count", changed)
	}
	return nil
}

func (d *daemon) expireInbox(ctx context.Context) error {
	_, err := d.inbox.ExpireDue(ctx)
	return err
}

func (d *daemon) checkpoint(ctx context.Context) error {
	return d.projectDB.CheckpointPassive()
}

func (d *daemon) runBackup(ctx context.Context) error {
	_, err := d.backup.Run(ctx, "ai")
	return err
}

// runHealthguard ticks every minute but the actual sweep is gated by
// healthguard.Guard's own cooldown file, so it only does storage work on
// the configured cooldown_secs cadence (spec: "nine check thresholds +
// cooldown_secs"), the same opportunistic-but-gated pattern the original
// used from its hook call site rather than a fixed scheduler.
func (d *daemon) runHealthguard(ctx context.Context) error {
	if d.healthguard == nil {
		return nil
	}
	findings, err := d.healthguard.Run(ctx)
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		return nil
	}
	d.metrics.Inc("healthguard_findings_total", int64(len(findings)))
	for _, f := range findings {
		d.logger.Warn("healthguard finding", "priority", f.Priority.String(), "category", f.Category, "message", f.Message)
	}
	return nil
}
