package healthguard

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"syscall"
	"time"

	"github.com/rpggio/memengine/internal/memory"
	"github.com/rpggio/memengine/internal/registry"
	"github.com/rpggio/memengine/internal/store/migrations"
)

// ThreadLister is the narrow slice of store.ThreadRepository the fragmentation
// and decay checks need.
type ThreadLister interface {
	ListAll(ctx context.Context) ([]*memory.Thread, error)
	CountActive(ctx context.Context) (int, error)
}

// OrphanCounter is the narrow slice of store.BridgeRepository the orphan
// check needs.
type OrphanCounter interface {
	CountOrphans(ctx context.Context) (int, error)
}

// AgentLister is the narrow slice of store.AgentRepository the stale-agent
// check needs.
type AgentLister interface {
	ListAgents(ctx context.Context, projectHash string) ([]*registry.Agent, error)
}

// DeadLetterCounter is the narrow slice of store.InboxRepository the
// delivery-health check needs.
type DeadLetterCounter interface {
	CountDeadLetters(ctx context.Context) (int, error)
}

// checkDiskFree flags a data volume running low on free space, grounded on
// healthguard.rs's disk capacity check; no third-party disk-usage library
// appears anywhere in the retrieved pack's own code (shirou/gopsutil shows
// up only as an unexercised transitive dependency), so this reaches for the
// stdlib syscall package directly rather than inventing a dependency on an
// unproven one.
func checkDiskFree(dataDir string, thresholdMB int) (*Finding, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dataDir, &stat); err != nil {
		return nil, fmt.Errorf("statfs %s: %w", dataDir, err)
	}
	freeMB := float64(stat.Bavail*uint64(stat.Bsize)) / (1024 * 1024)
	if freeMB >= float64(thresholdMB) {
		return nil, nil
	}
	priority := PriorityHigh
	if freeMB < float64(thresholdMB)/4 {
		priority = PriorityCritical
	}
	return &Finding{
		Priority:    priority,
		Category:    "disk_capacity",
		Message:     fmt.Sprintf("only %.0fMB free on %s", freeMB, dataDir),
		MetricValue: freeMB,
		Threshold:   float64(thresholdMB),
	}, nil
}

// checkWALSize flags a write-ahead log that has grown past its expected
// size, usually because the daemon's checkpoint loop has fallen behind or
// a long-running read transaction is pinning old WAL frames.
func checkWALSize(dbPath string, thresholdMB int) (*Finding, error) {
	info, err := os.Stat(dbPath + "-wal")
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat wal file: %w", err)
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)
	if sizeMB < float64(thresholdMB) {
		return nil, nil
	}
	return &Finding{
		Priority:    PriorityMedium,
		Category:    "wal_size",
		Message:     fmt.Sprintf("wal file has grown to %.1fMB", sizeMB),
		MetricValue: sizeMB,
		Threshold:   float64(thresholdMB),
	}, nil
}

// checkOrphanBridges flags bridge rows whose endpoint threads no longer
// exist, grounded on store.BridgeRepository.PurgeOrphans's query (counted,
// not deleted, here — purging stays gossip's job).
func checkOrphanBridges(ctx context.Context, bridges OrphanCounter, threshold int) (*Finding, error) {
	n, err := bridges.CountOrphans(ctx)
	if err != nil {
		return nil, err
	}
	if n < threshold {
		return nil, nil
	}
	return &Finding{
		Priority:    PriorityMedium,
		Category:    "orphan_bridges",
		Message:     fmt.Sprintf("%d bridges reference threads that no longer exist", n),
		MetricValue: float64(n),
		Threshold:   float64(threshold),
	}, nil
}

// checkStaleAgents flags agents registered against this project whose
// last heartbeat is older than thresholdSeconds, grounded on
// healthguard.rs's stale-agent check and registry.Service.SweepStatuses's
// same last-seen arithmetic.
func checkStaleAgents(ctx context.Context, agents AgentLister, projectHash string, thresholdSeconds int, now time.Time) (*Finding, error) {
	all, err := agents.ListAgents(ctx, projectHash)
	if err != nil {
		return nil, err
	}
	threshold := time.Duration(thresholdSeconds) * time.Second
	stale := 0
	oldest := time.Duration(0)
	for _, a := range all {
		age := now.Sub(a.LastSeen)
		if age >= threshold {
			stale++
			if age > oldest {
				oldest = age
			}
		}
	}
	if stale == 0 {
		return nil, nil
	}
	return &Finding{
		Priority:    PriorityLow,
		Category:    "stale_agents",
		Message:     fmt.Sprintf("%d agents have not sent a heartbeat in over %d seconds", stale, thresholdSeconds),
		MetricValue: oldest.Seconds(),
		Threshold:   float64(thresholdSeconds),
	}, nil
}

// checkDeadLetters flags a growing backlog of expired, unread inbox
// messages, grounded on healthguard.rs's delivery-health check.
func checkDeadLetters(ctx context.Context, inboxRepo DeadLetterCounter, threshold int) (*Finding, error) {
	n, err := inboxRepo.CountDeadLetters(ctx)
	if err != nil {
		return nil, err
	}
	if n < threshold {
		return nil, nil
	}
	return &Finding{
		Priority:    PriorityMedium,
		Category:    "dead_letters",
		Message:     fmt.Sprintf("%d messages have expired undelivered", n),
		MetricValue: float64(n),
		Threshold:   float64(threshold),
	}, nil
}

// checkActiveThreadRatio flags a project where the live thread graph has
// fragmented into mostly-suspended threads, grounded on healthguard.rs's
// fragmentation check (there: unlabeled-ratio over single-message threads;
// here: the active/total ratio, since store.ThreadRepository already
// exposes CountActive/ListAll directly).
func checkActiveThreadRatio(threads []*memory.Thread, activeCount int, thresholdRatio float64) *Finding {
	if len(threads) == 0 {
		return nil
	}
	ratio := float64(activeCount) / float64(len(threads))
	if ratio >= thresholdRatio {
		return nil
	}
	return &Finding{
		Priority:    PriorityLow,
		Category:    "thread_fragmentation",
		Message:     fmt.Sprintf("only %.0f%% of threads are active", ratio*100),
		MetricValue: ratio,
		Threshold:   thresholdRatio,
	}
}

// checkAvgThreadWeight flags a project whose threads have decayed toward
// the floor on average, suggesting gossip/decay cadence needs retuning,
// grounded on healthguard.rs's weak-bridges check generalized to weight.
func checkAvgThreadWeight(threads []*memory.Thread, thresholdWeight float64) *Finding {
	if len(threads) == 0 {
		return nil
	}
	var sum float64
	for _, th := range threads {
		sum += th.Weight
	}
	avg := sum / float64(len(threads))
	if avg >= thresholdWeight {
		return nil
	}
	return &Finding{
		Priority:    PriorityLow,
		Category:    "avg_thread_weight",
		Message:     fmt.Sprintf("average thread weight has decayed to %.3f", avg),
		MetricValue: avg,
		Threshold:   thresholdWeight,
	}
}

// checkMigrationLag flags a project database opened by code built against
// a newer schema than what has actually been applied to it, grounded on
// healthguard.rs's config-sync check generalized to schema versioning.
func checkMigrationLag(db *sql.DB, threshold int) (*Finding, error) {
	lag, err := migrations.ProjectPendingCount(db)
	if err != nil {
		return nil, err
	}
	if lag < threshold {
		return nil, nil
	}
	priority := PriorityHigh
	if lag > threshold {
		priority = PriorityCritical
	}
	return &Finding{
		Priority:    priority,
		Category:    "migration_lag",
		Message:     fmt.Sprintf("%d project migrations have not been applied", lag),
		MetricValue: float64(lag),
		Threshold:   float64(threshold),
	}, nil
}

// checkBackupAge flags a project with no recent online backup, grounded on
// healthguard.rs's disk/backup staleness check; backup.Service names its
// files <label>-<timestamp>.sqlite, so the newest file's mtime stands in
// for "time of last successful backup" without needing a manifest.
func checkBackupAge(backupDir string, thresholdHours float64, now time.Time) (*Finding, error) {
	entries, err := os.ReadDir(backupDir)
	if os.IsNotExist(err) {
		return &Finding{
			Priority:    PriorityHigh,
			Category:    "backup_age",
			Message:     "no backups have ever been taken",
			MetricValue: thresholdHours + 1,
			Threshold:   thresholdHours,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var newest time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, statErr := e.Info()
		if statErr != nil {
			continue
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	if newest.IsZero() {
		return &Finding{
			Priority:    PriorityHigh,
			Category:    "backup_age",
			Message:     "no backups have ever been taken",
			MetricValue: thresholdHours + 1,
			Threshold:   thresholdHours,
		}, nil
	}

	ageHours := now.Sub(newest).Hours()
	if ageHours < thresholdHours {
		return nil, nil
	}
	return &Finding{
		Priority:    PriorityMedium,
		Category:    "backup_age",
		Message:     fmt.Sprintf("last backup is %.1f hours old", ageHours),
		MetricValue: ageHours,
		Threshold:   thresholdHours,
	}, nil
}

// sortByPriorityDesc orders findings most-urgent first, matching the
// original's sort_by priority comparison before truncating to
// max_suggestions.
func sortByPriorityDesc(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Priority > findings[j].Priority
	})
}
