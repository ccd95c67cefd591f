package healthguard

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/memengine/internal/memory"
	"github.com/rpggio/memengine/internal/registry"
	"github.com/rpggio/memengine/internal/store"
)

func TestCheckActiveThreadRatio_BelowThresholdReturnsFinding(t *testing.T) {
	threads := []*memory.Thread{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	f := checkActiveThreadRatio(threads, 1, 0.5)
	require.NotNil(t, f)
	require.Equal(t, "thread_fragmentation", f.Category)
}

func TestCheckActiveThreadRatio_AtOrAboveThresholdReturnsNil(t *testing.T) {
	threads := []*memory.Thread{{ID: "a"}, {ID: "b"}}
	require.Nil(t, checkActiveThreadRatio(threads, 2, 0.5))
}

func TestCheckActiveThreadRatio_EmptyReturnsNil(t *testing.T) {
	require.Nil(t, checkActiveThreadRatio(nil, 0, 0.5))
}

func TestCheckAvgThreadWeight_BelowThresholdReturnsFinding(t *testing.T) {
	threads := []*memory.Thread{{ID: "a", Weight: 0.05}, {ID: "b", Weight: 0.02}}
	f := checkAvgThreadWeight(threads, 0.1)
	require.NotNil(t, f)
	require.Equal(t, "avg_thread_weight", f.Category)
}

func TestCheckAvgThreadWeight_AboveThresholdReturnsNil(t *testing.T) {
	threads := []*memory.Thread{{ID: "a", Weight: 0.9}}
	require.Nil(t, checkAvgThreadWeight(threads, 0.1))
}

func TestCheckBackupAge_NoDirReturnsFinding(t *testing.T) {
	f, err := checkBackupAge(filepath.Join(t.TempDir(), "missing"), 24, time.Now())
	require.NoError(t, err)
	require.NotNil(t, f)
	require.Equal(t, "backup_age", f.Category)
}

func TestCheckBackupAge_FreshBackupReturnsNil(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ai-20260101T000000Z.sqlite"), []byte("x"), 0o644))
	f, err := checkBackupAge(dir, 24, time.Now())
	require.NoError(t, err)
	require.Nil(t, f)
}

func TestCheckBackupAge_StaleBackupReturnsFinding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ai-20200101T000000Z.sqlite")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	f, err := checkBackupAge(dir, 24, time.Now())
	require.NoError(t, err)
	require.NotNil(t, f)
}

func TestCheckWALSize_MissingFileReturnsNil(t *testing.T) {
	f, err := checkWALSize(filepath.Join(t.TempDir(), "ai.db"), 10)
	require.NoError(t, err)
	require.Nil(t, f)
}

func TestCheckWALSize_LargeFileReturnsFinding(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ai.db")
	require.NoError(t, os.WriteFile(dbPath+"-wal", make([]byte, 2*1024*1024), 0o644))
	f, err := checkWALSize(dbPath, 1)
	require.NoError(t, err)
	require.NotNil(t, f)
}

type fakeOrphanCounter struct {
	n   int
	err error
}

func (f *fakeOrphanCounter) CountOrphans(ctx context.Context) (int, error) { return f.n, f.err }

func TestCheckOrphanBridges_BelowThresholdReturnsNil(t *testing.T) {
	f, err := checkOrphanBridges(context.Background(), &fakeOrphanCounter{n: 2}, 5)
	require.NoError(t, err)
	require.Nil(t, f)
}

func TestCheckOrphanBridges_AtThresholdReturnsFinding(t *testing.T) {
	f, err := checkOrphanBridges(context.Background(), &fakeOrphanCounter{n: 5}, 5)
	require.NoError(t, err)
	require.NotNil(t, f)
}

type fakeAgentLister struct {
	agents []*registry.Agent
}

func (f *fakeAgentLister) ListAgents(ctx context.Context, projectHash string) ([]*registry.Agent, error) {
	return f.agents, nil
}

func TestCheckStaleAgents_NoneStaleReturnsNil(t *testing.T) {
	now := time.Now()
	lister := &fakeAgentLister{agents: []*registry.Agent{{ID: "a", LastSeen: now}}}
	f, err := checkStaleAgents(context.Background(), lister, "hash", 3600, now)
	require.NoError(t, err)
	require.Nil(t, f)
}

func TestCheckStaleAgents_StaleReturnsFinding(t *testing.T) {
	now := time.Now()
	lister := &fakeAgentLister{agents: []*registry.Agent{{ID: "a", LastSeen: now.Add(-2 * time.Hour)}}}
	f, err := checkStaleAgents(context.Background(), lister, "hash", 60, now)
	require.NoError(t, err)
	require.NotNil(t, f)
}

type fakeDeadLetterCounter struct{ n int }

func (f *fakeDeadLetterCounter) CountDeadLetters(ctx context.Context) (int, error) { return f.n, nil }

func TestCheckDeadLetters_BelowThresholdReturnsNil(t *testing.T) {
	f, err := checkDeadLetters(context.Background(), &fakeDeadLetterCounter{n: 1}, 10)
	require.NoError(t, err)
	require.Nil(t, f)
}

func TestCheckDeadLetters_AboveThresholdReturnsFinding(t *testing.T) {
	f, err := checkDeadLetters(context.Background(), &fakeDeadLetterCounter{n: 20}, 10)
	require.NoError(t, err)
	require.NotNil(t, f)
}

func TestCheckMigrationLag_FreshlyMigratedDBReturnsNil(t *testing.T) {
	db, err := store.OpenProjectDB(filepath.Join(t.TempDir(), "ai.db"), store.RoleCli)
	require.NoError(t, err)
	defer db.Close()

	f, err := checkMigrationLag(db.DB, 1)
	require.NoError(t, err)
	require.Nil(t, f)
}

func TestSortByPriorityDesc_OrdersCriticalFirst(t *testing.T) {
	findings := []Finding{{Priority: PriorityLow}, {Priority: PriorityCritical}, {Priority: PriorityMedium}}
	sortByPriorityDesc(findings)
	require.Equal(t, PriorityCritical, findings[0].Priority)
	require.Equal(t, PriorityLow, findings[2].Priority)
}

type fakeThreadLister struct {
	threads []*memory.Thread
	active  int
}

func (f *fakeThreadLister) ListAll(ctx context.Context) ([]*memory.Thread, error) { return f.threads, nil }
func (f *fakeThreadLister) CountActive(ctx context.Context) (int, error)          { return f.active, nil }

func TestGuardRun_RespectsCooldown(t *testing.T) {
	dir := t.TempDir()
	db, err := store.OpenProjectDB(filepath.Join(dir, "ai.db"), store.RoleCli)
	require.NoError(t, err)
	defer db.Close()

	cooldownPath := filepath.Join(dir, "healthguard_last.txt")
	require.NoError(t, os.WriteFile(cooldownPath, []byte("9999999999"), 0o644))

	g := New(Config{CooldownSecs: 600}, Deps{
		DataDir:      dir,
		DBPath:       filepath.Join(dir, "ai.db"),
		BackupDir:    filepath.Join(dir, "backups"),
		CooldownPath: cooldownPath,
		ProjectHash:  "hash",
		DB:           db.DB,
		Threads:      &fakeThreadLister{},
		Bridges:      &fakeOrphanCounter{},
		Agents:       &fakeAgentLister{},
		Inbox:        &fakeDeadLetterCounter{},
	})

	findings, err := g.Run(context.Background())
	require.NoError(t, err)
	require.Nil(t, findings)
}

func TestGuardRun_NoCooldownFileRunsChecksAndRecords(t *testing.T) {
	dir := t.TempDir()
	db, err := store.OpenProjectDB(filepath.Join(dir, "ai.db"), store.RoleCli)
	require.NoError(t, err)
	defer db.Close()

	cooldownPath := filepath.Join(dir, "healthguard_last.txt")

	g := New(Config{
		CooldownSecs:        600,
		DeadLetterCount:     1,
		OrphanBridgeCount:   1000,
		StaleAgentSeconds:   1000000,
		DiskFreeMB:          0,
		WalSizeMB:           1000000,
		ActiveThreadRatio:   0,
		AvgThreadWeight:     0,
		MigrationVersionLag: 1000,
		LastBackupAgeHours:  1000000,
		MaxSuggestions:      5,
	}, Deps{
		DataDir:      dir,
		DBPath:       filepath.Join(dir, "ai.db"),
		BackupDir:    filepath.Join(dir, "backups"),
		CooldownPath: cooldownPath,
		ProjectHash:  "hash",
		DB:           db.DB,
		Threads:      &fakeThreadLister{},
		Bridges:      &fakeOrphanCounter{},
		Agents:       &fakeAgentLister{},
		Inbox:        &fakeDeadLetterCounter{n: 5},
	})

	findings, err := g.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, findings)
	require.FileExists(t, cooldownPath)
}

func TestFormatInjection_EmptyReturnsEmptyString(t *testing.T) {
	require.Equal(t, "", FormatInjection(nil))
}

func TestFormatInjection_NonEmptyListsEachFinding(t *testing.T) {
	out := FormatInjection([]Finding{{Priority: PriorityHigh, Category: "disk_capacity", Message: "low disk"}})
	require.Contains(t, out, "disk_capacity")
}
