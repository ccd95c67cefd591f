package healthguard

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config names the nine check thresholds plus the cooldown between runs.
// Mirrors guardianconfig.HealthguardConfig field-for-field; kept as its
// own type so this package does not import guardianconfig, following the
// narrow-interface convention internal/merge and internal/manager already
// use for their storage dependencies.
type Config struct {
	DiskFreeMB          int
	WalSizeMB           int
	OrphanBridgeCount   int
	StaleAgentSeconds   int
	DeadLetterCount     int
	ActiveThreadRatio   float64
	AvgThreadWeight     float64
	MigrationVersionLag int
	LastBackupAgeHours  float64
	MaxSuggestions      int
	CooldownSecs        int
}

// Guard runs the nine checks against one project's storage on a cooldown,
// grounded on healthguard.rs's HealthGuard: a thin struct over already-open
// repositories and filesystem paths, no storage ownership of its own.
type Guard struct {
	cfg Config

	dataDir      string
	dbPath       string
	backupDir    string
	cooldownPath string
	projectHash  string

	db      *sql.DB
	threads ThreadLister
	bridges OrphanCounter
	agents  AgentLister
	inbox   DeadLetterCounter

	now    func() time.Time
	logger *slog.Logger
}

// Deps bundles the storage handles a Guard checks against, grounded on how
// cmd/daemon/main.go already assembles one *store.DB and one repository per
// aggregate for every other background loop.
type Deps struct {
	DataDir      string
	DBPath       string
	BackupDir    string
	CooldownPath string
	ProjectHash  string

	DB      *sql.DB
	Threads ThreadLister
	Bridges OrphanCounter
	Agents  AgentLister
	Inbox   DeadLetterCounter

	Logger *slog.Logger
}

func New(cfg Config, deps Deps) *Guard {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		cfg:          cfg,
		dataDir:      deps.DataDir,
		dbPath:       deps.DBPath,
		backupDir:    deps.BackupDir,
		cooldownPath: deps.CooldownPath,
		projectHash:  deps.ProjectHash,
		db:           deps.DB,
		threads:      deps.Threads,
		bridges:      deps.Bridges,
		agents:       deps.Agents,
		inbox:        deps.Inbox,
		now:          time.Now,
		logger:       logger,
	}
}

// Run executes every check once, in cooldown-gated fashion: if the last
// run recorded in cooldownPath is more recent than CooldownSecs ago, Run
// returns (nil, nil) without touching storage at all, mirroring
// healthguard.rs's in_cooldown short-circuit ahead of analyze's six
// queries. On completion (cooldown skip aside) it records the new
// cooldown timestamp regardless of how many findings came back, exactly
// as the original's record_injection runs unconditionally at the end of
// analyze.
func (g *Guard) Run(ctx context.Context) ([]Finding, error) {
	skip, err := g.inCooldown()
	if err != nil {
		g.logger.Warn("healthguard: cooldown read failed, running anyway", "error", err)
	} else if skip {
		return nil, nil
	}

	var findings []Finding
	g.collect(&findings, func() (*Finding, error) { return checkDiskFree(g.dataDir, g.cfg.DiskFreeMB) })
	g.collect(&findings, func() (*Finding, error) { return checkWALSize(g.dbPath, g.cfg.WalSizeMB) })
	g.collect(&findings, func() (*Finding, error) { return checkOrphanBridges(ctx, g.bridges, g.cfg.OrphanBridgeCount) })
	g.collect(&findings, func() (*Finding, error) {
		return checkStaleAgents(ctx, g.agents, g.projectHash, g.cfg.StaleAgentSeconds, g.now())
	})
	g.collect(&findings, func() (*Finding, error) { return checkDeadLetters(ctx, g.inbox, g.cfg.DeadLetterCount) })
	g.collect(&findings, func() (*Finding, error) { return checkMigrationLag(g.db, g.cfg.MigrationVersionLag) })
	g.collect(&findings, func() (*Finding, error) { return checkBackupAge(g.backupDir, g.cfg.LastBackupAgeHours, g.now()) })

	all, err := g.threads.ListAll(ctx)
	if err != nil {
		g.logger.Warn("healthguard: thread fragmentation/weight checks failed", "error", err)
	} else {
		active, err := g.threads.CountActive(ctx)
		if err != nil {
			g.logger.Warn("healthguard: active thread count failed", "error", err)
		} else if f := checkActiveThreadRatio(all, active, g.cfg.ActiveThreadRatio); f != nil {
			findings = append(findings, *f)
		}
		if f := checkAvgThreadWeight(all, g.cfg.AvgThreadWeight); f != nil {
			findings = append(findings, *f)
		}
	}

	sortByPriorityDesc(findings)
	if max := g.cfg.MaxSuggestions; max > 0 && len(findings) > max {
		findings = findings[:max]
	}

	if err := g.recordRun(); err != nil {
		g.logger.Warn("healthguard: failed to record cooldown", "error", err)
	}
	return findings, nil
}

// collect runs one check, logging (never propagating) its error so one
// failing check never stops the rest from running, the same
// degrade-don't-cascade policy cmd/daemon/loops.go's runLoop applies
// across passes applied here across checks within a single pass.
func (g *Guard) collect(findings *[]Finding, check func() (*Finding, error)) {
	f, err := check()
	if err != nil {
		g.logger.Warn("healthguard: check failed", "error", err)
		return
	}
	if f != nil {
		*findings = append(*findings, *f)
	}
}

func (g *Guard) inCooldown() (bool, error) {
	data, err := os.ReadFile(g.cooldownPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	sec, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse cooldown timestamp: %w", err)
	}
	last := time.Unix(sec, 0)
	return g.now().Sub(last) < time.Duration(g.cfg.CooldownSecs)*time.Second, nil
}

func (g *Guard) recordRun() error {
	return os.WriteFile(g.cooldownPath, []byte(strconv.FormatInt(g.now().Unix(), 10)), 0o644)
}

// FormatInjection renders findings as the short, line-per-finding report
// surfaced to an operator or logged by the daemon loop, grounded on
// healthguard.rs's format_injection.
func FormatInjection(findings []Finding) string {
	if len(findings) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("healthguard findings:\n")
	for _, f := range findings {
		b.WriteString("- ")
		b.WriteString(f.String())
		b.WriteString("\n")
	}
	return b.String()
}
