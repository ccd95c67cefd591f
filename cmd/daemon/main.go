package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rpggio/memengine/internal/backup"
	"github.com/rpggio/memengine/internal/bootstrap"
	"github.com/rpggio/memengine/internal/broker"
	"github.com/rpggio/memengine/internal/config"
	"github.com/rpggio/memengine/internal/decay"
	"github.com/rpggio/memengine/internal/engram"
	"github.com/rpggio/memengine/internal/gossip"
	"github.com/rpggio/memengine/internal/guardianconfig"
	"github.com/rpggio/memengine/internal/healthguard"
	"github.com/rpggio/memengine/internal/inbox"
	"github.com/rpggio/memengine/internal/index"
	"github.com/rpggio/memengine/internal/merge"
	"github.com/rpggio/memengine/internal/observability"
	"github.com/rpggio/memengine/internal/registry"
	"github.com/rpggio/memengine/internal/store"
	"github.com/rpggio/memengine/internal/worker"
	redis "github.com/redis/go-redis/v9"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: daemon <project-path>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	projectPath, err := filepath.Abs(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve project path: %v\n", err)
		os.Exit(1)
	}
	layout := store.Layout{DataDir: cfg.Data.Dir}
	projectHash := store.ProjectHash(projectPath)

	logWriter := io.Writer(os.Stderr)
	logPath := cfg.Log.File
	if logPath == "" {
		logPath = layout.DaemonLog(projectHash)
	}
	rotating, err := observability.OpenRotatingFile(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
	} else {
		defer rotating.Close()
		logWriter = rotating
	}
	logger := observability.NewLogger(logWriter, observability.ParseLevel(cfg.Log.Level))

	dbs, err := bootstrap.OpenAll(layout, projectHash, store.RoleDaemon)
	if err != nil {
		logger.Error("failed to open databases", "error", err)
		os.Exit(1)
	}
	defer dbs.Close()

	guardianCfg, err := guardianconfig.Load(layout.GuardianConfig(projectHash))
	if err != nil {
		logger.Error("failed to load guardian config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	embedder, err := bootstrap.BuildEmbedder(ctx, cfg, guardianCfg.Engram.Embedding.Mode)
	if err != nil {
		logger.Error("failed to build embedder", "error", err)
		os.Exit(1)
	}
	provider, err := bootstrap.BuildLLMProvider(ctx, cfg)
	if err != nil {
		logger.Error("failed to build LLM provider", "error", err)
		os.Exit(1)
	}

	threads := store.NewThreadRepository(dbs.Project)
	bridges := store.NewBridgeRepository(dbs.Project)
	messages := store.NewMessageRepository(dbs.Project)
	mergeExec := store.NewMergeExecutor(dbs.Project)
	agents := store.NewAgentRepository(dbs.Registry)
	inboxRepo := store.NewInboxRepository(dbs.Shared)
	brokerStore := store.NewBrokerStore(dbs.Shared)

	concepts := index.New()
	topics := index.New()
	rebuildIndexes(ctx, threads, concepts, topics, logger)

	validators := bootstrap.BuildValidators()
	weights := bootstrap.EngramValidatorWeights(guardianCfg.Engram.ValidatorWeights, len(validators))
	retriever := engram.New(threads, bridges, topics, concepts, embedder, validators, weights,
		guardianCfg.Engram.StrongInjectMin, guardianCfg.Engram.WeakInjectMin, guardianCfg.Engram.MaxCandidates)

	mergeEvaluator := merge.New(threads, messages, bridges, mergeExec, provider, embedder, logger)
	pool := worker.New(4)
	mergeSink := newAsyncMergeSink(pool, mergeEvaluator, logger)
	gossipEngine := gossip.New(threads, bridges, concepts, topics, mergeSink, guardianCfg.Gossip, logger)
	decayer := decay.NewDecayer(threads, bridges, logger)
	archiver := decay.NewArchiver(threads, guardianCfg.Decay)
	backupSvc := backup.New(dbs.Project, filepath.Join(layout.ProjectDir(projectHash), "backups"))
	registrySvc := registry.NewService(agents, logger)
	inboxSvc := inbox.NewService(inboxRepo, logger)

	hgCfg := guardianCfg.Healthguard
	guard := healthguard.New(healthguard.Config{
		DiskFreeMB:          hgCfg.DiskFreeMB,
		WalSizeMB:           hgCfg.WalSizeMB,
		OrphanBridgeCount:   hgCfg.OrphanBridgeCount,
		StaleAgentSeconds:   hgCfg.StaleAgentSeconds,
		DeadLetterCount:     hgCfg.DeadLetterCount,
		ActiveThreadRatio:   hgCfg.ActiveThreadRatio,
		AvgThreadWeight:     hgCfg.AvgThreadWeight,
		MigrationVersionLag: hgCfg.MigrationVersionLag,
		LastBackupAgeHours:  hgCfg.LastBackupAgeHours,
		MaxSuggestions:      hgCfg.MaxSuggestions,
		CooldownSecs:        hgCfg.CooldownSecs,
	}, healthguard.Deps{
		DataDir:      cfg.Data.Dir,
		DBPath:       layout.ProjectDB(projectHash),
		BackupDir:    filepath.Join(layout.ProjectDir(projectHash), "backups"),
		CooldownPath: layout.HealthguardCooldown(projectHash),
		ProjectHash:  projectHash,
		DB:           dbs.Project.DB,
		Threads:      threads,
		Bridges:      bridges,
		Agents:       agents,
		Inbox:        inboxRepo,
		Logger:       logger,
	})

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	}
	brokerInst := broker.New(brokerStore, redisClient, logger)

	metrics := observability.NewMetrics()

	d := &daemon{
		projectHash: projectHash,
		retriever:   retriever,
		decayer:     decayer,
		archiver:    archiver,
		gossip:      gossipEngine,
		mergeSink:   mergeSink,
		backup:      backupSvc,
		registry:    registrySvc,
		inbox:       inboxSvc,
		broker:      brokerInst,
		projectDB:   dbs.Project,
		healthguard: guard,
		guardianCfg: guardianCfg,
		metrics:     metrics,
		logger:      logger,
	}

	var wg sync.WaitGroup
	d.startLoops(ctx, &wg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if err := metrics.WriteProm(w); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	httpServer := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Daemon.Host, cfg.Daemon.Port), Handler: mux}
	go func() {
		logger.Info("daemon http listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	wg.Wait()
}

func rebuildIndexes(ctx context.Context, threads *store.ThreadRepository, concepts, topics *index.Index, logger *slog.Logger) {
	all, err := threads.ListAll(ctx)
	if err != nil {
		logger.Error("failed to rebuild indexes", "error", err)
		return
	}
	conceptItems := make([]index.ThreadTerms, 0, len(all))
	topicItems := make([]index.ThreadTerms, 0, len(all))
	for _, th := range all {
		conceptItems = append(conceptItems, index.ThreadTerms{ThreadID: th.ID, Terms: th.Concepts})
		topicItems = append(topicItems, index.ThreadTerms{ThreadID: th.ID, Terms: th.Topics})
	}
	concepts.Rebuild(conceptItems)
	topics.Rebuild(topicItems)
}
