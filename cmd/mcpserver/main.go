// Command mcpserver is the long-lived process that speaks the MCP tool
// catalog (ai_recall, ai_thread_suspend, ai_merge, ai_label, ai_focus,
// ai_bridge_scan_orphans, ai_backup) to an external LLM host, a direct
// generalization of the teacher's cmd/server — same SDK, same stdio/HTTP
// transport split, but scoped to a single project (passed by hash, spec
// §6's `<bin> mcp <project_hash>` contract) rather than the teacher's
// multi-tenant API-key-gated surface: this domain has no tenant concept,
// a project's daemon and mcpserver are both already scoped to one project
// directory, so the teacher's apiKeyResolver/AuthEnabled path is dropped.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/memengine/internal/backup"
	"github.com/rpggio/memengine/internal/bootstrap"
	"github.com/rpggio/memengine/internal/config"
	"github.com/rpggio/memengine/internal/engram"
	"github.com/rpggio/memengine/internal/guardianconfig"
	"github.com/rpggio/memengine/internal/index"
	"github.com/rpggio/memengine/internal/mcp"
	"github.com/rpggio/memengine/internal/merge"
	"github.com/rpggio/memengine/internal/observability"
	"github.com/rpggio/memengine/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: mcpserver <project-hash>")
		os.Exit(1)
	}
	projectHash := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	layout := store.Layout{DataDir: cfg.Data.Dir}

	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	logPath := cfg.Log.File
	if logPath != "" {
		rotating, err := observability.OpenRotatingFile(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer rotating.Close()
			logWriter = rotating
		}
	}
	logger := observability.NewLogger(logWriter, observability.ParseLevel(cfg.Log.Level))

	guardianCfg, err := guardianconfig.Load(layout.GuardianConfig(projectHash))
	if err != nil {
		logger.Error("failed to load guardian config", "error", err)
		os.Exit(1)
	}

	dbs, err := bootstrap.OpenAll(layout, projectHash, store.RoleMcp)
	if err != nil {
		logger.Error("failed to open databases", "error", err)
		os.Exit(1)
	}
	defer dbs.Close()

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

	concepts := index.New()
	topics := index.New()
	rebuildIndexes(ctx, threads, concepts, topics, logger)

	validators := bootstrap.BuildValidators()
	weights := bootstrap.EngramValidatorWeights(guardianCfg.Engram.ValidatorWeights, len(validators))
	retriever := engram.New(threads, bridges, topics, concepts, embedder, validators, weights,
		guardianCfg.Engram.StrongInjectMin, guardianCfg.Engram.WeakInjectMin, guardianCfg.Engram.MaxCandidates)

	mergeEvaluator := merge.New(threads, messages, bridges, mergeExec, provider, embedder, logger)
	backupSvc := backup.New(dbs.Project, layout.ProjectDir(projectHash)+"/backups")

	handler := mcp.NewHandler(threads, bridges, retriever, mergeEvaluator, backupSvc)
	mcpServer := mcp.NewServer(mcp.Config{Handler: handler, Logger: logger})

	if cfg.Transport.Mode == "stdio" {
		runStdioMode(ctx, cancel, logger, mcpServer)
	} else {
		runHTTPMode(logger, mcpServer, cfg.Server.Host, cfg.Server.Port)
	}
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

func runStdioMode(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, mcpServer *sdkmcp.Server) {
	logger.Info("starting stdio transport")

	transport := &sdkmcp.StdioTransport{}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	if err := mcpServer.Run(ctx, transport); err != nil {
		logger.Error("stdio server error", "error", err)
		os.Exit(1)
	}
}

func runHTTPMode(logger *slog.Logger, mcpServer *sdkmcp.Server, host string, port int) {
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{Stateless: false, SessionTimeout: 30 * time.Minute},
	)

	router := http.NewServeMux()
	router.Handle("/mcp", mcpHandler)
	router.Handle("/mcp/", mcpHandler)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{Addr: addr, Handler: router}

	go func() {
		logger.Info("mcp server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
