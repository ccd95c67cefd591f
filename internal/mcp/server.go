package mcp

import (
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `ai-smartness stores a cognitive-memory graph of Threads connected by
typed, weighted Bridges. Call ai_recall before answering a user message to
surface relevant prior context; call ai_focus to bias retrieval toward the
topics you're currently working on. ai_thread_suspend, ai_label, and
ai_merge let you curate the graph directly; ai_bridge_scan_orphans and
ai_backup are maintenance operations normally run by the daemon.`

// Config contains the MCP server's wiring.
type Config struct {
	Handler *Handler
	Logger  *slog.Logger
}

// NewServer creates and configures an MCP server exposing the
// ai-smartness tool catalog.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "ai-smartness",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerTools(server, cfg.Handler)
	return server
}
