package main

import (
	"github.com/rpggio/memengine/internal/bootstrap"
	"github.com/rpggio/memengine/internal/capture"
	"github.com/rpggio/memengine/internal/coherence"
	"github.com/rpggio/memengine/internal/config"
	"github.com/rpggio/memengine/internal/extract"
	"github.com/rpggio/memengine/internal/guardianconfig"
	"github.com/rpggio/memengine/internal/manager"
	"github.com/rpggio/memengine/internal/registry"
	"github.com/rpggio/memengine/internal/store"
)

// runCapture reads one piece of raw tool output from stdin and runs it
// through clean -> gate -> extract -> manager.Handle. The hook contract
// (spec §6) names no agent id on this subcommand, so the thread quota
// used is the project-wide registry.QuotaNormal band; a per-agent quota
// would need the hook call site to pass an agent id, which it doesn't.
// Every failure here — gate rejection, LLM timeout, store error — is
// swallowed: the hook never writes to stdout and always exits 0, per
// spec §7's "hooks never raise to the host".
func runCapture(cfg config.Config, layout store.Layout, projectHash string, guardianCfg guardianconfig.Config) {
	raw, err := readStdin()
	if err != nil || raw == "" {
		return
	}

	cleaned := capture.Clean(raw)
	gate := capture.NewGate(guardianCfg.Capture.MinCaptureLength)
	if !gate.Accept(cleaned) {
		return
	}

	ctx, cancel := budgetCtx()
	defer cancel()

	dbs, err := bootstrap.OpenAll(layout, projectHash, store.RoleHook)
	if err != nil {
		return
	}
	defer dbs.Close()

	embedder, err := bootstrap.BuildEmbedder(ctx, cfg, guardianCfg.Engram.Embedding.Mode)
	if err != nil {
		return
	}
	provider, err := bootstrap.BuildLLMProvider(ctx, cfg)
	if err != nil {
		return
	}

	extractor := extract.New(provider, guardianCfg.Capture.BlockList, nil)
	ext := extractor.Extract(ctx, cleaned)
	if ext.Confidence == 0 {
		return
	}

	threads := store.NewThreadRepository(dbs.Project)
	messages := store.NewMessageRepository(dbs.Project)
	bridges := store.NewBridgeRepository(dbs.Project)

	concepts, topics, err := rebuildIndexesFrom(ctx, threads)
	if err != nil {
		return
	}

	checker := coherence.New(provider, embedder, guardianCfg.Coherence.LLM.Enabled, nil)
	parentHint, err := coherence.ParentHint(ctx, checker, threads,
		guardianCfg.Coherence.ChildThreshold, guardianCfg.Coherence.OrphanThreshold, cleaned)
	if err != nil {
		parentHint = nil
	}

	mgr := manager.New(threads, messages, bridges, embedder, concepts, topics,
		guardianCfg.ThreadMatching, registry.QuotaNormal.Quota(), nil)

	mgr.Handle(ctx, raw, ext, parentHint)
}
