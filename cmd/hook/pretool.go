package main

import (
	"fmt"
	"os"

	"github.com/rpggio/memengine/internal/config"
	"github.com/rpggio/memengine/internal/guardianconfig"
	"github.com/rpggio/memengine/internal/store"
)

// pretoolLimit is smaller than injectLimit: a pre-tool reminder is meant
// to be skimmed in the moment before a single tool call, not read as a
// full context block.
const pretoolLimit = 3

// runPretool reads the about-to-run tool's name/arguments from stdin and
// writes a short reminder block to stdout. It uses Search rather than
// GetRelevantContext: a tool invocation is a narrower signal than a full
// prompt, and doesn't carry the strong/weak inject distinction that
// prompt-level injection does.
func runPretool(cfg config.Config, layout store.Layout, projectHash string, guardianCfg guardianconfig.Config) {
	toolContext, err := readStdin()
	if err != nil || toolContext == "" {
		return
	}

	ctx, cancel := budgetCtx()
	defer cancel()

	retriever, dbs, err := buildRetriever(ctx, cfg, layout, projectHash, guardianCfg)
	if err != nil {
		return
	}
	defer dbs.Close()

	threads, err := retriever.Search(ctx, toolContext, pretoolLimit)
	if err != nil || len(threads) == 0 {
		return
	}

	fmt.Fprint(os.Stdout, formatPretool(threads))
}
