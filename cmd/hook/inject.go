package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/rpggio/memengine/internal/config"
	"github.com/rpggio/memengine/internal/guardianconfig"
	"github.com/rpggio/memengine/internal/store"
)

// injectLimit caps how many threads a single inject call surfaces. The
// spec names no fixed count; this keeps a context injection small enough
// to stay cheap to read, the same order of magnitude as a thread's own
// concept bag cap (memory.MaxConcepts).
const injectLimit = 8

// runInject reads the agent's outgoing prompt from stdin and writes
// injection text to stdout — the context the host splices in ahead of the
// prompt. Any failure degrades to empty output, never an error exit.
func runInject(cfg config.Config, layout store.Layout, projectHash string, guardianCfg guardianconfig.Config) {
	prompt, err := readStdin()
	if err != nil || prompt == "" {
		return
	}

	ctx, cancel := budgetCtx()
	defer cancel()

	retriever, dbs, err := buildRetriever(ctx, cfg, layout, projectHash, guardianCfg)
	if err != nil {
		return
	}
	defer dbs.Close()

	threads, err := retriever.GetRelevantContext(ctx, prompt, nil, injectLimit)
	if err != nil || len(threads) == 0 {
		return
	}

	fmt.Fprint(os.Stdout, formatInjection(threads))
}

func readStdin() (string, error) {
	data, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
