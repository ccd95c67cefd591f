// Command hook is the short-lived per-event binary an agent host invokes
// around a prompt/tool-output boundary: inject (before the prompt reaches
// the model), capture (after a tool produces output), and pretool (before
// a tool call executes). Every subcommand is budget-bound and never fails
// the host — per spec §7, a hook catches everything and exits 0.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rpggio/memengine/internal/config"
	"github.com/rpggio/memengine/internal/guardianconfig"
	"github.com/rpggio/memengine/internal/store"
)

// hookBudget is the hard wall-clock budget a hook subcommand's retrieval or
// capture work runs under, per spec §5: whatever isn't ready by then is
// abandoned, never waited past, so the host is never blocked on a hook.
const hookBudget = 100 * time.Millisecond

func main() {
	defer func() {
		if recover() != nil {
			os.Exit(0)
		}
	}()

	if len(os.Args) < 3 {
		os.Exit(0)
	}
	subcommand := os.Args[1]
	projectHash := os.Args[2]

	cfg, err := config.Load()
	if err != nil {
		os.Exit(0)
	}
	layout := store.Layout{DataDir: cfg.Data.Dir}
	guardianCfg, err := guardianconfig.Load(layout.GuardianConfig(projectHash))
	if err != nil {
		os.Exit(0)
	}

	switch subcommand {
	case "inject":
		if guardianCfg.Hooks.InjectEnabled {
			runInject(cfg, layout, projectHash, guardianCfg)
		}
	case "capture":
		if guardianCfg.Hooks.CaptureEnabled {
			runCapture(cfg, layout, projectHash, guardianCfg)
		}
	case "pretool":
		if guardianCfg.Hooks.InjectEnabled {
			runPretool(cfg, layout, projectHash, guardianCfg)
		}
	default:
		fmt.Fprintf(os.Stderr, "hook: unknown subcommand %q\n", subcommand)
	}
	os.Exit(0)
}

func budgetCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), hookBudget)
}
