// Command cli is the administrative surface over a project's memory store:
// list/show threads, trigger a backup, and reclaim space with vacuum. It is
// not a product surface (the host-facing operations live behind cmd/hook and
// cmd/mcpserver) — just thin wiring over the same internal packages those
// two binaries compose, grounded on the teacher's single composition-root
// style in cmd/server/main.go.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rpggio/memengine/internal/config"
	"github.com/rpggio/memengine/internal/store"
)

// cliContext resolves once per invocation from the --project flag: the
// loaded process configuration, the data-directory layout, and the hash of
// the project's absolute path.
type cliContext struct {
	cfg         config.Config
	layout      store.Layout
	projectHash string
}

func resolveContext(projectPath string) (*cliContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}
	return &cliContext{
		cfg:         cfg,
		layout:      store.Layout{DataDir: cfg.Data.Dir},
		projectHash: store.ProjectHash(abs),
	}, nil
}

func main() {
	var projectPath string

	root := &cobra.Command{
		Use:           "memengine-cli",
		Short:         "Administrative commands for a project's memory store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&projectPath, "project", ".", "path to the project directory")

	root.AddCommand(
		newListCmd(&projectPath),
		newShowCmd(&projectPath),
		newBackupCmd(&projectPath),
		newVacuumCmd(&projectPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
