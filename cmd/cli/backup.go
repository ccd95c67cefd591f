package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpggio/memengine/internal/backup"
	"github.com/rpggio/memengine/internal/bootstrap"
	"github.com/rpggio/memengine/internal/store"
)

func newBackupCmd(projectPath *string) *cobra.Command {
	var prune time.Duration

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Take an online backup of the project's database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := resolveContext(*projectPath)
			if err != nil {
				return err
			}
			dbs, err := bootstrap.OpenAll(cliCtx.layout, cliCtx.projectHash, store.RoleCli)
			if err != nil {
				return fmt.Errorf("open databases: %w", err)
			}
			defer dbs.Close()

			destDir := filepath.Join(cliCtx.layout.ProjectDir(cliCtx.projectHash), "backups")
			svc := backup.New(dbs.Project, destDir)

			result, err := svc.Run(cmd.Context(), "ai")
			if err != nil {
				return fmt.Errorf("backup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", result.DestPath, result.Bytes)

			if prune > 0 {
				removed, err := svc.Prune("ai", prune)
				if err != nil {
					return fmt.Errorf("prune: %w", err)
				}
				if removed > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "pruned %d old backup(s)\n", removed)
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&prune, "prune-older-than", 0, "also remove backups older than this duration (e.g. 168h)")
	return cmd
}
