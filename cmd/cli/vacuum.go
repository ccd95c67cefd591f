package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpggio/memengine/internal/bootstrap"
	"github.com/rpggio/memengine/internal/store"
)

// newVacuumCmd runs an in-place VACUUM, distinct from backup's VACUUM INTO:
// this reclaims space in the live ai.db file rather than producing a
// separate copy, so it takes the same exclusive lock VACUUM always does
// against concurrent writers — an operator command, not something a
// daemon/hook/mcpserver process would run on its own.
func newVacuumCmd(projectPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Reclaim space in the project's database in place",
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

			if _, err := dbs.Project.ExecContext(cmd.Context(), "VACUUM"); err != nil {
				return fmt.Errorf("vacuum: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "vacuum complete")
			return nil
		},
	}
}
