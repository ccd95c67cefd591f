package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rpggio/memengine/internal/bootstrap"
	"github.com/rpggio/memengine/internal/store"
)

func newListCmd(projectPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List threads in the project",
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

			threads := store.NewThreadRepository(dbs.Project)
			all, err := threads.ListAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("list threads: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tWEIGHT\tTITLE")
			for _, th := range all {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", th.ID, th.Status, th.Weight, th.Title)
			}
			return w.Flush()
		},
	}
}
