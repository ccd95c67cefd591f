package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rpggio/memengine/internal/bootstrap"
	"github.com/rpggio/memengine/internal/store"
)

func newShowCmd(projectPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <thread-id>",
		Short: "Show a thread's detail",
		Args:  cobra.ExactArgs(1),
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
			th, err := threads.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get thread: %w", err)
			}

			messages := store.NewMessageRepository(dbs.Project)
			msgs, err := messages.ListByThread(cmd.Context(), th.ID)
			if err != nil {
				return fmt.Errorf("list messages: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:         %s\n", th.ID)
			fmt.Fprintf(out, "title:      %s\n", th.Title)
			fmt.Fprintf(out, "status:     %s\n", th.Status)
			fmt.Fprintf(out, "origin:     %s\n", th.Origin)
			fmt.Fprintf(out, "weight:     %.3f\n", th.Weight)
			fmt.Fprintf(out, "importance: %.3f\n", th.Importance)
			fmt.Fprintf(out, "created:    %s\n", th.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
			fmt.Fprintf(out, "last_active:%s\n", th.LastActive.Format("2006-01-02T15:04:05Z07:00"))
			fmt.Fprintf(out, "topics:     %s\n", strings.Join(th.Topics, ", "))
			fmt.Fprintf(out, "labels:     %s\n", strings.Join(th.Labels, ", "))
			fmt.Fprintf(out, "concepts:   %s\n", strings.Join(th.Concepts, ", "))
			if th.Summary != "" {
				fmt.Fprintf(out, "summary:    %s\n", th.Summary)
			}
			fmt.Fprintf(out, "messages:   %d\n", len(msgs))
			for _, msg := range msgs {
				fmt.Fprintf(out, "  [%s/%s] %s\n", msg.SourceType, msg.Source, truncate(msg.Content, 120))
			}
			return nil
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
