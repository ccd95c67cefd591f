package main

import (
	"strings"

	"github.com/rpggio/memengine/internal/memory"
)

// formatInjection renders threads as the plain-text context block spliced
// ahead of the agent's prompt. original_source/src/provider.rs leaves this
// to a per-host AiProvider::format_injection implementation; host-specific
// formatters are named out of scope (spec §1's "command-line surfaces" /
// editor-integration exclusion), so this is the one generic rendering
// every host sees, a flat labelled list rather than any host's native
// markup.
func formatInjection(threads []*memory.Thread) string {
	var b strings.Builder
	b.WriteString("## Relevant memory\n\n")
	for _, th := range threads {
		b.WriteString("- ")
		b.WriteString(th.Title)
		if th.Summary != "" {
			b.WriteString(": ")
			b.WriteString(th.Summary)
		}
		if len(th.Labels) > 0 {
			b.WriteString(" [")
			b.WriteString(strings.Join(th.Labels, ", "))
			b.WriteString("]")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// formatPretool renders a terser reminder form for the pre-tool-call
// boundary: titles and labels only, no summaries, since this fires once
// per tool call and needs to stay cheap to skim mid-task.
func formatPretool(threads []*memory.Thread) string {
	var b strings.Builder
	b.WriteString("## Before this tool call, recall\n\n")
	for _, th := range threads {
		b.WriteString("- ")
		b.WriteString(th.Title)
		if len(th.Labels) > 0 {
			b.WriteString(" [")
			b.WriteString(strings.Join(th.Labels, ", "))
			b.WriteString("]")
		}
		b.WriteString("\n")
	}
	return b.String()
}
