package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rpggio/memengine/internal/memory"
)

const systemPrompt = `You arbitrate whether two overlapping memory threads should be merged.
Reply with only a JSON object.
To merge: {"decision":"merge","survivor":"A"|"B","title":"...","summary":"..."}.
To reject: {"decision":"reject","reason":"..."}.
Prefer the survivor with more messages or higher importance when merging.`

// BuildPrompt presents both threads' metadata plus a sample of their
// recent messages (first 2 + last 3, each truncated) to the LLM, capped
// at MaxPromptLen total, per spec §4.4.
func BuildPrompt(a, b *memory.Thread, aMessages, bMessages []memory.ThreadMessage) string {
	var sb strings.Builder
	sb.WriteString("Thread A:\n")
	writeThreadSummary(&sb, a, aMessages)
	sb.WriteString("\nThread B:\n")
	writeThreadSummary(&sb, b, bMessages)

	prompt := sb.String()
	if len(prompt) > MaxPromptLen {
		prompt = prompt[:MaxPromptLen]
	}
	return prompt
}

func writeThreadSummary(sb *strings.Builder, th *memory.Thread, messages []memory.ThreadMessage) {
	fmt.Fprintf(sb, "id=%s title=%q topics=%v labels=%v concepts=%v importance=%.2f weight=%.2f\n",
		th.ID, th.Title, th.Topics, th.Labels, th.Concepts, th.Importance, th.Weight)
	for _, msg := range sampleMessages(messages) {
		sb.WriteString("- ")
		sb.WriteString(truncate(msg.Content, MaxMessageExcerptLen))
		sb.WriteString("\n")
	}
}

// sampleMessages returns the first 2 and last 3 messages (deduplicated
// when the slice is shorter than that), preserving order.
func sampleMessages(messages []memory.ThreadMessage) []memory.ThreadMessage {
	if len(messages) <= 5 {
		return messages
	}
	sample := make([]memory.ThreadMessage, 0, 5)
	sample = append(sample, messages[:2]...)
	sample = append(sample, messages[len(messages)-3:]...)
	return sample
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// ConsolidateAfterMerge unions survivor and absorbed metadata into
// survivor: topics/labels/concepts union -> case-insensitive dedup ->
// substring elimination on topics -> cap to maxima; weight takes the max
// of the two; title/summary come from the LLM decision.
func ConsolidateAfterMerge(survivor, absorbed *memory.Thread, decision Decision) {
	survivor.Topics = append(survivor.Topics, absorbed.Topics...)
	survivor.Labels = append(survivor.Labels, absorbed.Labels...)
	survivor.Concepts = append(survivor.Concepts, absorbed.Concepts...)
	survivor.NormalizeBags()

	if absorbed.Weight > survivor.Weight {
		survivor.Weight = absorbed.Weight
	}
	if decision.Title != "" {
		survivor.Title = decision.Title
	}
	if decision.Summary != "" {
		survivor.Summary = decision.Summary
	}
}

// ApplyRejectPenalty reduces a rejected candidate bridge's confidence by
// RejectConfidencePenalty (floored at 0) and annotates its reason.
func ApplyRejectPenalty(b *memory.Bridge, reason string) {
	b.Confidence -= RejectConfidencePenalty
	if b.Confidence < 0 {
		b.Confidence = 0
	}
	b.Reason = b.Reason + ";merge_rejected:" + reason
}

// sortedCopy is used by tests to get deterministic bag ordering.
func sortedCopy(items []string) []string {
	out := append([]string(nil), items...)
	sort.Strings(out)
	return out
}
