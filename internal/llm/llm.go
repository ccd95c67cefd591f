// Package llm defines the narrow LLM helper contract the extractor and
// merge evaluator call through: a single JSON-in, JSON-out completion
// call, deliberately smaller than a full chat/tool-use interface since
// neither caller needs streaming, tools, or multi-turn history — they
// each make one prompt-in/structured-answer-out call and must degrade
// gracefully when it fails.
package llm

import "context"

// Provider is the subprocess/API boundary spec §1 treats as an external
// collaborator: a single-shot text completion.
type Provider interface {
	// Complete sends systemPrompt + prompt and returns the raw text
	// response. Implementations must return a non-nil error rather than
	// an empty string on failure, so callers can distinguish "LLM said
	// nothing useful" from "LLM call failed."
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}
