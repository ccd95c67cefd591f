package extract

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/rpggio/memengine/internal/llm"
)

const systemPrompt = `You extract structured metadata from a single piece of agent activity.
Reply with only a JSON object: {"title":"","subjects":[],"labels":[],"concepts":[],"summary":"","confidence":0.0,"importance":0.0}.
Concepts are semantic expansions (synonyms, hypernyms, sibling domains), not verbatim keywords.
confidence and importance are both in [0,1].`

// DefaultBlockList filters labels drawn from the extractor's vocabulary against
// purely decorative or sentiment-only tags, per spec §4.1.
var DefaultBlockList = []string{"great", "awesome", "nice", "cool", "good", "bad", "interesting"}

// Service is the extractor. A nil Provider is valid and always yields
// Empty() — used when no LLM is configured.
type Service struct {
	provider  llm.Provider
	blockList map[string]struct{}
	logger    *slog.Logger
}

func New(provider llm.Provider, blockList []string, logger *slog.Logger) *Service {
	if blockList == nil {
		blockList = DefaultBlockList
	}
	bl := make(map[string]struct{}, len(blockList))
	for _, w := range blockList {
		bl[strings.ToLower(w)] = struct{}{}
	}
	return &Service{provider: provider, blockList: bl, logger: logger}
}

// Extract produces an Extraction from cleaned input text. It never
// returns an error: any provider failure or malformed reply degrades to
// Empty(), per the extractor's contract in spec §4.1.
func (s *Service) Extract(ctx context.Context, text string) Extraction {
	if s.provider == nil {
		return Empty()
	}

	raw, err := s.provider.Complete(ctx, systemPrompt, text)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("extraction LLM call failed, degrading to empty extraction", "error", err)
		}
		return Empty()
	}

	var ext Extraction
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &ext); err != nil {
		if s.logger != nil {
			s.logger.Warn("extraction reply unparseable, degrading to empty extraction", "error", err)
		}
		return Empty()
	}

	ext.Labels = s.filterLabels(ext.Labels)
	ext.Confidence = clamp01(ext.Confidence)
	ext.Importance = clamp01(ext.Importance)
	return ext
}

func (s *Service) filterLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, blocked := s.blockList[strings.ToLower(l)]; blocked {
			continue
		}
		out = append(out, l)
	}
	return out
}

// extractJSONObject trims any prose surrounding the first top-level JSON
// object in raw — LLM replies frequently wrap JSON in commentary or code
// fences despite instructions.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return raw[start : end+1]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
