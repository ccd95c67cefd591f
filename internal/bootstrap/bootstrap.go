// Package bootstrap holds the resource-opening plumbing shared by the four
// cmd binaries (daemon, hook, mcpserver, cli). The teacher has a single
// cmd/server and inlines this in main.go; here the same DB-opening,
// embedder-selection, and LLM-provider-selection logic would otherwise be
// copy-pasted four times, so it is factored out once. It contains no
// business logic of its own — only construction — so each binary's main.go
// still does its own argument parsing, transport wiring, and loop
// composition, matching the teacher's composition-root style.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rpggio/memengine/internal/config"
	"github.com/rpggio/memengine/internal/embed"
	"github.com/rpggio/memengine/internal/embed/genaiembed"
	"github.com/rpggio/memengine/internal/embed/tfidf"
	"github.com/rpggio/memengine/internal/engram"
	"github.com/rpggio/memengine/internal/llm"
	"github.com/rpggio/memengine/internal/llm/geminiprovider"
	"github.com/rpggio/memengine/internal/llm/openaiprovider"
	"github.com/rpggio/memengine/internal/store"
)

// Databases bundles the three sqlite handles the binaries open: a
// project's own ai.db plus the two process-wide stores.
type Databases struct {
	Project  *store.DB
	Registry *store.DB
	Shared   *store.DB
}

// OpenAll opens (and migrates) a project's ai.db plus registry.db and
// shared.db under the configured data directory, all with the given
// connection role.
func OpenAll(layout store.Layout, projectHash string, role store.Role) (*Databases, error) {
	project, err := store.OpenProjectDB(layout.ProjectDB(projectHash), role)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open project db: %w", err)
	}
	registryDB, err := store.OpenRegistryDB(layout.RegistryDB(), role)
	if err != nil {
		project.Close()
		return nil, fmt.Errorf("bootstrap: open registry db: %w", err)
	}
	sharedDB, err := store.OpenSharedDB(layout.SharedDB(), role)
	if err != nil {
		project.Close()
		registryDB.Close()
		return nil, fmt.Errorf("bootstrap: open shared db: %w", err)
	}
	return &Databases{Project: project, Registry: registryDB, Shared: sharedDB}, nil
}

// Close closes every handle, collecting the first error encountered.
func (d *Databases) Close() error {
	var firstErr error
	for _, db := range []*store.DB{d.Project, d.Registry, d.Shared} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BuildEmbedder resolves guardianconfig's engram.embedding.mode ("off",
// "tfidf", or anything else) into a concrete embed.Backend. "onnx" is named
// in spec §6 as a third mode but no onnx runtime ships in this pack's
// dependency set (spec §1 names the embedding-model runtime an external
// collaborator out of scope); any mode other than "off"/"tfidf" resolves to
// genaiembed when a Gemini API key is configured, falling back to tfidf
// otherwise so a project is never left with no embedder at all.
func BuildEmbedder(ctx context.Context, cfg config.Config, mode string) (embed.Backend, error) {
	switch mode {
	case "off":
		return embed.Off{}, nil
	case "tfidf":
		return tfidf.New(tfidf.DefaultDimensions), nil
	default:
		if cfg.LLM.APIKey == "" || cfg.LLM.Provider != "gemini" {
			return tfidf.New(tfidf.DefaultDimensions), nil
		}
		backend, err := genaiembed.New(ctx, cfg.LLM.APIKey)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: build genai embedder: %w", err)
		}
		return backend, nil
	}
}

// BuildLLMProvider resolves config.LLMConfig.Provider into a concrete
// llm.Provider. A missing API key is not an error: the extractor and merge
// evaluator both treat a nil provider as "LLM unavailable" and degrade
// gracefully (spec §4.1/§4.4), so an unconfigured project still runs.
func BuildLLMProvider(ctx context.Context, cfg config.Config) (llm.Provider, error) {
	if cfg.LLM.APIKey == "" {
		return nil, nil
	}
	switch cfg.LLM.Provider {
	case "gemini":
		provider, err := geminiprovider.New(ctx, cfg.LLM.APIKey, geminiprovider.WithModel(cfg.LLM.Model))
		if err != nil {
			return nil, fmt.Errorf("bootstrap: build gemini provider: %w", err)
		}
		return provider, nil
	default:
		return openaiprovider.New(cfg.LLM.APIKey, openaiprovider.WithModel(cfg.LLM.Model)), nil
	}
}

// EngramValidatorWeights pads or trims guardianCfg's validator_weights
// vector to exactly n entries, defaulting missing entries to 1.0 — spec §6
// names this a "9-element vector" but guardian_config.json predates a
// validator being added, so a short vector must not panic.
func EngramValidatorWeights(weights []float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i < len(weights) {
			out[i] = weights[i]
		} else {
			out[i] = 1.0
		}
	}
	return out
}

// BuildValidators constructs the engram package's nine-validator panel in
// the fixed order guardian_config.json's validator_weights vector indexes
// by, per spec §6. Thresholds not covered by guardian_config.json's schema
// (per-validator internal cutoffs, as distinct from thread-matching's
// continue/reactivate thresholds) use the constants spec §4.3 names.
func BuildValidators() []engram.Validator {
	return []engram.Validator{
		engram.SemanticSimilarity{Threshold: 0.55},
		engram.TopicOverlap{MinShared: 1},
		engram.TemporalProximity{},
		engram.GraphConnectivity{},
		engram.InjectionHistory{},
		engram.DecayedRelevance{MinScore: 0.1},
		engram.LabelCoherence{},
		engram.FocusAlignment{},
		engram.ConceptCoherence{MinShared: 2},
	}
}
