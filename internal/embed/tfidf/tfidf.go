// Package tfidf implements embed.Backend without any external model:
// a hashed bag-of-words vector, normalized to unit length so cosine
// similarity behaves like it would against a real embedding model. This
// is the degrade path spec §1 names as the "bag-of-words fallback" for
// when no LLM/embedding provider is configured — stdlib-only by design,
// since the whole point is to work with zero external dependencies.
package tfidf

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/rpggio/memengine/internal/embed"
)

const DefaultDimensions = 256

type Backend struct {
	dimensions int
}

func New(dimensions int) *Backend {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Backend{dimensions: dimensions}
}

var _ embed.Backend = (*Backend)(nil)

// Embed tokenizes text, hashes each token into a bucket in [0,dimensions),
// accumulates term frequency per bucket, then L2-normalizes — a feature-
// hashed bag-of-words vector, not a true TF-IDF (no corpus-wide document
// frequencies are tracked; "tfidf" names the family of technique, not a
// literal IDF term this package computes).
func (b *Backend) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float64, b.dimensions)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return make([]float32, b.dimensions), nil
	}

	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		bucket := int(h.Sum32()) % b.dimensions
		if bucket < 0 {
			bucket += b.dimensions
		}
		vec[bucket]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, b.dimensions)
	if norm == 0 {
		return out, nil
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (b *Backend) Dimensions() int { return b.dimensions }

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
