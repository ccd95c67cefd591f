// Package embed defines the embedding backend contract spec §1 names as an
// external collaborator ("the embedding-model runtime"): a single
// text-to-vector call, with mode ∈ {off, tfidf, onnx} selected by
// guardianconfig's engram.embedding.mode.
package embed

import (
	"context"
	"math"
)

// Backend turns text into a fixed-length vector. A nil/zero-length result
// with a nil error is valid and means "no embedding available" — callers
// (the thread manager, the retriever) treat that the same as mode=off.
type Backend interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Off is the zero backend used when guardianconfig's engram.embedding.mode
// is "off": every call returns nil, and the thread manager's decision
// algorithm always emits NewThread per spec §4.2.
type Off struct{}

func (Off) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }
func (Off) Dimensions() int                                           { return 0 }

// Cosine computes cosine similarity between two embeddings of equal
// length. Returns 0 if either is empty or their norms are zero.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
