package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsDimensions(t *testing.T) {
	b := New(0)
	require.Equal(t, DefaultDimensions, b.Dimensions())
}

func TestEmbed_EmptyTextReturnsZeroVector(t *testing.T) {
	b := New(16)
	v, err := b.Embed(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, v, 16)
	for _, x := range v {
		require.Equal(t, float32(0), x)
	}
}

func TestEmbed_IsUnitNormalized(t *testing.T) {
	b := New(32)
	v, err := b.Embed(context.Background(), "ci build flaky retry backoff")
	require.NoError(t, err)

	var normSq float64
	for _, x := range v {
		normSq += float64(x) * float64(x)
	}
	require.InDelta(t, 1.0, math.Sqrt(normSq), 0.0001)
}

func TestEmbed_IsDeterministic(t *testing.T) {
	b := New(32)
	v1, _ := b.Embed(context.Background(), "same text twice")
	v2, _ := b.Embed(context.Background(), "same text twice")
	require.Equal(t, v1, v2)
}

func TestEmbed_DifferentTextYieldsDifferentVector(t *testing.T) {
	b := New(32)
	v1, _ := b.Embed(context.Background(), "alpha beta gamma")
	v2, _ := b.Embed(context.Background(), "completely unrelated words here")
	require.NotEqual(t, v1, v2)
}
