package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOff_AlwaysReturnsNilEmbeddingAndZeroDimensions(t *testing.T) {
	var b Off
	v, err := b.Embed(context.Background(), "anything")
	require.NoError(t, err)
	require.Nil(t, v)
	require.Equal(t, 0, b.Dimensions())
}

func TestCosine_IdenticalVectorsIsOne(t *testing.T) {
	require.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{1, 2, 3}), 0.0001)
}

func TestCosine_OrthogonalVectorsIsZero(t *testing.T) {
	require.Equal(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}))
}

func TestCosine_MismatchedOrEmptyReturnsZero(t *testing.T) {
	require.Equal(t, 0.0, Cosine(nil, []float32{1}))
	require.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{1}))
	require.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}
