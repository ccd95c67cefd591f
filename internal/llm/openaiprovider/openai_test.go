package openaiprovider

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToDefaultModel(t *testing.T) {
	p := New("test-key")
	require.Equal(t, DefaultModel, p.model)
}

func TestNew_WithModelOverridesDefault(t *testing.T) {
	p := New("test-key", WithModel("gpt-4o"))
	require.Equal(t, "gpt-4o", p.model)
}
