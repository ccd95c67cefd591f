package capture

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGate_RejectsTooShort(t *testing.T) {
	g := NewGate(20)
	require.False(t, g.Accept("too short"))
}

func TestGate_AcceptsLongEnoughDistinctContent(t *testing.T) {
	g := NewGate(20)
	require.True(t, g.Accept("this is a perfectly reasonable captured line of output"))
}

func TestGate_RejectsHighNonASCIINoise(t *testing.T) {
	g := NewGate(5)
	noisy := strings.Repeat("éèêë", 10)
	require.False(t, g.Accept(noisy))
}

func TestGate_RejectsLowUniqueCharCount(t *testing.T) {
	g := NewGate(5)
	require.False(t, g.Accept("aaaaaaaaaaaaaaaaaaaaaaaa"))
}
