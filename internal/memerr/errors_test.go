package memerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotFound_FormatsEntityAndID(t *testing.T) {
	err := NotFound("Thread", "t1")
	require.Equal(t, "not_found: Thread: Thread not found: t1", err.Error())
	require.Equal(t, KindNotFound, err.Kind)
}

func TestStorage_WrapsUnderlyingError(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("write failed", cause)
	require.ErrorIs(t, err, cause)
	require.Equal(t, KindStorage, err.Kind)
}

func TestKindOf_ExtractsKindFromWrappedError(t *testing.T) {
	err := fmt.Errorf("context: %w", InvalidInput("bad field"))
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, KindInvalidInput, kind)
}

func TestKindOf_FalseForPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	require.False(t, ok)
}

func TestIs_MatchesKind(t *testing.T) {
	err := CapacityExceeded("quota hit", "suspend a thread")
	require.True(t, Is(err, KindCapacityExceeded))
	require.False(t, Is(err, KindStorage))
}

func TestProvider_And_Infrastructure_WrapCause(t *testing.T) {
	cause := errors.New("timeout")
	require.ErrorIs(t, Provider("llm call failed", cause), cause)
	require.ErrorIs(t, Infrastructure("json decode failed", cause), cause)
}
