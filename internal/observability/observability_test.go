package observability

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("info"))
	require.Equal(t, slog.LevelInfo, ParseLevel("unknown"))
}

func TestNewLogger_NonTTYUsesTextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	logger.Info("hello", "key", "value")
	require.Contains(t, buf.String(), "msg=hello")
	require.Contains(t, buf.String(), "key=value")
}

func TestMetrics_IncAndWriteProm(t *testing.T) {
	m := NewMetrics()
	m.Inc("decay_ticks_total", 3)
	m.Inc("merge_accepted_total", 1)
	m.Inc("merge_accepted_total", 1)
	m.Inc("unknown_counter", 99)

	var buf bytes.Buffer
	require.NoError(t, m.WriteProm(&buf))

	out := buf.String()
	require.Contains(t, out, "memengine_decay_ticks_total 3")
	require.Contains(t, out, "memengine_merge_accepted_total 2")
	require.NotContains(t, out, "unknown_counter")
}

func TestOpenRotatingFile_WritesAndTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "daemon.log")

	rf, err := OpenRotatingFile(path)
	require.NoError(t, err)
	defer rf.Close()

	n, err := rf.Write([]byte("hello log\n"))
	require.NoError(t, err)
	require.Equal(t, 10, n)

	big := strings.Repeat("x", maxLogSizeBytes+1024)
	_, err = rf.Write([]byte(big))
	require.NoError(t, err)

	info, err := rf.file.Stat()
	require.NoError(t, err)
	require.LessOrEqual(t, info.Size(), int64(keepLogSizeBytes))
}
