package guardianconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "guardian_config.json"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_PartialFileMergesOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guardian_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"capture": {"min_capture_length": 40}}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 40, cfg.Capture.MinCaptureLength)
	require.Equal(t, Default().Capture.BlockList, cfg.Capture.BlockList)
	require.Equal(t, Default().Engram.StrongInjectMin, cfg.Engram.StrongInjectMin)
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guardian_config.json")

	cfg := Default()
	cfg.Hooks.CaptureEnabled = false
	cfg.Engram.MaxCandidates = 50

	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guardian_config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
