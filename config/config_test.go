package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planexec/planexec/config"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 20, cfg.MaxTaskSteps)
	assert.Equal(t, 3, cfg.MaxRetryCount)
	assert.Equal(t, 60, cfg.ToolTimeout)
	assert.Equal(t, 8000, cfg.MaxContextTokens)
	assert.Equal(t, 3600, cfg.TaskStateTTLSeconds)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_retry_count: 5\ntool_timeout_seconds: 90\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxRetryCount)
	assert.Equal(t, 90, cfg.ToolTimeout)
	assert.Equal(t, 20, cfg.MaxTaskSteps, "unset fields keep their default")
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_retry_count: 5\n"), 0o644))

	t.Setenv("PLANEXEC_MAX_RETRY_COUNT", "7")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxRetryCount)
}

func TestEnvOverrideCheckpointStorePath(t *testing.T) {
	t.Setenv("PLANEXEC_CHECKPOINT_STORE_PATH", "/tmp/custom")
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom", cfg.CheckpointStorePath)
}
