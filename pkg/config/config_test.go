package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Analysis.Concurrency)
	assert.Equal(t, 6000, cfg.Analysis.MaxInputChars)
	assert.Equal(t, 60, cfg.LLM.TimeoutSec)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.SQLite.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("INSIGHTS_ANALYSIS_CONCURRENCY", "8")
	t.Setenv("INSIGHTS_LLM_MODEL", "gpt-4o")
	t.Setenv("INSIGHTS_REDIS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Analysis.Concurrency)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadRejectsZeroConcurrency(t *testing.T) {
	t.Setenv("INSIGHTS_ANALYSIS_CONCURRENCY", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.concurrency")
}
