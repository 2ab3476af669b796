package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/basin-analysis/internal/petrosys"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Reasoning.MaxAttempts)
	assert.Equal(t, petrosys.DefaultChancePolicy(), cfg.Chance)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
}

func TestLoadPrecedence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "basin.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
log:
  level: debug
chance:
  method: weighted_mean
  geological_weight: 2
archive:
  path: /var/lib/basin/results.db
batch:
  concurrency: 8
`), 0o644))
	t.Setenv("BASIN_ARCHIVE_PATH", "/tmp/env.db")
	t.Setenv("BASIN_BATCH_CONCURRENCY", "2")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("concurrency", 1, "")
	flags.String("addr", ":9999", "")
	require.NoError(t, flags.Parse([]string{"--concurrency=6"}))

	cfg, err := Load(file, flags)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, petrosys.ChanceWeightedMean, cfg.Chance.Method)
	assert.Equal(t, 2.0, cfg.Chance.GeologicalWeight)
	assert.Equal(t, 1.0, cfg.Chance.CommercialWeight)
	assert.Equal(t, "/tmp/env.db", cfg.Archive.Path)
	assert.Equal(t, 6, cfg.Batch.Concurrency)
	assert.Equal(t, ":8080", cfg.HTTP.Addr, "an unset flag does not override the default")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("BASIN_CHANCE_METHOD", "median")
	t.Setenv("BASIN_REASONING_MAX_ATTEMPTS", "0")

	_, err := Load("", nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "chance")
	assert.ErrorContains(t, err, "max_attempts")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.ErrorContains(t, err, "read config")
}
