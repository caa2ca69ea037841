package ondemand

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/odo/core/ordering/ondemand/bloom"
	"go.dedis.ch/odo/core/txn/pool/mem"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	err := os.WriteFile(path, []byte("max_batches: 5\nbloom_capacity: 100\n"), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.MaxBatches)
	require.Equal(t, uint(100), cfg.BloomCapacity)
	require.Equal(t, mem.DefaultCapacity, cfg.PoolCapacity)
	require.Equal(t, bloom.DefaultFalsePositiveRate, cfg.BloomFalsePositiveRate)

	_, err = LoadConfig(filepath.Join(dir, "unknown.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read config: ")

	err = os.WriteFile(path, []byte("max_batch: 5\n"), 0644)
	require.NoError(t, err)

	_, err = LoadConfig(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse config: ")

	err = os.WriteFile(path, []byte("pool_capacity: 0\n"), 0644)
	require.NoError(t, err)

	_, err = LoadConfig(path)
	require.EqualError(t, err, "invalid config: pool capacity must be positive: 0")
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.PoolHistory = -1
	require.EqualError(t, cfg.Validate(), "pool history must be positive: -1")

	cfg = DefaultConfig()
	cfg.MaxTransactions = -2
	require.EqualError(t, cfg.Validate(), "negative proposal limits: 100, -2")

	cfg = DefaultConfig()
	cfg.BloomCapacity = 0
	require.EqualError(t, cfg.Validate(), "bloom capacity must be positive")

	cfg = DefaultConfig()
	cfg.BloomFalsePositiveRate = 1
	require.EqualError(t, cfg.Validate(), "bloom false positive rate out of range: 1")
}

func TestConfig_Options(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBatches = 7
	cfg.PoolCapacity = 3

	p, err := mem.NewPool(cfg.PoolOptions()...)
	require.NoError(t, err)
	require.Equal(t, 3, p.Stats().Capacity)

	srvc := NewService(p, cfg.Options()...)
	require.Equal(t, 7, srvc.factory.GetLimits().MaxBatches)
	require.Equal(t, bloom.DefaultParams(), srvc.cache.Params())
}
