package ondemand

import (
	"io/ioutil"

	"go.dedis.ch/odo/core/ordering/ondemand/bloom"
	"go.dedis.ch/odo/core/ordering/ondemand/ledger"
	"go.dedis.ch/odo/core/ordering/ondemand/proposal"
	"go.dedis.ch/odo/core/txn/pool/mem"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Config is the configuration of the service as it is read from a YAML file.
type Config struct {
	// PoolCapacity is the maximum number of pending batches.
	PoolCapacity int `yaml:"pool_capacity"`

	// PoolHistory is the number of consumed batches remembered to refuse them
	// when they are submitted again.
	PoolHistory int `yaml:"pool_history"`

	MaxBatches      int `yaml:"max_batches"`
	MaxTransactions int `yaml:"max_transactions"`

	// BloomCapacity and BloomFalsePositiveRate must be the same for every
	// participant as the filters are exchanged.
	BloomCapacity          uint    `yaml:"bloom_capacity"`
	BloomFalsePositiveRate float64 `yaml:"bloom_false_positive_rate"`

	// Retention is the number of block rounds kept in memory behind the
	// frontier.
	Retention uint64 `yaml:"retention"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PoolCapacity:           mem.DefaultCapacity,
		PoolHistory:            mem.DefaultHistory,
		MaxBatches:             proposal.DefaultMaxBatches,
		MaxTransactions:        proposal.DefaultMaxTransactions,
		BloomCapacity:          bloom.DefaultCapacity,
		BloomFalsePositiveRate: bloom.DefaultFalsePositiveRate,
		Retention:              ledger.DefaultRetention,
	}
}

// LoadConfig reads the YAML file at the path. The missing fields keep their
// default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, xerrors.Errorf("failed to read config: %v", err)
	}

	err = yaml.UnmarshalStrict(data, &cfg)
	if err != nil {
		return cfg, xerrors.Errorf("failed to parse config: %v", err)
	}

	err = cfg.Validate()
	if err != nil {
		return cfg, xerrors.Errorf("invalid config: %v", err)
	}

	return cfg, nil
}

// Validate returns an error if a value is out of range.
func (c Config) Validate() error {
	if c.PoolCapacity <= 0 {
		return xerrors.Errorf("pool capacity must be positive: %d", c.PoolCapacity)
	}

	if c.PoolHistory <= 0 {
		return xerrors.Errorf("pool history must be positive: %d", c.PoolHistory)
	}

	if c.MaxBatches < 0 || c.MaxTransactions < 0 {
		return xerrors.Errorf("negative proposal limits: %d, %d", c.MaxBatches, c.MaxTransactions)
	}

	if c.BloomCapacity == 0 {
		return xerrors.New("bloom capacity must be positive")
	}

	if c.BloomFalsePositiveRate <= 0 || c.BloomFalsePositiveRate >= 1 {
		return xerrors.Errorf("bloom false positive rate out of range: %v", c.BloomFalsePositiveRate)
	}

	return nil
}

// PoolOptions returns the options of the in-memory pool.
func (c Config) PoolOptions() []mem.Option {
	return []mem.Option{
		mem.WithCapacity(c.PoolCapacity),
		mem.WithHistory(c.PoolHistory),
	}
}

// Options returns the options of the service.
func (c Config) Options() []ServiceOption {
	return []ServiceOption{
		WithLimits(proposal.Limits{
			MaxBatches:      c.MaxBatches,
			MaxTransactions: c.MaxTransactions,
		}),
		WithBloomParams(bloom.Params{
			Capacity:          c.BloomCapacity,
			FalsePositiveRate: c.BloomFalsePositiveRate,
		}),
		WithRetention(c.Retention),
	}
}
