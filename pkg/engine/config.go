package engine

import (
	"flag"

	"github.com/grafana/dskit/flagext"

	"github.com/grafana/vexec/pkg/errs"
)

// Config configures pipelines created by an [Engine].
type Config struct {
	// BatchSize is the capacity of batches materialised by operators.
	BatchSize int `yaml:"batch_size"`

	// MemoryLimit caps the memory allocated by all pipelines of the engine.
	// Zero means unlimited.
	MemoryLimit flagext.Bytes `yaml:"memory_limit"`

	// StableGroupOrder makes aggregations emit groups in the order their
	// keys were first seen.
	StableGroupOrder bool `yaml:"stable_group_order"`

	// PoolBatches recycles output batches of operators through a pool.
	PoolBatches bool `yaml:"pool_batches"`
}

// RegisterFlagsWithPrefix registers flags for cfg with the given prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.BatchSize, prefix+"batch-size", 1024, "Maximum number of rows in a batch produced by an operator.")
	cfg.MemoryLimit = 0
	f.Var(&cfg.MemoryLimit, prefix+"memory-limit", "Maximum amount of memory allocated by all pipelines, i.e. 512MB. Default (0) means unlimited.")
	f.BoolVar(&cfg.StableGroupOrder, prefix+"stable-group-order", false, "Emit aggregation groups in the order they were first seen.")
	f.BoolVar(&cfg.PoolBatches, prefix+"pool-batches", false, "Recycle operator output batches through a pool.")
}

// Validate returns an error if cfg is invalid.
func (cfg *Config) Validate() error {
	if cfg.BatchSize <= 0 {
		return errs.Newf(errs.ErrInvalidArgument, "invalid batch size: must be greater than 0, got %d", cfg.BatchSize)
	}
	if int64(cfg.MemoryLimit) < 0 {
		return errs.Newf(errs.ErrInvalidArgument, "invalid memory limit: %d is too large", uint64(cfg.MemoryLimit))
	}
	return nil
}
