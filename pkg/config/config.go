package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Defaults for every tunable. These match the compile-time constants of
// the reference configuration and can be overridden per instance.
const (
	DefaultMaxProcesses    = 65536
	DefaultHeapMinWords    = 256
	DefaultContextReds     = 4000
	DefaultRegistryBuckets = 1024
	DefaultStealBatch      = 32
	DefaultSpinBudget      = 64
	DefaultIdleSleepMicros = 500
)

// Config holds every init-time tunable of the runtime.
type Config struct {
	// Name identifies the runtime instance in logs and stats output.
	Name string `yaml:"name"`

	// Workers is the number of scheduler threads. Zero means one per
	// available CPU.
	Workers int `yaml:"workers"`

	// MaxProcesses bounds the arena: the slab holds exactly this many
	// process slots and heap blocks.
	MaxProcesses int `yaml:"max_processes"`

	// HeapMinWords is the size of each per-process heap block in
	// 64-bit words.
	HeapMinWords int `yaml:"heap_min_words"`

	// ContextReds is the advisory reduction budget replenished on each
	// dispatch.
	ContextReds int `yaml:"context_reductions"`

	// RegistryBuckets sizes the name registry's initial table.
	RegistryBuckets int `yaml:"registry_buckets"`

	// StealBatch is how many slots and blocks one cross-partition steal
	// moves.
	StealBatch int `yaml:"steal_batch"`

	// SpinBudget bounds the pop-side spin when a run-queue push has been
	// linearized but not yet linked.
	SpinBudget int `yaml:"spin_budget"`

	// IdleSleepMicros caps how long an idle worker sleeps before it
	// rechecks its queues and the timer list.
	IdleSleepMicros int `yaml:"idle_sleep_micros"`

	Log LogConfig `yaml:"log"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a Config populated with the default tunables.
func Default() Config {
	return Config{
		Name:            "swarmrt",
		Workers:         runtime.NumCPU(),
		MaxProcesses:    DefaultMaxProcesses,
		HeapMinWords:    DefaultHeapMinWords,
		ContextReds:     DefaultContextReds,
		RegistryBuckets: DefaultRegistryBuckets,
		StealBatch:      DefaultStealBatch,
		SpinBudget:      DefaultSpinBudget,
		IdleSleepMicros: DefaultIdleSleepMicros,
		Log:             LogConfig{Level: "info"},
	}
}

// Load reads a YAML config file and overlays it on the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that the tunables describe a runnable instance.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("invalid workers %d: must be >= 0", c.Workers)
	}
	if c.MaxProcesses < 1 {
		return fmt.Errorf("invalid max_processes %d: must be >= 1", c.MaxProcesses)
	}
	if c.HeapMinWords < 1 {
		return fmt.Errorf("invalid heap_min_words %d: must be >= 1", c.HeapMinWords)
	}
	if c.ContextReds < 1 {
		return fmt.Errorf("invalid context_reductions %d: must be >= 1", c.ContextReds)
	}
	if c.StealBatch < 1 {
		return fmt.Errorf("invalid steal_batch %d: must be >= 1", c.StealBatch)
	}
	return nil
}

// Normalize fills zero-valued fields with their defaults. It is applied
// by the kernel before use so callers can construct partial configs.
func (c Config) Normalize() Config {
	d := Default()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.MaxProcesses == 0 {
		c.MaxProcesses = d.MaxProcesses
	}
	if c.HeapMinWords == 0 {
		c.HeapMinWords = d.HeapMinWords
	}
	if c.ContextReds == 0 {
		c.ContextReds = d.ContextReds
	}
	if c.RegistryBuckets == 0 {
		c.RegistryBuckets = d.RegistryBuckets
	}
	if c.StealBatch == 0 {
		c.StealBatch = d.StealBatch
	}
	if c.SpinBudget == 0 {
		c.SpinBudget = d.SpinBudget
	}
	if c.IdleSleepMicros == 0 {
		c.IdleSleepMicros = d.IdleSleepMicros
	}
	return c
}
