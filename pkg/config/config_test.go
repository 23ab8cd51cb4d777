package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultMaxProcesses, cfg.MaxProcesses)
	assert.Equal(t, DefaultContextReds, cfg.ContextReds)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swarmrt.yaml")
	data := []byte("name: test-node\nworkers: 2\nmax_processes: 128\nlog:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-node", cfg.Name)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 128, cfg.MaxProcesses)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched fields keep their defaults
	assert.Equal(t, DefaultHeapMinWords, cfg.HeapMinWords)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, wantErr: false},
		{name: "negative workers", mutate: func(c *Config) { c.Workers = -1 }, wantErr: true},
		{name: "zero max processes", mutate: func(c *Config) { c.MaxProcesses = 0 }, wantErr: true},
		{name: "zero heap words", mutate: func(c *Config) { c.HeapMinWords = 0 }, wantErr: true},
		{name: "zero reductions", mutate: func(c *Config) { c.ContextReds = 0 }, wantErr: true},
		{name: "zero steal batch", mutate: func(c *Config) { c.StealBatch = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeFillsZeroes(t *testing.T) {
	cfg := Config{MaxProcesses: 64}.Normalize()
	assert.Equal(t, 64, cfg.MaxProcesses)
	assert.Equal(t, DefaultHeapMinWords, cfg.HeapMinWords)
	assert.Equal(t, DefaultStealBatch, cfg.StealBatch)
	assert.NotZero(t, cfg.Workers)
}
