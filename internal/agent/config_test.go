package agent

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ingestd/ingestd/internal/agent/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Root:        t.TempDir(),
		ServerURL:   "http://localhost:8400",
		ConnectorID: "connector-1",
		StateDir:    t.TempDir(),
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := validConfig(t)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, sync.DefaultDebounceInterval, cfg.DebounceInterval)
	assert.Equal(t, DefaultMaxFileSize, cfg.MaxFileSize)
}

func TestConfigValidateRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing root", func(c *Config) { c.Root = "" }},
		{"root is not a directory", func(c *Config) { c.Root = filepath.Join(c.Root, "missing") }},
		{"missing server url", func(c *Config) { c.ServerURL = "" }},
		{"missing connector id", func(c *Config) { c.ConnectorID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigKeepsExplicitValues(t *testing.T) {
	cfg := validConfig(t)
	cfg.DebounceInterval = 5 * time.Second
	cfg.MaxFileSize = 1024

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.DebounceInterval)
	assert.Equal(t, int64(1024), cfg.MaxFileSize)
}

func TestConfigStatePaths(t *testing.T) {
	cfg := validConfig(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, filepath.Join(cfg.StateDir, "journal.db"), cfg.JournalPath())
	assert.Equal(t, filepath.Join(cfg.StateDir, "ingestd.lock"), cfg.LockPath())
}

func TestAgentStateDirLock(t *testing.T) {
	cfg := validConfig(t)
	cfg.ServerURL = "http://localhost:1"

	first, err := New(cfg)
	require.NoError(t, err)
	defer first.release()

	// A second agent over the same state dir must be refused.
	_, err = New(cfg)
	assert.Error(t, err)
}
