package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ingestd/ingestd/internal/agent/sync"
	"github.com/ingestd/ingestd/internal/utils"
)

var (
	home, _         = os.UserHomeDir()
	DefaultStateDir = filepath.Join(home, ".ingestd")

	DefaultMaxFileSize = int64(512 * 1024 * 1024) // 512 MiB
)

// Config is the fully resolved agent configuration. It is assembled by the
// CLI from config file, environment and flags before the agent is built.
type Config struct {
	// Watched tree.
	Root      string   `mapstructure:"root"`
	Recursive bool     `mapstructure:"recursive"`
	Include   []string `mapstructure:"include"`
	Exclude   []string `mapstructure:"exclude"`

	// Change detection.
	DebounceInterval time.Duration `mapstructure:"debounce_interval"`
	MaxFileSize      int64         `mapstructure:"max_file_size"`

	// Remote endpoint.
	ServerURL   string `mapstructure:"server_url"`
	APIKey      string `mapstructure:"api_key"`
	ConnectorID string `mapstructure:"connector_id"`

	// Delivery.
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BackoffBase  time.Duration `mapstructure:"backoff_base"`
	BackoffMax   time.Duration `mapstructure:"backoff_max"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`

	// Reconciliation. RescanInterval of 0 selects the default period;
	// negative disables periodic rescans (live notifications only, with no
	// recovery for a silently dead subscription).
	InitialScan    bool          `mapstructure:"initial_scan"`
	RescanInterval time.Duration `mapstructure:"rescan_interval"`

	// Local state (fingerprint journal, lock file).
	StateDir string `mapstructure:"state_dir"`
}

// Validate normalizes paths and fills defaults. It must be called before the
// config is handed to New.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root directory is required")
	}

	root, err := utils.ResolvePath(c.Root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	c.Root = root

	if !utils.DirExists(c.Root) {
		return fmt.Errorf("root %q is not a directory", c.Root)
	}

	if c.ServerURL == "" {
		return fmt.Errorf("server url is required")
	}
	if c.ConnectorID == "" {
		return fmt.Errorf("connector id is required")
	}

	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
	stateDir, err := utils.ResolvePath(c.StateDir)
	if err != nil {
		return fmt.Errorf("resolve state dir: %w", err)
	}
	c.StateDir = stateDir

	if c.DebounceInterval <= 0 {
		c.DebounceInterval = sync.DefaultDebounceInterval
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}

	return nil
}

// JournalPath is the location of the sqlite fingerprint journal.
func (c *Config) JournalPath() string {
	return filepath.Join(c.StateDir, "journal.db")
}

// LockPath is the location of the state-dir lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.StateDir, "ingestd.lock")
}
