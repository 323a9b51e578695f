package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/ingestd/ingestd/internal/agent"
	"github.com/ingestd/ingestd/internal/utils"
	"github.com/ingestd/ingestd/internal/version"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const configFileName = "config"

var cyan = color.New(color.FgHiCyan, color.Bold).SprintFunc()

var rootCmd = &cobra.Command{
	Use:     "ingestd",
	Short:   "Watch a folder and deliver file changes to an ingestion endpoint",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromViper()
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true
		fmt.Println(cyan(version.AppName), version.Version)

		a, err := agent.New(cfg)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return a.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("root", "r", "", "Directory to watch")
	rootCmd.Flags().Bool("no-recursive", false, "Watch only the top level of the root")
	rootCmd.Flags().StringSliceP("include", "i", nil, "Glob patterns limiting which files sync (default all)")
	rootCmd.Flags().StringSliceP("exclude", "x", nil, "Gitignore-style patterns to skip")
	rootCmd.Flags().StringP("server", "s", "", "Ingestion server URL")
	rootCmd.Flags().StringP("api-key", "k", "", "Bearer token for the ingestion server")
	rootCmd.Flags().String("connector-id", "", "Connector identity sent with each document")
	rootCmd.Flags().Duration("debounce", 0, "Quiet window before a changed file is evaluated")
	rootCmd.Flags().Duration("rescan", 0, "Periodic reconciliation interval (0 = default, negative disables)")
	rootCmd.Flags().Bool("no-initial-scan", false, "Skip the reconciliation scan at startup")
	rootCmd.Flags().String("state-dir", agent.DefaultStateDir, "Directory for the fingerprint journal and lock")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file path")
}

func main() {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(agent.DefaultStateDir, "logs", "ingestd.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     14, // days
		Compress:   true,
	}
	fileHandler := slog.NewTextHandler(logFile, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	logger := slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler))
	slog.SetDefault(logger)
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(agent.DefaultStateDir)
		viper.AddConfigPath(filepath.Join(home(), ".config/ingestd"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("root", cmd.Flags().Lookup("root"))
	viper.BindPFlag("include", cmd.Flags().Lookup("include"))
	viper.BindPFlag("exclude", cmd.Flags().Lookup("exclude"))
	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))
	viper.BindPFlag("api_key", cmd.Flags().Lookup("api-key"))
	viper.BindPFlag("connector_id", cmd.Flags().Lookup("connector-id"))
	viper.BindPFlag("debounce_interval", cmd.Flags().Lookup("debounce"))
	viper.BindPFlag("rescan_interval", cmd.Flags().Lookup("rescan"))
	viper.BindPFlag("state_dir", cmd.Flags().Lookup("state-dir"))

	viper.SetDefault("recursive", true)
	viper.SetDefault("initial_scan", true)
	viper.SetDefault("workers", 2)
	viper.SetDefault("queue_size", 128)
	viper.SetDefault("max_attempts", 5)
	viper.SetDefault("backoff_base", time.Second)
	viper.SetDefault("backoff_max", 30*time.Second)
	viper.SetDefault("drain_timeout", 30*time.Second)

	viper.SetEnvPrefix("INGESTD")
	viper.AutomaticEnv()

	if noRecursive, _ := cmd.Flags().GetBool("no-recursive"); noRecursive {
		viper.Set("recursive", false)
	}
	if noScan, _ := cmd.Flags().GetBool("no-initial-scan"); noScan {
		viper.Set("initial_scan", false)
	}

	return nil
}

func configFromViper() (*agent.Config, error) {
	cfg := &agent.Config{
		Root:             viper.GetString("root"),
		Recursive:        viper.GetBool("recursive"),
		Include:          viper.GetStringSlice("include"),
		Exclude:          viper.GetStringSlice("exclude"),
		DebounceInterval: viper.GetDuration("debounce_interval"),
		MaxFileSize:      viper.GetInt64("max_file_size"),
		ServerURL:        viper.GetString("server_url"),
		APIKey:           viper.GetString("api_key"),
		ConnectorID:      viper.GetString("connector_id"),
		Workers:          viper.GetInt("workers"),
		QueueSize:        viper.GetInt("queue_size"),
		MaxAttempts:      viper.GetInt("max_attempts"),
		BackoffBase:      viper.GetDuration("backoff_base"),
		BackoffMax:       viper.GetDuration("backoff_max"),
		DrainTimeout:     viper.GetDuration("drain_timeout"),
		InitialScan:      viper.GetBool("initial_scan"),
		RescanInterval:   viper.GetDuration("rescan_interval"),
		StateDir:         viper.GetString("state_dir"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func home() string {
	h, _ := os.UserHomeDir()
	return h
}
