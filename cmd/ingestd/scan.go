package main

import (
	"github.com/ingestd/ingestd/internal/agent"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newScanCmd())
}

// scan runs one reconciliation pass without starting the watcher. Useful for
// backfilling a folder or verifying remote state from cron.
func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Reconcile the folder against the journal once and exit",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromViper()
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			a, err := agent.New(cfg)
			if err != nil {
				return err
			}
			return a.RunScan(cmd.Context())
		},
	}

	cmd.Flags().AddFlagSet(rootCmd.Flags())
	return cmd
}
