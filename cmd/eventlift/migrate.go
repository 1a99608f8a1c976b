package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groblegark/eventlift/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run the migration (or a dry run with --dry-run)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Finalize(); err != nil {
			return err
		}
		if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
			cfg.DryRun = true
		}

		orch := migrate.New(cfg, logger, pub)
		ctx := context.Background()

		var report *migrate.Report
		var err error
		if cfg.DryRun {
			report, err = orch.DryRun(ctx)
		} else {
			report, err = orch.Run(ctx)
		}
		if report != nil {
			printReport(report)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().Bool("dry-run", false, "convert a sample without writing anything")
}
