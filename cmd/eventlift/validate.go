package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groblegark/eventlift/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the pre-migration readiness checks without migrating",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Finalize(); err != nil {
			return err
		}

		checker := validate.NewPreChecker(cfg.SourcePath, cfg.TargetPath, cfg.CheckpointDir, logger)
		report, err := checker.Run(context.Background())
		if err != nil {
			return err
		}
		printReadiness(report)
		if !report.Valid() {
			fmt.Fprintln(os.Stderr, "Error: source is not ready for migration")
			os.Exit(1)
		}
		return nil
	},
}
