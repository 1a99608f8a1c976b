package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groblegark/eventlift/internal/migrate"
)

var previewCmd = &cobra.Command{
	Use:   "preview <record-id>",
	Short: "Show what a single record would convert to, without writing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSource(); err != nil {
			return err
		}

		orch := migrate.New(cfg, logger, pub)
		preview, err := orch.PreviewRecord(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(preview)
			return nil
		}
		rendered, err := preview.Render()
		if err != nil {
			return err
		}
		fmt.Print(rendered)
		return nil
	},
}
