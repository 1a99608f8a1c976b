package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groblegark/eventlift/internal/checkpoint"
	"github.com/groblegark/eventlift/internal/extract"
	"github.com/groblegark/eventlift/internal/model"
	"github.com/groblegark/eventlift/internal/store/sqlite"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show source, target, and checkpoint overview",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSource(); err != nil {
			return err
		}
		ctx := context.Background()

		var source *model.SourceStats
		ext, err := extract.Open(cfg.SourcePath)
		if err == nil {
			source, err = ext.Stats(ctx)
			ext.Close()
			if err != nil {
				return err
			}
		}

		var target *model.TargetStats
		if cfg.TargetPath != "" {
			if _, statErr := os.Stat(cfg.TargetPath); statErr == nil {
				st, err := sqlite.New(cfg.TargetPath)
				if err != nil {
					return err
				}
				target, err = st.Stats(ctx)
				st.Close()
				if err != nil {
					return err
				}
			}
		}

		mgr := checkpoint.NewManager(cfg.SourcePath, cfg.CheckpointDir, logger)
		info := mgr.Describe()

		if jsonOutput {
			printJSON(map[string]any{
				"source":     source,
				"target":     target,
				"checkpoint": info,
			})
			return nil
		}

		if source == nil {
			fmt.Printf("Source: %s (unreadable)\n", cfg.SourcePath)
		} else {
			fmt.Printf("Source: %s\n", cfg.SourcePath)
			fmt.Printf("  Records:  %d\n", source.TotalRecords)
			fmt.Printf("  Users:    %d\n", source.DistinctUsers)
			fmt.Printf("  Prompts:  %d\n", source.DistinctPrompts)
		}
		if target != nil {
			fmt.Printf("Target: %s\n", cfg.TargetPath)
			fmt.Printf("  Events:   %d\n", target.TotalEvents)
			fmt.Printf("  Users:    %d\n", target.DistinctUsers)
			for typ, n := range target.CountsByType {
				fmt.Printf("  %-9s %d\n", typ+":", n)
			}
		}
		printCheckpointInfo(info)
		return nil
	},
}
