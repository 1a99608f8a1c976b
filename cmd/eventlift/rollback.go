package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/groblegark/eventlift/internal/checkpoint"
	"github.com/groblegark/eventlift/internal/events"
	"github.com/groblegark/eventlift/internal/extract"
	"github.com/groblegark/eventlift/internal/ui"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Restore the source from its checkpoint and remove the target",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSource(); err != nil {
			return err
		}
		ctx := context.Background()
		mgr := checkpoint.NewManager(cfg.SourcePath, cfg.CheckpointDir, logger)

		force, _ := cmd.Flags().GetBool("force")
		if !force && ui.IsInteractive() {
			fmt.Printf("Restore %s from checkpoint and delete %s? [y/N] ", cfg.SourcePath, cfg.TargetPath)
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
				fmt.Println("Aborted")
				return nil
			}
		}

		pub.Publish(ctx, events.TopicRollbackStarted, events.RollbackStarted{
			SourcePath: cfg.SourcePath,
			TargetPath: cfg.TargetPath,
		})
		if err := mgr.Rollback(ctx, cfg.TargetPath); err != nil {
			return err
		}

		var restored int64
		if ext, err := extract.Open(cfg.SourcePath); err == nil {
			if stats, err := ext.Stats(ctx); err == nil {
				restored = stats.TotalRecords
			}
			ext.Close()
		}
		pub.Publish(ctx, events.TopicRollbackCompleted, events.RollbackCompleted{
			SourcePath:    cfg.SourcePath,
			RestoredCount: restored,
		})
		fmt.Println(ui.RenderOK("Source restored from checkpoint"))
		return nil
	},
}

func init() {
	rollbackCmd.Flags().Bool("force", false, "skip the confirmation prompt")
}
