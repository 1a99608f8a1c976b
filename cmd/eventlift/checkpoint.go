package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groblegark/eventlift/internal/checkpoint"
	"github.com/groblegark/eventlift/internal/events"
	"github.com/groblegark/eventlift/internal/idgen"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Manage the pre-migration source checkpoint",
}

var checkpointCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Copy the source store into the checkpoint directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSource(); err != nil {
			return err
		}
		runID, err := idgen.Generate()
		if err != nil {
			return err
		}
		mgr := checkpoint.NewManager(cfg.SourcePath, cfg.CheckpointDir, logger)
		meta, err := mgr.Create(context.Background(), runID)
		if err != nil {
			return err
		}
		pub.Publish(cmd.Context(), events.TopicCheckpointCreated, events.CheckpointCreated{
			RunID:     runID,
			Path:      meta.CheckpointPath,
			SizeBytes: meta.SizeBytes,
		})
		fmt.Printf("Checkpoint created: %s (%d bytes)\n", meta.CheckpointPath, meta.SizeBytes)
		return nil
	},
}

var checkpointInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show checkpoint details",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSource(); err != nil {
			return err
		}
		mgr := checkpoint.NewManager(cfg.SourcePath, cfg.CheckpointDir, logger)
		printCheckpointInfo(mgr.Describe())
		return nil
	},
}

var checkpointCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete the checkpoint after a verified migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSource(); err != nil {
			return err
		}
		mgr := checkpoint.NewManager(cfg.SourcePath, cfg.CheckpointDir, logger)
		if err := mgr.Cleanup(); err != nil {
			return err
		}
		fmt.Println("Checkpoint removed")
		return nil
	},
}

var checkpointArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Copy the checkpoint to S3 or a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSource(); err != nil {
			return err
		}
		ctx := context.Background()

		var dest checkpoint.Destination
		if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
			dest = checkpoint.NewDirDestination(dir, "checkpoint.db")
		} else if cfg.ArchiveS3Bucket != "" {
			var err error
			dest, err = checkpoint.NewS3Destination(ctx,
				cfg.ArchiveS3Bucket, cfg.ArchiveS3Key, cfg.ArchiveS3Region, cfg.ArchiveS3Endpoint)
			if err != nil {
				return err
			}
		} else {
			return fmt.Errorf("no archive destination: set --dir or EVENTLIFT_ARCHIVE_S3_BUCKET")
		}

		mgr := checkpoint.NewManager(cfg.SourcePath, cfg.CheckpointDir, logger)
		if err := mgr.Archive(ctx, dest); err != nil {
			return err
		}
		pub.Publish(ctx, events.TopicCheckpointArchived, events.CheckpointArchived{
			Path:        mgr.CheckpointPath(),
			Destination: dest.String(),
		})
		fmt.Printf("Checkpoint archived to %s\n", dest.String())
		return nil
	},
}

func init() {
	checkpointArchiveCmd.Flags().String("dir", "", "archive into a local directory instead of S3")

	checkpointCmd.AddCommand(checkpointCreateCmd)
	checkpointCmd.AddCommand(checkpointInfoCmd)
	checkpointCmd.AddCommand(checkpointCleanupCmd)
	checkpointCmd.AddCommand(checkpointArchiveCmd)
}
