package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/groblegark/eventlift/internal/config"
	"github.com/groblegark/eventlift/internal/events"
	"github.com/groblegark/eventlift/internal/ui"
)

var (
	cfg    *config.Config
	logger *slog.Logger
	pub    events.Publisher

	profilePath string
	jsonOutput  bool
	noColor     bool
)

var rootCmd = &cobra.Command{
	Use:   "eventlift",
	Short: "Migrate a legacy vote store to the generalized event schema",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if profilePath != "" {
			if err := config.LoadProfile(cfg, profilePath, false); err != nil {
				return err
			}
		}
		applyFlags(cmd)

		if noColor || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}

		level := slog.LevelInfo
		if cfg.Verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		if cfg.NATSURL != "" {
			pub, err = events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				return fmt.Errorf("connect to NATS: %w", err)
			}
		} else {
			pub = &events.NoopPublisher{}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if pub != nil {
			pub.Close()
		}
	},
}

// applyFlags overrides config values with any flags the user set explicitly.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.SourcePath, _ = flags.GetString("source")
	}
	if flags.Changed("target") {
		cfg.TargetPath, _ = flags.GetString("target")
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("checkpoint-dir") {
		cfg.CheckpointDir, _ = flags.GetString("checkpoint-dir")
	}
	if flags.Changed("nats") {
		cfg.NATSURL, _ = flags.GetString("nats")
	}
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("validate") {
		cfg.Validate, _ = flags.GetBool("validate")
	}
}

// requireSource checks the source path is set and derives the checkpoint
// directory for commands that do not need a target.
func requireSource() error {
	if cfg.SourcePath == "" {
		return fmt.Errorf("source path is required (--source or EVENTLIFT_SOURCE)")
	}
	if cfg.CheckpointDir == "" {
		cfg.CheckpointDir = filepath.Join(filepath.Dir(cfg.SourcePath), ".eventlift")
	}
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&profilePath, "config", "", "TOML profile file")
	pf.String("source", "", "path to the legacy vote store")
	pf.String("target", "", "path to the event store to create")
	pf.Int("batch-size", config.DefaultBatchSize, "records per transactional batch")
	pf.String("checkpoint-dir", "", "checkpoint directory (default: .eventlift next to source)")
	pf.String("nats", "", "NATS URL for progress events")
	pf.BoolVar(&jsonOutput, "json", false, "output as JSON")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.Bool("verbose", false, "per-batch progress logging")
	pf.Bool("validate", true, "run pre- and post-migration validation")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
