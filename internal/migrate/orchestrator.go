// Package migrate runs the end-to-end migration: readiness checks,
// checkpoint, batched extract-convert-load, and the final integrity check.
// Batches are processed strictly sequentially; a mid-run failure leaves all
// fully committed batches in the target and the source untouched.
package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/groblegark/eventlift/internal/checkpoint"
	"github.com/groblegark/eventlift/internal/config"
	"github.com/groblegark/eventlift/internal/convert"
	"github.com/groblegark/eventlift/internal/events"
	"github.com/groblegark/eventlift/internal/extract"
	"github.com/groblegark/eventlift/internal/idgen"
	"github.com/groblegark/eventlift/internal/model"
	"github.com/groblegark/eventlift/internal/store/sqlite"
	"github.com/groblegark/eventlift/internal/validate"
)

var (
	// ErrNotReady means the pre-migration readiness check failed and the
	// run stopped before touching the source or target.
	ErrNotReady = errors.New("source not ready for migration")

	// ErrIntegrityFailed means the migration loaded data but the final
	// integrity check found blocking errors.
	ErrIntegrityFailed = errors.New("post-migration integrity check failed")
)

const (
	// dryRunBatchCap bounds how many batches a dry run converts.
	dryRunBatchCap = 5

	// sampleCap bounds how many converted previews a dry run reports.
	sampleCap = 3
)

// Orchestrator drives one migration run.
type Orchestrator struct {
	cfg    *config.Config
	logger *slog.Logger
	pub    events.Publisher

	now func() time.Time // conversion clock, fixed in tests
}

func New(cfg *config.Config, logger *slog.Logger, pub events.Publisher) *Orchestrator {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: logger,
		pub:    pub,
		now:    time.Now,
	}
}

// Run executes a full migration and returns a report. On failure the report
// still carries whatever stats were gathered; the error names the phase via
// report.Phase.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	runID, err := idgen.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	report := &Report{RunID: runID, StartedAt: time.Now()}
	log := o.logger.With("run_id", runID)
	log.Info("migration starting",
		"source", o.cfg.SourcePath,
		"target", o.cfg.TargetPath,
		"batch_size", o.cfg.BatchSize)

	if o.cfg.Validate {
		readiness, err := validate.NewPreChecker(o.cfg.SourcePath, o.cfg.TargetPath, o.cfg.CheckpointDir, log).Run(ctx)
		report.Readiness = readiness
		if err != nil {
			return o.fail(ctx, report, "pre-check", err)
		}
		if !readiness.Valid() {
			return o.fail(ctx, report, "pre-check",
				fmt.Errorf("%w: %s", ErrNotReady, strings.Join(readiness.Errors, "; ")))
		}
	}

	ckpt := checkpoint.NewManager(o.cfg.SourcePath, o.cfg.CheckpointDir, log)
	meta, err := ckpt.Create(ctx, runID)
	if err != nil {
		return o.fail(ctx, report, "checkpoint", fmt.Errorf("create checkpoint: %w", err))
	}
	o.publish(ctx, events.TopicCheckpointCreated, events.CheckpointCreated{
		RunID:     runID,
		Path:      meta.CheckpointPath,
		SizeBytes: meta.SizeBytes,
	})

	ext, err := extract.Open(o.cfg.SourcePath)
	if err != nil {
		return o.fail(ctx, report, "extract", err)
	}
	defer ext.Close()

	source, err := ext.Stats(ctx)
	if err != nil {
		return o.fail(ctx, report, "extract", fmt.Errorf("source stats: %w", err))
	}
	report.Source = source

	st, err := sqlite.New(o.cfg.TargetPath)
	if err != nil {
		return o.fail(ctx, report, "load", fmt.Errorf("open target: %w", err))
	}
	defer st.Close()

	o.publish(ctx, events.TopicMigrationStarted, events.MigrationStarted{
		RunID:        runID,
		SourcePath:   o.cfg.SourcePath,
		TargetPath:   o.cfg.TargetPath,
		TotalRecords: source.TotalRecords,
		BatchSize:    o.cfg.BatchSize,
	})

	if err := o.loadAll(ctx, ext, st, source.TotalRecords, report, log); err != nil {
		return o.fail(ctx, report, "load", err)
	}

	if o.cfg.Validate {
		integrity, err := validate.NewPostChecker(log).Run(ctx, source, st, report.Summary.Excluded)
		report.Integrity = integrity
		if err != nil {
			return o.fail(ctx, report, "post-check", err)
		}
		if !integrity.Valid() {
			return o.fail(ctx, report, "post-check",
				fmt.Errorf("%w: %s", ErrIntegrityFailed, strings.Join(integrity.Errors, "; ")))
		}
	}

	target, err := st.Stats(ctx)
	if err != nil {
		return o.fail(ctx, report, "post-check", fmt.Errorf("target stats: %w", err))
	}
	report.Target = target
	report.Success = true
	report.FinishedAt = time.Now()

	completed := events.MigrationCompleted{
		RunID:          runID,
		Inserted:       report.Summary.Inserted,
		Excluded:       report.Summary.Excluded,
		ElapsedSeconds: report.Elapsed().Seconds(),
	}
	if report.Integrity != nil {
		completed.CompositeScore = report.Integrity.CompositeScore
	}
	o.publish(ctx, events.TopicMigrationCompleted, completed)

	log.Info("migration complete",
		"inserted", report.Summary.Inserted,
		"excluded", report.Summary.Excluded,
		"batches", report.Batches,
		"elapsed", report.Elapsed().Round(time.Millisecond))
	return report, nil
}

// loadAll streams batches through convert and into the target store,
// accumulating the run summary and emitting a progress event per batch.
func (o *Orchestrator) loadAll(ctx context.Context, ext *extract.Extractor, st *sqlite.EventStore, total int64, report *Report, log *slog.Logger) error {
	it, err := ext.Batches(ctx, o.cfg.BatchSize)
	if err != nil {
		return err
	}
	defer it.Close()

	report.Summary.CountsByType = map[string]int64{}
	prog := newTracker(total)
	for {
		batch, err := it.Next()
		if err != nil {
			return fmt.Errorf("extract batch %d: %w", report.Batches+1, err)
		}
		if batch == nil {
			return nil
		}
		report.Batches++

		outcomes := convert.ConvertBatch(batch, o.now().UTC())
		valid := make([]*model.CanonicalEvent, 0, len(outcomes))
		for _, out := range outcomes {
			if out.Valid() {
				valid = append(valid, out.Event)
				continue
			}
			msg := fmt.Sprintf("record %s: %s", out.Event.ID, strings.Join(out.Violations, "; "))
			report.addRecordError(msg)
			log.Warn("record excluded", "batch", report.Batches, "detail", msg)
		}
		if err := st.InsertBatch(ctx, valid); err != nil {
			return fmt.Errorf("insert batch %d: %w", report.Batches, err)
		}

		stats := convert.Summarize(outcomes)
		report.Summary.Converted += int64(stats.TotalConverted)
		report.Summary.Inserted += int64(len(valid))
		report.Summary.Excluded += int64(stats.Excluded)
		report.Summary.MalformedMetadata += int64(stats.MalformedMetadata)
		for typ, n := range stats.CountsByType {
			report.Summary.CountsByType[typ] += int64(n)
		}

		prog.observe(len(batch))
		o.publish(ctx, events.TopicBatchLoaded, events.BatchLoaded{
			RunID:        report.RunID,
			Batch:        report.Batches,
			Extracted:    len(batch),
			Inserted:     len(valid),
			Excluded:     stats.Excluded,
			Processed:    prog.processed,
			Total:        total,
			ETASeconds:   prog.eta(),
			EventsPerSec: prog.rate(),
		})
		if o.cfg.Verbose {
			log.Info("batch loaded",
				"batch", report.Batches,
				"inserted", len(valid),
				"excluded", stats.Excluded,
				"processed", prog.processed,
				"total", total,
				"eta_seconds", fmt.Sprintf("%.1f", prog.eta()))
		}
	}
}

// DryRun converts a bounded prefix of the source without creating a
// checkpoint or writing to the target. The report carries sample previews
// and a target size projection.
func (o *Orchestrator) DryRun(ctx context.Context) (*Report, error) {
	runID, err := idgen.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	report := &Report{RunID: runID, DryRun: true, StartedAt: time.Now()}
	report.Summary.CountsByType = map[string]int64{}
	log := o.logger.With("run_id", runID, "dry_run", true)

	ext, err := extract.Open(o.cfg.SourcePath)
	if err != nil {
		return o.fail(ctx, report, "extract", err)
	}
	defer ext.Close()

	source, err := ext.Stats(ctx)
	if err != nil {
		return o.fail(ctx, report, "extract", fmt.Errorf("source stats: %w", err))
	}
	report.Source = source

	if o.cfg.Validate {
		result, err := ext.Validate(ctx)
		if err != nil {
			return o.fail(ctx, report, "pre-check", err)
		}
		report.Readiness = &validate.ReadinessReport{
			Errors:   result.Errors,
			Warnings: result.Warnings,
		}
		if !result.Valid() {
			return o.fail(ctx, report, "pre-check",
				fmt.Errorf("%w: %s", ErrNotReady, strings.Join(result.Errors, "; ")))
		}
	}

	it, err := ext.Batches(ctx, o.cfg.BatchSize)
	if err != nil {
		return o.fail(ctx, report, "extract", err)
	}
	defer it.Close()

	var sampledBytes int64
	for report.Batches < dryRunBatchCap {
		batch, err := it.Next()
		if err != nil {
			return o.fail(ctx, report, "extract", err)
		}
		if batch == nil {
			break
		}
		report.Batches++

		now := o.now().UTC()
		for _, rec := range batch {
			out := convert.Convert(rec, now)
			report.Summary.Converted++
			if out.MetadataMalformed {
				report.Summary.MalformedMetadata++
			}
			if !out.Valid() {
				report.Summary.Excluded++
				report.addRecordError(fmt.Sprintf("record %s: %s", out.Event.ID, strings.Join(out.Violations, "; ")))
				continue
			}
			report.Summary.CountsByType[out.Event.EventType.String()]++
			if payload, err := json.Marshal(out.Event); err == nil {
				sampledBytes += int64(len(payload))
			}
			if len(report.Samples) < sampleCap {
				report.Samples = append(report.Samples, convert.PreviewRecord(rec, now))
			}
		}
	}

	loadable := report.Summary.Converted - report.Summary.Excluded
	if loadable > 0 && report.Summary.Converted > 0 {
		perEvent := sampledBytes / loadable
		projected := source.TotalRecords - source.TotalRecords*report.Summary.Excluded/report.Summary.Converted
		report.EstimatedTargetBytes = perEvent * projected
	}
	report.Success = true
	report.FinishedAt = time.Now()
	log.Info("dry run complete",
		"converted", report.Summary.Converted,
		"excluded", report.Summary.Excluded,
		"estimated_target_bytes", report.EstimatedTargetBytes)
	return report, nil
}

// PreviewRecord converts a single source record for inspection without
// writing anything.
func (o *Orchestrator) PreviewRecord(ctx context.Context, id string) (*convert.Preview, error) {
	ext, err := extract.Open(o.cfg.SourcePath)
	if err != nil {
		return nil, err
	}
	defer ext.Close()

	rec, err := ext.FindRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return convert.PreviewRecord(rec, o.now().UTC()), nil
}

func (o *Orchestrator) fail(ctx context.Context, report *Report, phase string, err error) (*Report, error) {
	report.Phase = phase
	report.FinishedAt = time.Now()
	o.logger.Error("migration failed", "run_id", report.RunID, "phase", phase, "error", err)
	o.publish(ctx, events.TopicMigrationFailed, events.MigrationFailed{
		RunID:    report.RunID,
		Phase:    phase,
		Error:    err.Error(),
		Inserted: report.Summary.Inserted,
	})
	return report, err
}

// publish is best-effort: delivery problems are logged, never fatal.
func (o *Orchestrator) publish(ctx context.Context, topic string, event any) {
	if err := o.pub.Publish(ctx, topic, event); err != nil {
		o.logger.Warn("publish failed", "topic", topic, "error", err)
	}
}
