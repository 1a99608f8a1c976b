package validate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/groblegark/eventlift/internal/model"
	"github.com/groblegark/eventlift/internal/store"
)

const (
	// defaultTimestampTolerance bounds acceptable timestamp-range drift
	// between source and target before a warning is raised.
	defaultTimestampTolerance = time.Second

	// defaultSampleSize is how many recent events the performance probe reads.
	defaultSampleSize = 100

	// scoreWarningThreshold marks sub-par but non-blocking composite scores.
	scoreWarningThreshold = 0.7

	// timeRangeDecayWindow is the drift at which the time-range preservation
	// score reaches zero. The score decays linearly from 1 at zero drift.
	timeRangeDecayWindow = time.Minute

	// performanceBudget is the sample-read duration at which the performance
	// score reaches zero. An instantaneous read scores 1. This is a declared
	// heuristic, not a query-plan measurement.
	performanceBudget = time.Second
)

// IntegrityReport is the outcome of the post-migration validation. Scores
// are in [0,1]. Count and type mismatches are errors; everything else is
// advisory.
type IntegrityReport struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`

	AccuracyScore     float64 `json:"accuracy_score"`
	PreservationScore float64 `json:"preservation_score"`
	PerformanceScore  float64 `json:"performance_score"`
	CompositeScore    float64 `json:"composite_score"`

	Source *model.SourceStats `json:"source"`
	Target *model.TargetStats `json:"target"`
}

// Valid reports whether the target passed the hard integrity checks.
func (r *IntegrityReport) Valid() bool {
	return len(r.Errors) == 0
}

// PostChecker scores a finished migration.
type PostChecker struct {
	Logger             *slog.Logger
	TimestampTolerance time.Duration
	SampleSize         int
}

// NewPostChecker builds a PostChecker with the default tolerance and sample size.
func NewPostChecker(logger *slog.Logger) *PostChecker {
	return &PostChecker{
		Logger:             logger,
		TimestampTolerance: defaultTimestampTolerance,
		SampleSize:         defaultSampleSize,
	}
}

// Run validates the target store against the source statistics. excluded is
// the number of records the run dropped at record level; the exact-count
// check compares the target against what actually should have loaded.
func (p *PostChecker) Run(ctx context.Context, source *model.SourceStats, st store.Store, excluded int64) (*IntegrityReport, error) {
	target, err := st.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("target stats: %w", err)
	}

	report := &IntegrityReport{Source: source, Target: target}

	// Store-level structural check first: bad payloads are hard errors.
	structural, err := st.CheckIntegrity(ctx)
	if err != nil {
		return nil, fmt.Errorf("target integrity: %w", err)
	}
	report.Errors = append(report.Errors, structural.Errors...)
	report.Warnings = append(report.Warnings, structural.Warnings...)

	p.checkCounts(source, target, excluded, report)
	p.checkEventTypes(target, report)
	p.checkTimestampRange(source, target, report)
	p.score(ctx, source, target, st, report)

	p.Logger.Info("post-migration validation finished",
		"valid", report.Valid(),
		"accuracy", report.AccuracyScore,
		"composite", report.CompositeScore)
	return report, nil
}

// checkCounts enforces the exact-count invariants. Count mismatches are
// always errors, never warnings.
func (p *PostChecker) checkCounts(source *model.SourceStats, target *model.TargetStats, excluded int64, report *IntegrityReport) {
	expected := source.TotalRecords - excluded
	if target.TotalEvents != expected {
		report.Errors = append(report.Errors, fmt.Sprintf(
			"event count mismatch: target has %d, expected %d (%d source records, %d excluded)",
			target.TotalEvents, expected, source.TotalRecords, excluded))
	}

	if excluded == 0 {
		if target.DistinctUsers != source.DistinctUsers {
			report.Errors = append(report.Errors, fmt.Sprintf(
				"distinct-user count mismatch: target has %d, source has %d",
				target.DistinctUsers, source.DistinctUsers))
		}
	} else if target.DistinctUsers != source.DistinctUsers {
		// Excluded records may have carried a user's only vote, so the
		// user count can legitimately shrink.
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"distinct-user count differs with %d records excluded: target %d, source %d",
			excluded, target.DistinctUsers, source.DistinctUsers))
	}
}

func (p *PostChecker) checkEventTypes(target *model.TargetStats, report *IntegrityReport) {
	if target.TotalEvents == 0 {
		return
	}
	for typ := range target.CountsByType {
		if !model.EventType(typ).IsValid() {
			report.Errors = append(report.Errors,
				fmt.Sprintf("unexpected event type %q in target store", typ))
		}
	}
	if target.CountsByType[model.EventVoteCast.String()] == 0 {
		report.Errors = append(report.Errors,
			fmt.Sprintf("expected event type %q is absent", model.EventVoteCast))
	}
}

func (p *PostChecker) checkTimestampRange(source *model.SourceStats, target *model.TargetStats, report *IntegrityReport) {
	if target.TotalEvents == 0 || source.TotalRecords == 0 {
		return
	}
	tolerance := p.TimestampTolerance.Milliseconds()
	if drift := absDiff(source.EarliestTimestamp, target.EarliestTimestamp); drift > tolerance {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"earliest timestamp drifted %dms (tolerance %dms)", drift, tolerance))
	}
	if drift := absDiff(source.LatestTimestamp, target.LatestTimestamp); drift > tolerance {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"latest timestamp drifted %dms (tolerance %dms)", drift, tolerance))
	}
}

// score computes the advisory quality scores. Accuracy is the mean of the
// capped target/source ratios for total and user counts; preservation adds a
// time-range score decaying linearly with drift; the performance probe times
// a fixed-size sample read.
func (p *PostChecker) score(ctx context.Context, source *model.SourceStats, target *model.TargetStats, st store.Store, report *IntegrityReport) {
	countRatio := cappedRatio(target.TotalEvents, source.TotalRecords)
	userRatio := cappedRatio(target.DistinctUsers, source.DistinctUsers)
	report.AccuracyScore = (countRatio + userRatio) / 2

	drift := maxInt64(
		absDiff(source.EarliestTimestamp, target.EarliestTimestamp),
		absDiff(source.LatestTimestamp, target.LatestTimestamp))
	timeRangeScore := 1 - float64(drift)/float64(timeRangeDecayWindow.Milliseconds())
	if timeRangeScore < 0 {
		timeRangeScore = 0
	}
	report.PreservationScore = (countRatio + userRatio + timeRangeScore) / 3

	sample := p.SampleSize
	if sample <= 0 {
		sample = defaultSampleSize
	}
	start := time.Now()
	if _, err := st.RecentEvents(ctx, sample); err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("performance probe failed: %v", err))
		report.PerformanceScore = 0
	} else {
		elapsed := time.Since(start)
		score := 1 - float64(elapsed)/float64(performanceBudget)
		if score < 0 {
			score = 0
		}
		report.PerformanceScore = score
	}

	report.CompositeScore = (report.AccuracyScore + report.PreservationScore + report.PerformanceScore) / 3

	for _, s := range []struct {
		name  string
		value float64
	}{
		{"accuracy", report.AccuracyScore},
		{"preservation", report.PreservationScore},
		{"performance", report.PerformanceScore},
		{"composite", report.CompositeScore},
	} {
		if s.value < scoreWarningThreshold {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%s score %.2f is below %.1f", s.name, s.value, scoreWarningThreshold))
		}
	}
}

// cappedRatio returns target/source capped at 1, so over-counting cannot
// inflate a score. An empty source with an empty target is a perfect 1.
func cappedRatio(target, source int64) float64 {
	if source == 0 {
		if target == 0 {
			return 1
		}
		return 0
	}
	r := float64(target) / float64(source)
	if r > 1 {
		return 1
	}
	return r
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
