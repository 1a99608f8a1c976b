package validate

import (
	"context"
	"strings"
	"testing"

	"github.com/groblegark/eventlift/internal/model"
	"github.com/groblegark/eventlift/internal/store"
)

// fakeStore returns canned statistics so count and score paths can be
// exercised without a real database.
type fakeStore struct {
	stats     *model.TargetStats
	integrity *model.ValidationResult
}

var _ store.Store = (*fakeStore)(nil)

func (f *fakeStore) InsertBatch(ctx context.Context, events []*model.CanonicalEvent) error {
	return nil
}

func (f *fakeStore) Stats(ctx context.Context) (*model.TargetStats, error) {
	return f.stats, nil
}

func (f *fakeStore) CountsByType(ctx context.Context) (map[string]int64, error) {
	return f.stats.CountsByType, nil
}

func (f *fakeStore) CheckIntegrity(ctx context.Context) (*model.ValidationResult, error) {
	if f.integrity != nil {
		return f.integrity, nil
	}
	return &model.ValidationResult{}, nil
}

func (f *fakeStore) RecentEvents(ctx context.Context, n int) ([]*model.CanonicalEvent, error) {
	return nil, nil
}

func (f *fakeStore) Clear(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                    { return nil }

func sourceStats(total, users int64) *model.SourceStats {
	return &model.SourceStats{
		TotalRecords:      total,
		DistinctUsers:     users,
		DistinctPrompts:   2,
		EarliestTimestamp: 1700000000000,
		LatestTimestamp:   1700000009000,
	}
}

func targetStats(total, users int64) *model.TargetStats {
	return &model.TargetStats{
		TotalEvents:       total,
		DistinctUsers:     users,
		EarliestTimestamp: 1700000000000,
		LatestTimestamp:   1700000009000,
		CountsByType:      map[string]int64{"vote_cast": total},
	}
}

func TestPostCheckPerfectRun(t *testing.T) {
	p := NewPostChecker(discardLogger())
	st := &fakeStore{stats: targetStats(10, 3)}

	report, err := p.Run(context.Background(), sourceStats(10, 3), st, 0)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !report.Valid() {
		t.Fatalf("errors = %v, want none", report.Errors)
	}
	if report.AccuracyScore != 1.0 {
		t.Errorf("AccuracyScore = %v, want 1.0", report.AccuracyScore)
	}
	if report.PreservationScore != 1.0 {
		t.Errorf("PreservationScore = %v, want 1.0", report.PreservationScore)
	}
	if report.CompositeScore < scoreWarningThreshold {
		t.Errorf("CompositeScore = %v unexpectedly low", report.CompositeScore)
	}
}

func TestPostCheckCountMismatchIsError(t *testing.T) {
	p := NewPostChecker(discardLogger())
	st := &fakeStore{stats: targetStats(8, 3)}

	report, err := p.Run(context.Background(), sourceStats(10, 3), st, 0)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.Valid() {
		t.Fatal("count mismatch must be a hard error")
	}
	if !strings.Contains(report.Errors[0], "event count mismatch") {
		t.Errorf("errors = %v", report.Errors)
	}
}

func TestPostCheckExclusionsAreAccounted(t *testing.T) {
	// 10 source records, 1 excluded: a target of 9 is exact, not a mismatch.
	p := NewPostChecker(discardLogger())
	st := &fakeStore{stats: targetStats(9, 3)}

	report, err := p.Run(context.Background(), sourceStats(10, 3), st, 1)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !report.Valid() {
		t.Fatalf("errors = %v, want none", report.Errors)
	}
}

func TestPostCheckUserMismatch(t *testing.T) {
	p := NewPostChecker(discardLogger())

	// With zero exclusions a user-count mismatch is an error.
	st := &fakeStore{stats: targetStats(10, 2)}
	report, err := p.Run(context.Background(), sourceStats(10, 3), st, 0)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.Valid() {
		t.Fatal("user-count mismatch with zero exclusions must be an error")
	}

	// With exclusions it downgrades to a warning.
	st = &fakeStore{stats: targetStats(9, 2)}
	report, err = p.Run(context.Background(), sourceStats(10, 3), st, 1)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !report.Valid() {
		t.Fatalf("errors = %v, want warning only", report.Errors)
	}
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "distinct-user count differs") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v", report.Warnings)
	}
}

func TestPostCheckUnexpectedEventType(t *testing.T) {
	p := NewPostChecker(discardLogger())
	stats := targetStats(10, 3)
	stats.CountsByType["page_view"] = 1
	st := &fakeStore{stats: stats}

	report, err := p.Run(context.Background(), sourceStats(10, 3), st, 0)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.Valid() {
		t.Fatal("unexpected event type must be a hard error")
	}
}

func TestPostCheckTimestampDriftIsWarning(t *testing.T) {
	p := NewPostChecker(discardLogger())
	stats := targetStats(10, 3)
	stats.LatestTimestamp += 5000 // 5s beyond the 1s tolerance
	st := &fakeStore{stats: stats}

	report, err := p.Run(context.Background(), sourceStats(10, 3), st, 0)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !report.Valid() {
		t.Fatalf("drift must be a warning, not an error: %v", report.Errors)
	}
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "drifted") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want drift warning", report.Warnings)
	}
	if report.PreservationScore >= 1.0 {
		t.Errorf("PreservationScore = %v, drift should lower it", report.PreservationScore)
	}
}

func TestPostCheckStructuralErrorsPropagate(t *testing.T) {
	p := NewPostChecker(discardLogger())
	st := &fakeStore{
		stats: targetStats(10, 3),
		integrity: &model.ValidationResult{
			Errors: []string{"2 events have invalid property payloads"},
		},
	}

	report, err := p.Run(context.Background(), sourceStats(10, 3), st, 0)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.Valid() {
		t.Fatal("structural store errors must fail the report")
	}
}

func TestCappedRatio(t *testing.T) {
	for _, tc := range []struct {
		target, source int64
		want           float64
	}{
		{10, 10, 1},
		{9, 10, 0.9},
		{11, 10, 1}, // over-counting never inflates
		{0, 0, 1},
		{5, 0, 0},
	} {
		if got := cappedRatio(tc.target, tc.source); got != tc.want {
			t.Errorf("cappedRatio(%d, %d) = %v, want %v", tc.target, tc.source, got, tc.want)
		}
	}
}
