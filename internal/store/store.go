// Package store defines the persistence interface for the canonical event store.
package store

import (
	"context"

	"github.com/groblegark/eventlift/internal/model"
)

// Store is the target-side persistence interface. The sqlite subpackage
// provides the file-backed implementation.
type Store interface {
	// InsertBatch loads one batch of events in a single transaction.
	// A failure inserts nothing from the batch; prior batches are unaffected.
	InsertBatch(ctx context.Context, events []*model.CanonicalEvent) error

	// Stats computes target-side statistics.
	Stats(ctx context.Context) (*model.TargetStats, error)

	// CountsByType returns event totals keyed by event type.
	CountsByType(ctx context.Context) (map[string]int64, error)

	// CheckIntegrity verifies payload syntax and provenance presence.
	// Invalid payload JSON is an error; missing provenance is a warning.
	CheckIntegrity(ctx context.Context) (*model.ValidationResult, error)

	// RecentEvents returns the n most recent events for sampling.
	RecentEvents(ctx context.Context, n int) ([]*model.CanonicalEvent, error)

	// Clear removes every event. Used by rollback and tests.
	Clear(ctx context.Context) error

	// Lifecycle
	Close() error
}
