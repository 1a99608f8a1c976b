// Package events defines the progress events a migration run emits and the
// Publisher interface used to deliver them. Publishing is best-effort: a
// failed publish never fails the run.
package events

import "context"

// Event topic constants
const (
	TopicMigrationStarted   = "eventlift.migration.started"
	TopicBatchLoaded        = "eventlift.migration.batch_loaded"
	TopicMigrationCompleted = "eventlift.migration.completed"
	TopicMigrationFailed    = "eventlift.migration.failed"

	// Checkpoint lifecycle events
	TopicCheckpointCreated  = "eventlift.checkpoint.created"
	TopicCheckpointArchived = "eventlift.checkpoint.archived"

	// Rollback events
	TopicRollbackStarted   = "eventlift.rollback.started"
	TopicRollbackCompleted = "eventlift.rollback.completed"
)

// Event types

type MigrationStarted struct {
	RunID        string `json:"run_id"`
	SourcePath   string `json:"source_path"`
	TargetPath   string `json:"target_path"`
	TotalRecords int64  `json:"total_records"`
	BatchSize    int    `json:"batch_size"`
	DryRun       bool   `json:"dry_run"`
}

type BatchLoaded struct {
	RunID        string  `json:"run_id"`
	Batch        int     `json:"batch"`
	Extracted    int     `json:"extracted"`
	Inserted     int     `json:"inserted"`
	Excluded     int     `json:"excluded"`
	Processed    int64   `json:"processed"`
	Total        int64   `json:"total"`
	ETASeconds   float64 `json:"eta_seconds"`
	EventsPerSec float64 `json:"events_per_sec"`
}

type MigrationCompleted struct {
	RunID          string  `json:"run_id"`
	Inserted       int64   `json:"inserted"`
	Excluded       int64   `json:"excluded"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	CompositeScore float64 `json:"composite_score,omitempty"`
}

type MigrationFailed struct {
	RunID    string `json:"run_id"`
	Phase    string `json:"phase"`
	Error    string `json:"error"`
	Inserted int64  `json:"inserted"`
}

type CheckpointCreated struct {
	RunID     string `json:"run_id,omitempty"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

type CheckpointArchived struct {
	Path        string `json:"path"`
	Destination string `json:"destination"`
}

type RollbackStarted struct {
	SourcePath string `json:"source_path"`
	TargetPath string `json:"target_path,omitempty"`
}

type RollbackCompleted struct {
	SourcePath    string `json:"source_path"`
	RestoredCount int64  `json:"restored_count"`
}

// Publisher is the interface for emitting progress events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
