package model

import "time"

// SourceStats summarizes the legacy store before migration.
type SourceStats struct {
	TotalRecords      int64 `json:"total_records"`
	DistinctUsers     int64 `json:"distinct_users"`
	DistinctPrompts   int64 `json:"distinct_prompts"`
	EarliestTimestamp int64 `json:"earliest_timestamp"`
	LatestTimestamp   int64 `json:"latest_timestamp"`
}

// TargetStats summarizes the event store after migration.
type TargetStats struct {
	TotalEvents       int64            `json:"total_events"`
	DistinctUsers     int64            `json:"distinct_users"`
	EarliestTimestamp int64            `json:"earliest_timestamp"`
	LatestTimestamp   int64            `json:"latest_timestamp"`
	CountsByType      map[string]int64 `json:"counts_by_type"`
}

// ValidationResult carries the outcome of a source or target validation pass.
// Errors are blocking; warnings are advisory and never stop a run.
type ValidationResult struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid reports whether the validation found no blocking errors.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends a blocking error.
func (r *ValidationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// AddWarning appends an advisory warning.
func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// CheckpointInfo describes an existing checkpoint for status reporting.
type CheckpointInfo struct {
	Exists    bool      `json:"exists"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	Path      string    `json:"path,omitempty"`
	SizeBytes int64     `json:"size_bytes,omitempty"`
}

// ConversionSummary aggregates per-record conversion outcomes over a run.
type ConversionSummary struct {
	Converted         int64            `json:"converted"`
	Inserted          int64            `json:"inserted"`
	Excluded          int64            `json:"excluded"`
	MalformedMetadata int64            `json:"malformed_metadata"`
	CountsByType      map[string]int64 `json:"counts_by_type"`
}
