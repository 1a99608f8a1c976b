// Package model defines the data types shared across the migration engine:
// legacy vote records, canonical events, and the report structures the
// validators and orchestrator produce.
package model

// VoteValue is the polarity of a legacy vote record.
type VoteValue int

const (
	VoteUp   VoteValue = 1
	VoteDown VoteValue = -1
)

// IsValid checks whether the vote value is in the legal domain.
// Anything outside {1, -1} is rejected, never coerced.
func (v VoteValue) IsValid() bool {
	return v == VoteUp || v == VoteDown
}

// LegacyRecord is one pre-migration vote row from the source store.
// Records are read-only; the extractor never mutates the source.
type LegacyRecord struct {
	ID        string
	UserID    string
	PromptID  string
	Vote      VoteValue
	Comment   string
	Timestamp int64 // milliseconds since epoch

	// Metadata is the raw JSON text of the extension metadata column.
	// It may be malformed; the converter treats malformed text as empty
	// rather than failing the record.
	Metadata string

	PromptText   string
	ResponseText string
	ModelID      string
	LatencyMS    *int64
}
