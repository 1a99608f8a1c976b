package model

// EventType categorizes a canonical event. The vote migration produces a
// single type today; the schema is open for future event kinds.
type EventType string

const (
	EventVoteCast EventType = "vote_cast"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// IsValid reports whether the event type is a known value.
func (t EventType) IsValid() bool {
	return t == EventVoteCast
}

// EventIDPrefix is prepended to the legacy record ID to form the canonical
// event ID. Derivation is deterministic so re-running a migration yields the
// same IDs and duplicates are detectable by primary-key conflict.
const EventIDPrefix = "migrated_"

// EventID derives the canonical event ID for a legacy record ID.
func EventID(recordID string) string {
	return EventIDPrefix + recordID
}

// Provenance property keys added by the converter. Provenance values always
// win the property merge and are never overwritten by legacy metadata.
const (
	PropMigratedFrom = "_migrated_from"
	PropMigratedAt   = "_migrated_at"
	PropEventSource  = "_event_source"
)

// SourceFormatVersion tags the legacy schema a migrated event came from.
const SourceFormatVersion = "votes_v1"

// MigrationEventSource is the value recorded under PropEventSource.
const MigrationEventSource = "migration"

// CanonicalEvent is one post-migration generalized event row. Events are
// created once by the converter and immutable afterward.
type CanonicalEvent struct {
	ID        string
	UserID    string
	EventType EventType
	Timestamp int64 // milliseconds since epoch

	// Properties holds lifted structural fields, preserved legacy metadata,
	// and the provenance markers. Stored as JSON text in the target store.
	Properties map[string]any

	PromptText   string
	ResponseText string
}
