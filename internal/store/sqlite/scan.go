package sqlite

import (
	"database/sql"
	"encoding/json"

	"github.com/groblegark/eventlift/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEvent scans a single row into a model.CanonicalEvent.
// The row must contain columns in the order defined by eventColumns.
func scanEvent(row scannable) (*model.CanonicalEvent, error) {
	var e model.CanonicalEvent
	var (
		eventType    string
		properties   string
		promptText   sql.NullString
		responseText sql.NullString
	)

	err := row.Scan(
		&e.ID,
		&e.UserID,
		&eventType,
		&e.Timestamp,
		&properties,
		&promptText,
		&responseText,
	)
	if err != nil {
		return nil, err
	}

	e.EventType = model.EventType(eventType)
	e.PromptText = promptText.String
	e.ResponseText = responseText.String

	// Tolerate unreadable payloads here; CheckIntegrity reports them.
	if err := json.Unmarshal([]byte(properties), &e.Properties); err != nil {
		e.Properties = map[string]any{}
	}
	return &e, nil
}
