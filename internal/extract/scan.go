package extract

import (
	"database/sql"

	"github.com/groblegark/eventlift/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanRecord scans a single row into a model.LegacyRecord.
// The row must contain columns in the order defined by recordColumns.
func scanRecord(row scannable) (*model.LegacyRecord, error) {
	var rec model.LegacyRecord
	var (
		comment      sql.NullString
		metadata     sql.NullString
		promptText   sql.NullString
		responseText sql.NullString
		modelID      sql.NullString
		latencyMS    sql.NullInt64
		vote         int
	)

	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.PromptID,
		&vote,
		&comment,
		&rec.Timestamp,
		&metadata,
		&promptText,
		&responseText,
		&modelID,
		&latencyMS,
	)
	if err != nil {
		return nil, err
	}

	rec.Vote = model.VoteValue(vote)
	rec.Comment = comment.String
	rec.Metadata = metadata.String
	rec.PromptText = promptText.String
	rec.ResponseText = responseText.String
	rec.ModelID = modelID.String
	if latencyMS.Valid {
		rec.LatencyMS = &latencyMS.Int64
	}
	return &rec, nil
}
