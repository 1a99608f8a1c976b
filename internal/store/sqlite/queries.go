package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/groblegark/eventlift/internal/model"
)

// eventColumns is the column list used for SELECT statements on the events table.
const eventColumns = `id, user_id, event_type, timestamp, properties, prompt_text, response_text`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryInsertEvents(ctx context.Context, db executor, events []*model.CanonicalEvent) error {
	for _, e := range events {
		properties, err := json.Marshal(e.Properties)
		if err != nil {
			return fmt.Errorf("encode properties for %s: %w", e.ID, err)
		}
		_, err = db.ExecContext(ctx, `
			INSERT INTO events (
				id, user_id, event_type, timestamp, properties, prompt_text, response_text
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID,
			e.UserID,
			e.EventType.String(),
			e.Timestamp,
			string(properties),
			nullString(e.PromptText),
			nullString(e.ResponseText),
		)
		if err != nil {
			return fmt.Errorf("insert event %s: %w", e.ID, err)
		}
	}
	return nil
}

func queryStats(ctx context.Context, db executor) (*model.TargetStats, error) {
	var s model.TargetStats
	row := db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT user_id),
		       COALESCE(MIN(timestamp), 0),
		       COALESCE(MAX(timestamp), 0)
		FROM events`)
	if err := row.Scan(
		&s.TotalEvents,
		&s.DistinctUsers,
		&s.EarliestTimestamp,
		&s.LatestTimestamp,
	); err != nil {
		return nil, fmt.Errorf("target stats: %w", err)
	}

	counts, err := queryCountsByType(ctx, db)
	if err != nil {
		return nil, err
	}
	s.CountsByType = counts
	return &s, nil
}

func queryCountsByType(ctx context.Context, db executor) (map[string]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT event_type, COUNT(*) FROM events GROUP BY event_type`)
	if err != nil {
		return nil, fmt.Errorf("counts by type: %w", err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("counts by type: %w", err)
		}
		counts[typ] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("counts by type: %w", err)
	}
	return counts, nil
}

func queryCheckIntegrity(ctx context.Context, db executor) (*model.ValidationResult, error) {
	result := &model.ValidationResult{}

	var invalidPayloads int64
	row := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE json_valid(properties) = 0`)
	if err := row.Scan(&invalidPayloads); err != nil {
		return nil, fmt.Errorf("payload syntax check: %w", err)
	}
	if invalidPayloads > 0 {
		result.AddError(fmt.Sprintf("%d events have invalid property payloads", invalidPayloads))
	}

	var nullRequired int64
	row = db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events
		WHERE user_id IS NULL OR user_id = '' OR event_type IS NULL OR event_type = '' OR timestamp IS NULL`)
	if err := row.Scan(&nullRequired); err != nil {
		return nil, fmt.Errorf("required field check: %w", err)
	}
	if nullRequired > 0 {
		result.AddError(fmt.Sprintf("%d events are missing required fields", nullRequired))
	}

	// Provenance markers are advisory: an event written by a later producer
	// legitimately has none.
	var missingProvenance int64
	row = db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*) FROM events
		WHERE json_valid(properties) = 1
		  AND (json_extract(properties, '$.%s') IS NULL
		    OR json_extract(properties, '$.%s') IS NULL
		    OR json_extract(properties, '$.%s') IS NULL)`,
		model.PropMigratedFrom, model.PropMigratedAt, model.PropEventSource))
	if err := row.Scan(&missingProvenance); err != nil {
		return nil, fmt.Errorf("provenance check: %w", err)
	}
	if missingProvenance > 0 {
		result.AddWarning(fmt.Sprintf("%d events are missing provenance markers", missingProvenance))
	}

	return result, nil
}

func queryRecentEvents(ctx context.Context, db executor, n int) ([]*model.CanonicalEvent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY timestamp DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	var events []*model.CanonicalEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("recent events: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return events, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
