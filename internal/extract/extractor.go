// Package extract reads the legacy vote store. The source is opened
// read-only and never mutated; records are produced as ordered batches so
// memory stays bounded regardless of store size.
package extract

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/groblegark/eventlift/internal/model"
)

// ErrRecordNotFound is returned by FindRecord when no row matches the ID.
var ErrRecordNotFound = errors.New("record not found")

// ErrSchemaMissing is returned when the source has no votes table.
var ErrSchemaMissing = errors.New("votes table not found in source store")

// recordColumns is the column list used for SELECT statements on the votes table.
const recordColumns = `id, user_id, prompt_id, vote, comment, timestamp,
	metadata, prompt_text, response_text, model_id, latency_ms`

// requiredColumns are the columns the legacy schema must carry.
var requiredColumns = []string{
	"id", "user_id", "prompt_id", "vote", "timestamp", "metadata",
}

// Extractor provides read-only access to a legacy vote store.
type Extractor struct {
	db   *sql.DB
	path string
}

// Open opens the source store read-only. The file must already exist;
// sqlite would otherwise create an empty database at the path.
func Open(path string) (*Extractor, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("source store: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open source store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping source store: %w", err)
	}

	return &Extractor{db: db, path: path}, nil
}

// Path returns the source store path.
func (e *Extractor) Path() string {
	return e.path
}

// Close closes the underlying database handle.
func (e *Extractor) Close() error {
	return e.db.Close()
}

// Stats computes source-side statistics: totals, distinct users and prompts,
// and the timestamp range.
func (e *Extractor) Stats(ctx context.Context) (*model.SourceStats, error) {
	var s model.SourceStats
	row := e.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT user_id),
		       COUNT(DISTINCT prompt_id),
		       COALESCE(MIN(timestamp), 0),
		       COALESCE(MAX(timestamp), 0)
		FROM votes`)
	if err := row.Scan(
		&s.TotalRecords,
		&s.DistinctUsers,
		&s.DistinctPrompts,
		&s.EarliestTimestamp,
		&s.LatestTimestamp,
	); err != nil {
		return nil, fmt.Errorf("source stats: %w", err)
	}
	return &s, nil
}

// Validate checks the source store before extraction. Schema problems and
// null identifiers are blocking errors; malformed metadata and out-of-domain
// vote values are warnings because the converter excludes those records
// individually without stopping the run.
func (e *Extractor) Validate(ctx context.Context) (*model.ValidationResult, error) {
	result := &model.ValidationResult{}

	ok, err := e.hasVotesTable(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		result.AddError(ErrSchemaMissing.Error())
		return result, nil
	}

	missing, err := e.missingColumns(ctx)
	if err != nil {
		return nil, err
	}
	for _, col := range missing {
		result.AddError(fmt.Sprintf("votes table is missing required column %q", col))
	}
	if len(missing) > 0 {
		// Row-level checks below would fail against a broken schema.
		return result, nil
	}

	var nullIDs int64
	row := e.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM votes
		WHERE user_id IS NULL OR user_id = '' OR prompt_id IS NULL OR prompt_id = ''`)
	if err := row.Scan(&nullIDs); err != nil {
		return nil, fmt.Errorf("null id check: %w", err)
	}
	if nullIDs > 0 {
		result.AddError(fmt.Sprintf("%d records have null or empty user/prompt ids", nullIDs))
	}

	var badVotes int64
	row = e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE vote NOT IN (1, -1)`)
	if err := row.Scan(&badVotes); err != nil {
		return nil, fmt.Errorf("vote domain check: %w", err)
	}
	if badVotes > 0 {
		result.AddWarning(fmt.Sprintf("%d records have vote values outside {1, -1}; they will be excluded", badVotes))
	}

	var badMetadata int64
	row = e.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM votes
		WHERE metadata IS NOT NULL AND metadata != '' AND json_valid(metadata) = 0`)
	if err := row.Scan(&badMetadata); err != nil {
		return nil, fmt.Errorf("metadata check: %w", err)
	}
	if badMetadata > 0 {
		result.AddWarning(fmt.Sprintf("%d records have malformed metadata JSON; their metadata will not be preserved", badMetadata))
	}

	return result, nil
}

func (e *Extractor) hasVotesTable(ctx context.Context) (bool, error) {
	var name string
	row := e.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'votes'`)
	if err := row.Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("schema check: %w", err)
	}
	return true, nil
}

func (e *Extractor) missingColumns(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, `PRAGMA table_info(votes)`)
	if err != nil {
		return nil, fmt.Errorf("column check: %w", err)
	}
	defer rows.Close()

	present := map[string]bool{}
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notnull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("column check: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("column check: %w", err)
	}

	var missing []string
	for _, col := range requiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing, nil
}

// FindRecord locates a single record by ID for preview. It returns
// ErrRecordNotFound when the ID does not exist.
func (e *Extractor) FindRecord(ctx context.Context, id string) (*model.LegacyRecord, error) {
	row := e.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM votes WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return nil, fmt.Errorf("find record %s: %w", id, err)
	}
	return rec, nil
}
