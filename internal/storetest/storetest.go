// Package storetest creates throwaway legacy vote stores for tests.
package storetest

import (
	"database/sql"
	"fmt"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/groblegark/eventlift/internal/model"
)

// votesSchema mirrors the legacy store layout the extractor expects.
const votesSchema = `
CREATE TABLE votes (
    id TEXT PRIMARY KEY,
    user_id TEXT,
    prompt_id TEXT,
    vote INTEGER,
    comment TEXT,
    timestamp INTEGER,
    metadata TEXT,
    prompt_text TEXT,
    response_text TEXT,
    model_id TEXT,
    latency_ms INTEGER
)`

// CreateSource writes a legacy vote store at path containing the given records.
func CreateSource(t *testing.T, path string, records []model.LegacyRecord) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open source fixture: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(votesSchema); err != nil {
		t.Fatalf("create votes table: %v", err)
	}
	for _, rec := range records {
		if err := insertRecord(db, rec); err != nil {
			t.Fatalf("insert record %s: %v", rec.ID, err)
		}
	}
}

// CreateEmptyDB writes a sqlite file at path with no votes table, for
// schema-validation failure cases.
func CreateEmptyDB(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE unrelated (id TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
}

// InsertRaw adds one more record to an existing source store, bypassing any
// domain checks so tests can plant invalid rows.
func InsertRaw(t *testing.T, path string, rec model.LegacyRecord) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open source fixture: %v", err)
	}
	defer db.Close()
	if err := insertRecord(db, rec); err != nil {
		t.Fatalf("insert record %s: %v", rec.ID, err)
	}
}

// DeleteRecord removes a record by ID, used to mutate a source between
// checkpoint and restore.
func DeleteRecord(t *testing.T, path, id string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open source fixture: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`DELETE FROM votes WHERE id = ?`, id); err != nil {
		t.Fatalf("delete record %s: %v", id, err)
	}
}

// CountRecords returns the number of rows in the votes table.
func CountRecords(t *testing.T, path string) int64 {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		t.Fatalf("open source fixture: %v", err)
	}
	defer db.Close()
	var n int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM votes`).Scan(&n); err != nil {
		t.Fatalf("count records: %v", err)
	}
	return n
}

// Records builds n sequential well-formed records. IDs are vote-1..vote-n,
// timestamps ascend by one second, votes alternate between 1 and -1.
func Records(n int) []model.LegacyRecord {
	out := make([]model.LegacyRecord, n)
	for i := range out {
		vote := model.VoteUp
		if i%2 == 1 {
			vote = model.VoteDown
		}
		out[i] = model.LegacyRecord{
			ID:        fmt.Sprintf("vote-%d", i+1),
			UserID:    fmt.Sprintf("user-%d", i%3+1),
			PromptID:  fmt.Sprintf("prompt-%d", i%2+1),
			Vote:      vote,
			Timestamp: 1700000000000 + int64(i)*1000,
			Metadata:  `{"client":"web"}`,
		}
	}
	return out
}

func insertRecord(db *sql.DB, rec model.LegacyRecord) error {
	var latency any
	if rec.LatencyMS != nil {
		latency = *rec.LatencyMS
	}
	_, err := db.Exec(`
		INSERT INTO votes (id, user_id, prompt_id, vote, comment, timestamp,
			metadata, prompt_text, response_text, model_id, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		nullable(rec.UserID),
		nullable(rec.PromptID),
		int(rec.Vote),
		nullable(rec.Comment),
		rec.Timestamp,
		nullable(rec.Metadata),
		nullable(rec.PromptText),
		nullable(rec.ResponseText),
		nullable(rec.ModelID),
		latency,
	)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
