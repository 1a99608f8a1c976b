package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/groblegark/eventlift/internal/model"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func TestInsertBatchRollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	s := &EventStore{db: db}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events").
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	batch := []*model.CanonicalEvent{
		{ID: "migrated_a", UserID: "u1", EventType: model.EventVoteCast, Timestamp: 1},
		{ID: "migrated_b", UserID: "u2", EventType: model.EventVoteCast, Timestamp: 2},
	}
	if err := s.InsertBatch(context.Background(), batch); err == nil {
		t.Fatal("InsertBatch() should surface the insert failure")
	}
}

func TestInsertBatchCommitFailure(t *testing.T) {
	db, mock := newMockDB(t)
	s := &EventStore{db: db}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("disk full"))

	batch := []*model.CanonicalEvent{
		{ID: "migrated_a", UserID: "u1", EventType: model.EventVoteCast, Timestamp: 1},
	}
	if err := s.InsertBatch(context.Background(), batch); err == nil {
		t.Fatal("InsertBatch() should surface the commit failure")
	}
}

func TestQueryStatsError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\)").
		WillReturnError(errors.New("no such table: events"))

	if _, err := queryStats(context.Background(), db); err == nil {
		t.Fatal("queryStats() should fail when the table is missing")
	}
}

func TestQueryCountsByType(t *testing.T) {
	db, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"event_type", "count"}).
		AddRow("vote_cast", 41).
		AddRow("page_view", 1)
	mock.ExpectQuery("SELECT event_type, COUNT\\(\\*\\) FROM events GROUP BY event_type").
		WillReturnRows(rows)

	counts, err := queryCountsByType(context.Background(), db)
	if err != nil {
		t.Fatalf("queryCountsByType() error: %v", err)
	}
	if counts["vote_cast"] != 41 || counts["page_view"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
