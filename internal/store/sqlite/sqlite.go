// Package sqlite implements the store.Store interface backed by a single
// SQLite file. The canonical schema is created idempotently on open via
// embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/groblegark/eventlift/internal/model"
	"github.com/groblegark/eventlift/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// EventStore implements store.Store backed by a SQLite file.
type EventStore struct {
	db   *sql.DB
	path string
}

// Compile-time check that EventStore implements store.Store.
var _ store.Store = (*EventStore)(nil)

// New opens (creating if absent) the event store at path and applies any
// pending schema migrations. Schema creation is idempotent.
func New(path string) (*EventStore, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}

	// The store has exactly one writer per run; a second connection would
	// only hit SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping event store: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &EventStore{db: db, path: path}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Path returns the target store path.
func (s *EventStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *EventStore) Close() error {
	return s.db.Close()
}

// InsertBatch loads the batch in one all-or-nothing transaction. Atomicity
// is per batch, not per run: a mid-batch failure rolls this batch back and
// leaves previously committed batches intact.
func (s *EventStore) InsertBatch(ctx context.Context, events []*model.CanonicalEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch transaction: %w", err)
	}

	if err := queryInsertEvents(ctx, tx, events); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *EventStore) Stats(ctx context.Context) (*model.TargetStats, error) {
	return queryStats(ctx, s.db)
}

func (s *EventStore) CountsByType(ctx context.Context) (map[string]int64, error) {
	return queryCountsByType(ctx, s.db)
}

func (s *EventStore) CheckIntegrity(ctx context.Context) (*model.ValidationResult, error) {
	return queryCheckIntegrity(ctx, s.db)
}

func (s *EventStore) RecentEvents(ctx context.Context, n int) ([]*model.CanonicalEvent, error) {
	return queryRecentEvents(ctx, s.db, n)
}

// Clear removes every event. Destructive; used by rollback and tests.
func (s *EventStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	return nil
}
