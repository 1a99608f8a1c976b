package checkpoint

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/groblegark/eventlift/internal/model"
	"github.com/groblegark/eventlift/internal/storetest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, n int) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "votes.db")
	storetest.CreateSource(t, sourcePath, storetest.Records(n))
	m := NewManager(sourcePath, filepath.Join(dir, ".eventlift"), discardLogger())
	return m, sourcePath
}

func TestCreateAndInfo(t *testing.T) {
	m, sourcePath := newFixture(t, 4)
	ctx := context.Background()

	meta, err := m.Create(ctx, "run-test1")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if meta.OriginalPath != sourcePath {
		t.Errorf("OriginalPath = %q, want %q", meta.OriginalPath, sourcePath)
	}
	if meta.SourceFormatVersion != model.SourceFormatVersion {
		t.Errorf("SourceFormatVersion = %q", meta.SourceFormatVersion)
	}
	if meta.SizeBytes <= 0 {
		t.Errorf("SizeBytes = %d, want > 0", meta.SizeBytes)
	}

	loaded, err := m.Info()
	if err != nil {
		t.Fatalf("Info() error: %v", err)
	}
	if loaded.RunID != "run-test1" {
		t.Errorf("RunID = %q", loaded.RunID)
	}
	if !loaded.CreatedAt.Equal(meta.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", loaded.CreatedAt, meta.CreatedAt)
	}
}

func TestInfoWithoutCheckpoint(t *testing.T) {
	m, _ := newFixture(t, 1)
	if _, err := m.Info(); !errors.Is(err, ErrNoCheckpoint) {
		t.Errorf("Info() error = %v, want ErrNoCheckpoint", err)
	}
	info := m.Describe()
	if info.Exists {
		t.Error("Describe().Exists = true, want false")
	}
}

func TestValidate(t *testing.T) {
	m, _ := newFixture(t, 3)
	ctx := context.Background()

	if _, err := m.Create(ctx, ""); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	result, err := m.Validate(ctx)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if !result.Valid() {
		t.Errorf("Validate() errors = %v", result.Errors)
	}
}

func TestValidateMissingCopy(t *testing.T) {
	m, _ := newFixture(t, 1)
	ctx := context.Background()
	if _, err := m.Create(ctx, ""); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := os.Remove(m.CheckpointPath()); err != nil {
		t.Fatal(err)
	}
	result, err := m.Validate(ctx)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if result.Valid() {
		t.Error("Validate() should fail when the copy is gone")
	}
}

func TestValidateCorruptCopy(t *testing.T) {
	m, _ := newFixture(t, 1)
	ctx := context.Background()
	if _, err := m.Create(ctx, ""); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := os.WriteFile(m.CheckpointPath(), []byte("not a database"), 0o644); err != nil {
		t.Fatal(err)
	}
	result, err := m.Validate(ctx)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if result.Valid() {
		t.Error("structural probe should fail on a corrupt copy")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	m, sourcePath := newFixture(t, 5)
	ctx := context.Background()

	if _, err := m.Create(ctx, ""); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	// Mutate the source arbitrarily after checkpointing.
	storetest.DeleteRecord(t, sourcePath, "vote-1")
	storetest.DeleteRecord(t, sourcePath, "vote-2")
	if got := storetest.CountRecords(t, sourcePath); got != 3 {
		t.Fatalf("precondition: source count = %d, want 3", got)
	}

	backup, err := m.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if backup == "" {
		t.Error("Restore() should back up the occupied source path")
	} else if _, err := os.Stat(backup); err != nil {
		t.Errorf("backup file missing: %v", err)
	}

	if got := storetest.CountRecords(t, sourcePath); got != 5 {
		t.Errorf("restored count = %d, want 5", got)
	}
	if err := m.VerifyRestore(ctx); err != nil {
		t.Errorf("VerifyRestore() error: %v", err)
	}
}

func TestRestoreWithoutCheckpoint(t *testing.T) {
	m, _ := newFixture(t, 1)
	if _, err := m.Restore(context.Background()); err == nil {
		t.Fatal("Restore() without a checkpoint should fail")
	}
}

func TestRollback(t *testing.T) {
	m, sourcePath := newFixture(t, 4)
	ctx := context.Background()

	if _, err := m.Create(ctx, ""); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	storetest.DeleteRecord(t, sourcePath, "vote-4")

	targetPath := filepath.Join(filepath.Dir(sourcePath), "events.db")
	if err := os.WriteFile(targetPath, []byte("partial target"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := m.Rollback(ctx, targetPath); err != nil {
		t.Fatalf("Rollback() error: %v", err)
	}

	if _, err := os.Stat(targetPath); !os.IsNotExist(err) {
		t.Error("target should be deleted by rollback")
	}
	if got := storetest.CountRecords(t, sourcePath); got != 4 {
		t.Errorf("restored count = %d, want 4", got)
	}

	// The target backup must exist alongside the deleted target.
	entries, err := os.ReadDir(filepath.Dir(targetPath))
	if err != nil {
		t.Fatal(err)
	}
	foundBackup := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "events.db.backup-") {
			foundBackup = true
		}
	}
	if !foundBackup {
		t.Error("rollback should leave a timestamped target backup")
	}
}

func TestCleanup(t *testing.T) {
	m, _ := newFixture(t, 1)
	ctx := context.Background()
	if _, err := m.Create(ctx, ""); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := m.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}
	if _, err := m.Info(); !errors.Is(err, ErrNoCheckpoint) {
		t.Errorf("Info() after Cleanup = %v, want ErrNoCheckpoint", err)
	}
	// Cleanup with nothing left is not an error.
	if err := m.Cleanup(); err != nil {
		t.Errorf("second Cleanup() error: %v", err)
	}
}

func TestArchiveToDir(t *testing.T) {
	m, _ := newFixture(t, 2)
	ctx := context.Background()
	if _, err := m.Create(ctx, ""); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	archiveDir := filepath.Join(t.TempDir(), "archive")
	dest := NewDirDestination(archiveDir, "checkpoint.db")
	if err := m.Archive(ctx, dest); err != nil {
		t.Fatalf("Archive() error: %v", err)
	}

	orig, err := os.ReadFile(m.CheckpointPath())
	if err != nil {
		t.Fatal(err)
	}
	copied, err := os.ReadFile(filepath.Join(archiveDir, "checkpoint.db"))
	if err != nil {
		t.Fatalf("archived file missing: %v", err)
	}
	if len(orig) != len(copied) {
		t.Errorf("archive size = %d, want %d", len(copied), len(orig))
	}
}

func TestArchiveWithoutCheckpoint(t *testing.T) {
	m, _ := newFixture(t, 1)
	dest := NewDirDestination(t.TempDir(), "checkpoint.db")
	if err := m.Archive(context.Background(), dest); !errors.Is(err, ErrNoCheckpoint) {
		t.Errorf("Archive() error = %v, want ErrNoCheckpoint", err)
	}
}
