// Package checkpoint snapshots the source store before migration and
// restores it on demand. A checkpoint is a byte-identical copy of the source
// file plus a sidecar metadata file; it is created once before any mutation
// and superseded by later checkpoints, never merged.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/groblegark/eventlift/internal/idgen"
	"github.com/groblegark/eventlift/internal/model"
)

// ErrNoCheckpoint is returned when an operation requires a checkpoint and
// none exists.
var ErrNoCheckpoint = errors.New("no checkpoint exists")

const (
	checkpointName = "source.db.checkpoint"
	metadataName   = "source.db.checkpoint.meta.json"
)

// Metadata is the sidecar record written next to the checkpoint copy.
type Metadata struct {
	CreatedAt           time.Time `json:"created_at"`
	OriginalPath        string    `json:"original_path"`
	CheckpointPath      string    `json:"checkpoint_path"`
	SourceFormatVersion string    `json:"source_format_version"`
	SizeBytes           int64     `json:"size_bytes"`
	RunID               string    `json:"run_id,omitempty"`
}

// Manager owns the checkpoint lifecycle for one source store.
type Manager struct {
	sourcePath string
	dir        string
	logger     *slog.Logger
}

// NewManager creates a checkpoint manager. dir holds the checkpoint copy and
// its metadata sidecar; it is created on first use.
func NewManager(sourcePath, dir string, logger *slog.Logger) *Manager {
	return &Manager{sourcePath: sourcePath, dir: dir, logger: logger}
}

// CheckpointPath returns the path of the checkpoint copy.
func (m *Manager) CheckpointPath() string {
	return filepath.Join(m.dir, checkpointName)
}

func (m *Manager) metadataPath() string {
	return filepath.Join(m.dir, metadataName)
}

// Create copies the source store verbatim into the checkpoint directory and
// writes the metadata sidecar. An existing checkpoint is superseded:
// last writer wins.
func (m *Manager) Create(ctx context.Context, runID string) (*Metadata, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}

	size, err := copyFile(m.sourcePath, m.CheckpointPath())
	if err != nil {
		return nil, fmt.Errorf("copy source to checkpoint: %w", err)
	}

	meta := &Metadata{
		CreatedAt:           time.Now().UTC(),
		OriginalPath:        m.sourcePath,
		CheckpointPath:      m.CheckpointPath(),
		SourceFormatVersion: model.SourceFormatVersion,
		SizeBytes:           size,
		RunID:               runID,
	}
	if err := writeMetadata(m.metadataPath(), meta); err != nil {
		_ = os.Remove(m.CheckpointPath())
		return nil, err
	}

	m.logger.Info("checkpoint created",
		"path", m.CheckpointPath(), "bytes", size, "run_id", runID)
	return meta, nil
}

// Info loads the checkpoint metadata, or ErrNoCheckpoint.
func (m *Manager) Info() (*Metadata, error) {
	data, err := os.ReadFile(m.metadataPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCheckpoint
		}
		return nil, fmt.Errorf("read checkpoint metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode checkpoint metadata: %w", err)
	}
	return &meta, nil
}

// Describe returns a report-friendly view of the checkpoint state.
func (m *Manager) Describe() *model.CheckpointInfo {
	meta, err := m.Info()
	if err != nil {
		return &model.CheckpointInfo{Exists: false}
	}
	return &model.CheckpointInfo{
		Exists:    true,
		CreatedAt: meta.CreatedAt,
		Path:      meta.CheckpointPath,
		SizeBytes: meta.SizeBytes,
	}
}

// Validate verifies checkpoint integrity: both files present, required
// metadata fields set, and a live structural probe on the checkpoint copy.
func (m *Manager) Validate(ctx context.Context) (*model.ValidationResult, error) {
	result := &model.ValidationResult{}

	if _, err := os.Stat(m.CheckpointPath()); err != nil {
		result.AddError(fmt.Sprintf("checkpoint copy missing: %v", err))
	}

	meta, err := m.Info()
	if err != nil {
		result.AddError(fmt.Sprintf("checkpoint metadata missing: %v", err))
		return result, nil
	}

	if meta.CreatedAt.IsZero() {
		result.AddError("checkpoint metadata has no creation time")
	}
	if meta.OriginalPath == "" || meta.CheckpointPath == "" {
		result.AddError("checkpoint metadata has empty paths")
	}
	if meta.SourceFormatVersion == "" {
		result.AddError("checkpoint metadata has no source format version")
	}

	if !result.Valid() {
		return result, nil
	}

	// Structural probe: the copy must open and answer a count.
	if _, _, err := countStore(ctx, m.CheckpointPath()); err != nil {
		result.AddError(fmt.Sprintf("checkpoint probe failed: %v", err))
	}

	return result, nil
}

// Restore overwrites the source store from the checkpoint. Whatever currently
// occupies the source path is backed up first (timestamped, never deleted),
// so a restore cannot destroy state it did not create. Returns the backup
// path, empty when the source path was vacant.
func (m *Manager) Restore(ctx context.Context) (string, error) {
	result, err := m.Validate(ctx)
	if err != nil {
		return "", err
	}
	if !result.Valid() {
		return "", fmt.Errorf("checkpoint failed validation: %v", result.Errors)
	}

	backupPath := ""
	if _, err := os.Stat(m.sourcePath); err == nil {
		backupPath, err = m.backupPath(m.sourcePath)
		if err != nil {
			return "", err
		}
		if _, err := copyFile(m.sourcePath, backupPath); err != nil {
			return "", fmt.Errorf("back up current source: %w", err)
		}
		m.logger.Info("backed up current source", "path", backupPath)
	}

	if _, err := copyFile(m.CheckpointPath(), m.sourcePath); err != nil {
		return backupPath, fmt.Errorf("restore checkpoint onto source: %w", err)
	}

	m.logger.Info("source restored from checkpoint", "source", m.sourcePath)
	return backupPath, nil
}

// Rollback is the full recovery path: back up the target store if present,
// delete it, then restore the source from the checkpoint. The two steps are
// deliberately sequential; a crash between target deletion and source
// restore leaves an inconsistent but recoverable state, because the
// checkpoint itself is untouched and a second Rollback completes the job.
func (m *Manager) Rollback(ctx context.Context, targetPath string) error {
	result, err := m.Validate(ctx)
	if err != nil {
		return err
	}
	if !result.Valid() {
		return fmt.Errorf("refusing rollback, checkpoint failed validation: %v", result.Errors)
	}

	if targetPath != "" {
		if _, err := os.Stat(targetPath); err == nil {
			backup, err := m.backupPath(targetPath)
			if err != nil {
				return err
			}
			if _, err := copyFile(targetPath, backup); err != nil {
				return fmt.Errorf("back up target: %w", err)
			}
			if err := os.Remove(targetPath); err != nil {
				return fmt.Errorf("delete target: %w", err)
			}
			m.logger.Info("target removed", "path", targetPath, "backup", backup)
		}
	}

	if _, err := m.Restore(ctx); err != nil {
		return err
	}

	return m.VerifyRestore(ctx)
}

// VerifyRestore requires exact equality of record and distinct-user counts
// between the checkpoint and the restored source.
func (m *Manager) VerifyRestore(ctx context.Context) error {
	wantTotal, wantUsers, err := countStore(ctx, m.CheckpointPath())
	if err != nil {
		return fmt.Errorf("count checkpoint: %w", err)
	}
	gotTotal, gotUsers, err := countStore(ctx, m.sourcePath)
	if err != nil {
		return fmt.Errorf("count restored source: %w", err)
	}
	if gotTotal != wantTotal {
		return fmt.Errorf("restored record count %d != checkpoint count %d", gotTotal, wantTotal)
	}
	if gotUsers != wantUsers {
		return fmt.Errorf("restored distinct-user count %d != checkpoint count %d", gotUsers, wantUsers)
	}
	return nil
}

// Cleanup deletes the checkpoint copy and its metadata.
func (m *Manager) Cleanup() error {
	var errs []error
	for _, path := range []string{m.CheckpointPath(), m.metadataPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup checkpoint: %v", errs)
	}
	return nil
}

func (m *Manager) backupPath(path string) (string, error) {
	suffix, err := idgen.Suffix()
	if err != nil {
		return "", fmt.Errorf("backup suffix: %w", err)
	}
	stamp := time.Now().UTC().Format("20060102T150405")
	return fmt.Sprintf("%s.backup-%s-%s", path, stamp, suffix), nil
}

func writeMetadata(path string, meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint metadata: %w", err)
	}
	return nil
}

// copyFile copies src to dst through a temp file in dst's directory, then
// renames into place so readers never observe a half-written file.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, in)
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return 0, err
	}
	return n, nil
}

// countStore opens a vote store read-only and returns total and
// distinct-user counts.
func countStore(ctx context.Context, path string) (total, users int64, err error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return 0, 0, err
	}
	defer db.Close()

	row := db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT user_id) FROM votes`)
	if err := row.Scan(&total, &users); err != nil {
		return 0, 0, err
	}
	return total, users, nil
}
