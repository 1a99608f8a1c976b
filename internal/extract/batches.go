package extract

import (
	"context"
	"fmt"

	"github.com/groblegark/eventlift/internal/model"
)

// Batches is a pull-based iterator over the source store. Each Next call
// yields at most one batch in ascending timestamp order (ID breaks ties so
// ordering is total and re-runs see the same sequence). The iterator is not
// restartable; reopen the extractor to scan again.
type Batches struct {
	rows rowIterator
	size int
	done bool
}

// rowIterator is the subset of *sql.Rows the iterator needs.
type rowIterator interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Batches starts a streaming scan of the votes table and returns the batch
// iterator. The batch size bounds per-advance memory use.
func (e *Extractor) Batches(ctx context.Context, size int) (*Batches, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", size)
	}
	rows, err := e.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM votes ORDER BY timestamp ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("scan votes: %w", err)
	}
	return &Batches{rows: rows, size: size}, nil
}

// Next returns the next batch, or nil when the source is exhausted.
// After an error or exhaustion the iterator is closed and further calls
// return nil.
func (b *Batches) Next() ([]*model.LegacyRecord, error) {
	if b.done {
		return nil, nil
	}

	batch := make([]*model.LegacyRecord, 0, b.size)
	for len(batch) < b.size && b.rows.Next() {
		rec, err := scanRecord(b.rows)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("scan record: %w", err)
		}
		batch = append(batch, rec)
	}

	if len(batch) < b.size {
		// A short batch means the cursor ran out; surface any read error.
		err := b.rows.Err()
		b.close()
		if err != nil {
			return nil, fmt.Errorf("read votes: %w", err)
		}
	}

	if len(batch) == 0 {
		return nil, nil
	}
	return batch, nil
}

// Close releases the underlying cursor. Safe to call more than once.
func (b *Batches) Close() error {
	if b.done {
		return nil
	}
	b.close()
	return nil
}

func (b *Batches) close() {
	b.done = true
	_ = b.rows.Close()
}
