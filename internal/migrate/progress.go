package migrate

import "time"

// tracker projects remaining time from observed per-event throughput.
// It is updated once per batch boundary; batches are strictly sequential so
// no locking is needed.
type tracker struct {
	total     int64
	processed int64
	started   time.Time
}

func newTracker(total int64) *tracker {
	return &tracker{total: total, started: time.Now()}
}

func (t *tracker) observe(n int) {
	t.processed += int64(n)
}

// rate returns events per second since the run started.
func (t *tracker) rate() float64 {
	elapsed := time.Since(t.started).Seconds()
	if elapsed <= 0 || t.processed == 0 {
		return 0
	}
	return float64(t.processed) / elapsed
}

// eta projects seconds remaining from the elapsed time per event so far.
func (t *tracker) eta() float64 {
	r := t.rate()
	if r == 0 {
		return 0
	}
	remaining := t.total - t.processed
	if remaining < 0 {
		remaining = 0
	}
	return float64(remaining) / r
}
