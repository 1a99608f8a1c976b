package migrate

import (
	"time"

	"github.com/groblegark/eventlift/internal/convert"
	"github.com/groblegark/eventlift/internal/model"
	"github.com/groblegark/eventlift/internal/validate"
)

// maxRecordErrors caps how many per-record exclusion messages a report
// carries. The full count is always in Summary.Excluded.
const maxRecordErrors = 20

// Report is the result of one migration run (or dry run). A failed run still
// returns a report with whatever stats were gathered before the failure.
type Report struct {
	RunID      string    `json:"run_id"`
	DryRun     bool      `json:"dry_run"`
	Success    bool      `json:"success"`
	Phase      string    `json:"phase,omitempty"` // phase that failed, empty on success
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Source  *model.SourceStats      `json:"source,omitempty"`
	Target  *model.TargetStats      `json:"target,omitempty"`
	Summary model.ConversionSummary `json:"summary"`

	Readiness *validate.ReadinessReport `json:"readiness,omitempty"`
	Integrity *validate.IntegrityReport `json:"integrity,omitempty"`

	// RecordErrors holds up to maxRecordErrors per-record exclusion
	// messages, in extraction order.
	RecordErrors []string `json:"record_errors,omitempty"`

	Batches int `json:"batches"`

	// Dry-run only: converted samples and the projected target size.
	Samples              []*convert.Preview `json:"samples,omitempty"`
	EstimatedTargetBytes int64              `json:"estimated_target_bytes,omitempty"`
}

// Elapsed returns the wall-clock duration of the run.
func (r *Report) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) addRecordError(msg string) {
	if len(r.RecordErrors) < maxRecordErrors {
		r.RecordErrors = append(r.RecordErrors, msg)
	}
}
