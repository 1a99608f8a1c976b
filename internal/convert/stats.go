package convert

import (
	"time"

	"github.com/groblegark/eventlift/internal/model"
)

// BatchStats summarizes the outcomes of one converted batch.
type BatchStats struct {
	TotalConverted    int
	MetadataPreserved int
	ContentPreserved  int
	Excluded          int
	MalformedMetadata int
	CountsByType      map[string]int
}

// ConvertBatch converts every record in the batch with one shared conversion
// timestamp. There is no shared mutable state between records; each outcome
// stands alone.
func ConvertBatch(records []*model.LegacyRecord, now time.Time) []*Outcome {
	outcomes := make([]*Outcome, len(records))
	for i, rec := range records {
		outcomes[i] = Convert(rec, now)
	}
	return outcomes
}

// Summarize aggregates batch statistics from conversion outcomes.
// MetadataPreserved counts records whose metadata column survived the merge;
// ContentPreserved counts events that kept prompt or response text.
func Summarize(outcomes []*Outcome) BatchStats {
	stats := BatchStats{CountsByType: map[string]int{}}
	for _, o := range outcomes {
		stats.TotalConverted++
		if o.MetadataMalformed {
			stats.MalformedMetadata++
		}
		if !o.Valid() {
			stats.Excluded++
			continue
		}
		stats.CountsByType[o.Event.EventType.String()]++
		if !o.MetadataMalformed && hasMetadataContribution(o.Event) {
			stats.MetadataPreserved++
		}
		if o.Event.PromptText != "" || o.Event.ResponseText != "" {
			stats.ContentPreserved++
		}
	}
	return stats
}

// hasMetadataContribution reports whether the event carries any property
// beyond the lifted structural fields and the provenance markers.
func hasMetadataContribution(e *model.CanonicalEvent) bool {
	structural := map[string]bool{
		"vote": true, "prompt_id": true, "comment": true,
		"model_id": true, "latency_ms": true,
	}
	provenance := map[string]bool{
		model.PropMigratedFrom: true,
		model.PropMigratedAt:   true,
		model.PropEventSource:  true,
	}
	for k := range e.Properties {
		if !structural[k] && !provenance[k] {
			return true
		}
	}
	return false
}
