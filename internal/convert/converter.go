// Package convert maps legacy vote records to canonical events. Conversion
// is pure and stateless: the same record and clock always produce the same
// event, so re-running a migration is idempotent.
package convert

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/groblegark/eventlift/internal/model"
)

// Outcome is the result of converting one record. Conversion itself never
// fails; problems that exclude a record surface through Violations.
type Outcome struct {
	Event *model.CanonicalEvent

	// MetadataMalformed is set when the record's metadata column did not
	// parse as JSON. The record still converts, with an empty metadata
	// contribution, and is counted separately from well-formed records.
	MetadataMalformed bool

	// Violations lists structural problems that exclude the event from
	// loading. Empty for loadable events.
	Violations []string
}

// Valid reports whether the converted event may be loaded.
func (o *Outcome) Valid() bool {
	return len(o.Violations) == 0
}

// Convert maps one legacy record to a canonical event. now is the conversion
// timestamp recorded in the provenance markers; passing it in keeps the
// function deterministic for a fixed clock.
func Convert(rec *model.LegacyRecord, now time.Time) *Outcome {
	structural := map[string]any{
		"vote":      int(rec.Vote),
		"prompt_id": rec.PromptID,
	}
	if rec.Comment != "" {
		structural["comment"] = rec.Comment
	}
	if rec.ModelID != "" {
		structural["model_id"] = rec.ModelID
	}
	if rec.LatencyMS != nil {
		structural["latency_ms"] = *rec.LatencyMS
	}

	metadata, malformed := parseMetadata(rec.Metadata)

	provenance := map[string]any{
		model.PropMigratedFrom: model.SourceFormatVersion,
		model.PropMigratedAt:   now.UTC().Format(time.RFC3339),
		model.PropEventSource:  model.MigrationEventSource,
	}

	event := &model.CanonicalEvent{
		ID:           model.EventID(rec.ID),
		UserID:       rec.UserID,
		EventType:    model.EventVoteCast,
		Timestamp:    rec.Timestamp,
		Properties:   mergeProperties(structural, metadata, provenance),
		PromptText:   rec.PromptText,
		ResponseText: rec.ResponseText,
	}

	outcome := &Outcome{Event: event, MetadataMalformed: malformed}
	if err := model.ValidateEvent(event); err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			outcome.Violations = ve.Violations()
		} else {
			outcome.Violations = []string{err.Error()}
		}
	}
	return outcome
}

// mergeProperties builds the event property mapping with fixed precedence,
// lowest to highest: lifted structural fields, parsed legacy metadata,
// provenance markers. Later sources overwrite earlier ones, so provenance
// always wins and can never be masked by metadata keys.
func mergeProperties(structural, metadata, provenance map[string]any) map[string]any {
	merged := make(map[string]any, len(structural)+len(metadata)+len(provenance))
	for _, layer := range []map[string]any{structural, metadata, provenance} {
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged
}

// parseMetadata decodes the raw metadata column. Malformed JSON or JSON that
// is not an object yields an empty contribution, never an error: metadata
// loss is per-record and recoverable, not fatal.
func parseMetadata(raw string) (map[string]any, bool) {
	if raw == "" {
		return nil, false
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, true
	}
	return parsed, false
}
