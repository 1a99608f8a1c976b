package convert

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/groblegark/eventlift/internal/model"
)

// Preview shows what a single record would become without running a
// migration. Nothing is written anywhere.
type Preview struct {
	Original          *model.LegacyRecord   `json:"original"`
	Converted         *model.CanonicalEvent `json:"converted"`
	Violations        []string              `json:"violations,omitempty"`
	MetadataMalformed bool                  `json:"metadata_malformed"`
}

// PreviewRecord converts one record for inspection.
func PreviewRecord(rec *model.LegacyRecord, now time.Time) *Preview {
	outcome := Convert(rec, now)
	return &Preview{
		Original:          rec,
		Converted:         outcome.Event,
		Violations:        outcome.Violations,
		MetadataMalformed: outcome.MetadataMalformed,
	}
}

// Render returns a two-section text rendering of the preview for CLI output.
func (p *Preview) Render() (string, error) {
	original, err := json.MarshalIndent(p.Original, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render original: %w", err)
	}
	converted, err := json.MarshalIndent(p.Converted, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render converted: %w", err)
	}
	out := "original:\n" + string(original) + "\n\nconverted:\n" + string(converted) + "\n"
	if len(p.Violations) > 0 {
		out += "\nviolations:\n"
		for _, v := range p.Violations {
			out += "  - " + v + "\n"
		}
	}
	return out, nil
}
