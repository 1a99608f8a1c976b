package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/groblegark/eventlift/internal/migrate"
	"github.com/groblegark/eventlift/internal/model"
	"github.com/groblegark/eventlift/internal/ui"
	"github.com/groblegark/eventlift/internal/validate"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printReport(r *migrate.Report) {
	if jsonOutput {
		printJSON(r)
		return
	}

	label := "Migration"
	if r.DryRun {
		label = "Dry run"
	}
	if r.Success {
		fmt.Println(ui.RenderOK(label + " succeeded"))
	} else {
		fmt.Println(ui.RenderError(label + " failed in phase: " + r.Phase))
	}
	fmt.Printf("  Run ID:    %s\n", r.RunID)
	fmt.Printf("  Elapsed:   %s\n", r.Elapsed().Round(time.Millisecond))
	fmt.Printf("  Batches:   %d\n", r.Batches)
	fmt.Printf("  Converted: %d\n", r.Summary.Converted)
	if !r.DryRun {
		fmt.Printf("  Inserted:  %d\n", r.Summary.Inserted)
	}
	fmt.Printf("  Excluded:  %d\n", r.Summary.Excluded)
	if r.Summary.MalformedMetadata > 0 {
		fmt.Printf("  Malformed metadata: %d\n", r.Summary.MalformedMetadata)
	}
	for _, msg := range r.RecordErrors {
		fmt.Println("  " + ui.RenderWarn(msg))
	}

	if r.DryRun {
		if r.EstimatedTargetBytes > 0 {
			fmt.Printf("  Estimated target size: %d bytes\n", r.EstimatedTargetBytes)
		}
		for i, s := range r.Samples {
			rendered, err := s.Render()
			if err != nil {
				continue
			}
			fmt.Printf("\nSample %d:\n%s", i+1, rendered)
		}
	}
	if r.Integrity != nil {
		printIntegrity(r.Integrity)
	}
}

func printReadiness(r *validate.ReadinessReport) {
	if jsonOutput {
		printJSON(r)
		return
	}
	for _, c := range r.Checks {
		if c.Passed {
			fmt.Println("  " + ui.RenderOK("ok  ") + c.Name)
		} else {
			fmt.Println("  " + ui.RenderError("fail") + " " + c.Name + ": " + c.Detail)
		}
	}
	for _, w := range r.Warnings {
		fmt.Println("  " + ui.RenderWarn("warn "+w))
	}
	for _, rec := range r.Recommendations {
		fmt.Println("  " + ui.RenderMuted("note "+rec))
	}
	if r.RequiredBytes > 0 {
		fmt.Printf("  Disk: %d bytes required, %d available\n", r.RequiredBytes, r.AvailableBytes)
	}
}

func printIntegrity(r *validate.IntegrityReport) {
	fmt.Println("Integrity:")
	fmt.Printf("  Accuracy:     %.3f\n", r.AccuracyScore)
	fmt.Printf("  Preservation: %.3f\n", r.PreservationScore)
	fmt.Printf("  Performance:  %.3f\n", r.PerformanceScore)
	fmt.Printf("  Composite:    %.3f\n", r.CompositeScore)
	for _, e := range r.Errors {
		fmt.Println("  " + ui.RenderError(e))
	}
	for _, w := range r.Warnings {
		fmt.Println("  " + ui.RenderWarn(w))
	}
}

func printCheckpointInfo(info *model.CheckpointInfo) {
	if jsonOutput {
		printJSON(info)
		return
	}
	if !info.Exists {
		fmt.Println("No checkpoint")
		return
	}
	fmt.Printf("Checkpoint: %s\n", info.Path)
	fmt.Printf("  Created: %s\n", info.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Size:    %d bytes\n", info.SizeBytes)
}
