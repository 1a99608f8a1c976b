// Package validate implements the pre-run readiness checks and the post-run
// integrity scoring for a migration.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/groblegark/eventlift/internal/checkpoint"
	"github.com/groblegark/eventlift/internal/extract"
)

// stalenessThreshold triggers a recommendation when the newest source record
// is older than this.
const stalenessThreshold = 30 * 24 * time.Hour

// ReadinessCheck is one itemized pre-migration check result.
type ReadinessCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// ReadinessReport is the outcome of the pre-migration validation.
type ReadinessReport struct {
	Checks          []ReadinessCheck `json:"checks"`
	Errors          []string         `json:"errors"`
	Warnings        []string         `json:"warnings"`
	Recommendations []string         `json:"recommendations"`
	RequiredBytes   int64            `json:"required_bytes"`
	AvailableBytes  int64            `json:"available_bytes"`
}

// Valid reports whether the migration may proceed.
func (r *ReadinessReport) Valid() bool {
	return len(r.Errors) == 0
}

func (r *ReadinessReport) check(name string, passed bool, detail string) {
	r.Checks = append(r.Checks, ReadinessCheck{Name: name, Passed: passed, Detail: detail})
	if !passed {
		r.Errors = append(r.Errors, name+": "+detail)
	}
}

// PreChecker runs the readiness checks for one configured run.
type PreChecker struct {
	SourcePath    string
	TargetPath    string
	CheckpointDir string
	Logger        *slog.Logger

	// DiskFree reports the free bytes on the filesystem holding path.
	// Overridable so tests can simulate full disks.
	DiskFree func(path string) (int64, error)

	// Now is the clock used for the staleness check.
	Now func() time.Time
}

// NewPreChecker builds a PreChecker with the real clock and statfs probe.
func NewPreChecker(sourcePath, targetPath, checkpointDir string, logger *slog.Logger) *PreChecker {
	return &PreChecker{
		SourcePath:    sourcePath,
		TargetPath:    targetPath,
		CheckpointDir: checkpointDir,
		Logger:        logger,
		DiskFree:      diskFree,
		Now:           time.Now,
	}
}

// Run executes every readiness check and returns the itemized report.
// Individual check failures land in the report; only environmental problems
// (e.g. a probe that cannot run at all) return an error.
func (p *PreChecker) Run(ctx context.Context) (*ReadinessReport, error) {
	report := &ReadinessReport{}

	ext, err := extract.Open(p.SourcePath)
	if err != nil {
		report.check("source readable", false, err.Error())
		return report, nil
	}
	defer ext.Close()
	report.check("source readable", true, "")

	p.checkSourceSchema(ctx, ext, report)
	p.checkDiskSpace(report)
	p.checkTargetWritable(report)
	p.checkCheckpointProbe(ctx, report)
	p.checkStaleness(ctx, ext, report)

	p.Logger.Info("pre-migration validation finished",
		"valid", report.Valid(),
		"errors", len(report.Errors),
		"warnings", len(report.Warnings))
	return report, nil
}

func (p *PreChecker) checkSourceSchema(ctx context.Context, ext *extract.Extractor, report *ReadinessReport) {
	result, err := ext.Validate(ctx)
	if err != nil {
		report.check("source schema", false, err.Error())
		return
	}
	if !result.Valid() {
		for _, e := range result.Errors {
			report.check("source schema", false, e)
		}
	} else {
		report.check("source schema", true, "")
	}
	report.Warnings = append(report.Warnings, result.Warnings...)
}

// checkDiskSpace estimates the headroom a run needs: the target is budgeted
// at 1.5x the source (events carry the merged property payload), plus one
// checkpoint copy of the source, plus a 20% margin over the whole estimate.
func (p *PreChecker) checkDiskSpace(report *ReadinessReport) {
	info, err := os.Stat(p.SourcePath)
	if err != nil {
		report.check("disk space", false, fmt.Sprintf("stat source: %v", err))
		return
	}
	sourceSize := info.Size()
	required := (sourceSize + sourceSize*3/2 + sourceSize) * 120 / 100
	report.RequiredBytes = required

	available, err := p.DiskFree(filepath.Dir(p.TargetPath))
	if err != nil {
		report.check("disk space", false, fmt.Sprintf("probe free space: %v", err))
		return
	}
	report.AvailableBytes = available

	if available < required {
		report.check("disk space", false,
			fmt.Sprintf("insufficient disk space: need %d bytes, %d available", required, available))
		return
	}
	report.check("disk space", true, "")

	if available < required*2 {
		report.Recommendations = append(report.Recommendations,
			"free space is below twice the migration estimate; consider clearing room before a full run")
	}
}

func (p *PreChecker) checkTargetWritable(report *ReadinessReport) {
	dir := filepath.Dir(p.TargetPath)
	probe, err := os.CreateTemp(dir, ".eventlift-probe-*")
	if err != nil {
		report.check("target writable", false, err.Error())
		return
	}
	probe.Close()
	os.Remove(probe.Name())
	report.check("target writable", true, "")
}

// checkCheckpointProbe performs a live checkpoint creation in a scratch
// directory and validates the copy, proving a real checkpoint will succeed.
func (p *PreChecker) checkCheckpointProbe(ctx context.Context, report *ReadinessReport) {
	probeDir, err := os.MkdirTemp(p.dirForProbe(), ".eventlift-ckpt-probe-*")
	if err != nil {
		report.check("checkpoint probe", false, err.Error())
		return
	}
	defer os.RemoveAll(probeDir)

	mgr := checkpoint.NewManager(p.SourcePath, probeDir, p.Logger)
	if _, err := mgr.Create(ctx, ""); err != nil {
		report.check("checkpoint probe", false, err.Error())
		return
	}
	result, err := mgr.Validate(ctx)
	if err != nil {
		report.check("checkpoint probe", false, err.Error())
		return
	}
	if !result.Valid() {
		report.check("checkpoint probe", false, fmt.Sprintf("%v", result.Errors))
		return
	}
	report.check("checkpoint probe", true, "")
}

func (p *PreChecker) dirForProbe() string {
	if err := os.MkdirAll(p.CheckpointDir, 0o755); err == nil {
		return p.CheckpointDir
	}
	return os.TempDir()
}

func (p *PreChecker) checkStaleness(ctx context.Context, ext *extract.Extractor, report *ReadinessReport) {
	stats, err := ext.Stats(ctx)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("staleness check skipped: %v", err))
		return
	}
	if stats.TotalRecords == 0 {
		report.Warnings = append(report.Warnings, "source store is empty")
		return
	}
	newest := time.UnixMilli(stats.LatestTimestamp)
	if age := p.Now().Sub(newest); age > stalenessThreshold {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("newest source record is %d days old; confirm this store is still the live one", int(age.Hours()/24)))
	}
}

// diskFree returns the free bytes available to unprivileged writers on the
// filesystem holding path.
func diskFree(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
