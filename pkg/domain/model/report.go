package model

import (
	"sort"
	"time"

	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// AuditReport represents the result of one audit run
type AuditReport struct {
	RunID        types.RunID       `json:"runId" yaml:"run_id"`
	Root         string            `json:"root" yaml:"root"`
	Kinds        []types.AuditKind `json:"kinds" yaml:"kinds"`
	StartedAt    time.Time         `json:"startedAt" yaml:"started_at"`
	Duration     time.Duration     `json:"duration" yaml:"duration"`
	ScannedFiles int               `json:"scannedFiles" yaml:"scanned_files"`
	SkippedFiles int               `json:"skippedFiles" yaml:"skipped_files"`
	Findings     []*Finding        `json:"findings" yaml:"findings"`
}

// NewAuditReport creates a new audit report shell for a run
func NewAuditReport(root string, kinds []types.AuditKind) (*AuditReport, error) {
	if root == "" {
		return nil, goerr.New("report root is required")
	}
	if len(kinds) == 0 {
		return nil, goerr.New("at least one audit kind is required")
	}
	runID, err := types.NewRunID()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate run ID")
	}
	return &AuditReport{
		RunID:     runID,
		Root:      root,
		Kinds:     kinds,
		StartedAt: time.Now(),
	}, nil
}

// Sort orders findings by file, line, then rule so output is deterministic
func (r *AuditReport) Sort() {
	sort.SliceStable(r.Findings, func(i, j int) bool {
		a, b := r.Findings[i], r.Findings[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Rule < b.Rule
	})
}

// FindingsOfKind returns the findings of the given kind, in report order
func (r *AuditReport) FindingsOfKind(kind types.AuditKind) []*Finding {
	var out []*Finding
	for _, f := range r.Findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// CountBySeverity tallies findings per severity
func (r *AuditReport) CountBySeverity() map[types.Severity]int {
	counts := make(map[types.Severity]int)
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}

// CountByKind tallies findings per audit kind
func (r *AuditReport) CountByKind() map[types.AuditKind]int {
	counts := make(map[types.AuditKind]int)
	for _, f := range r.Findings {
		counts[f.Kind]++
	}
	return counts
}

// HasSeverity returns true if any finding is at least the given severity
func (r *AuditReport) HasSeverity(min types.Severity) bool {
	for _, f := range r.Findings {
		if f.Severity.AtLeast(min) {
			return true
		}
	}
	return false
}

// ReportFile describes a report artifact written to the data directory
type ReportFile struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Format    string    `json:"format"`
	Size      int64     `json:"size"`
	WrittenAt time.Time `json:"writtenAt"`
}
