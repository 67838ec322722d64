package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

const reportPrefix = "audit-"

// kindHeading returns the markdown section heading for an audit kind
func kindHeading(kind types.AuditKind) string {
	switch kind {
	case types.AuditKindSecurity:
		return "Security Findings"
	case types.AuditKindQuality:
		return "Quality Findings"
	default:
		return string(kind)
	}
}

// RenderMarkdown renders the report in the fixed markdown layout consumed
// by the submit workflow
func RenderMarkdown(report *model.AuditReport) string {
	var b strings.Builder

	b.WriteString("# Audit Report\n\n")
	fmt.Fprintf(&b, "- Run: %s\n", report.RunID)
	fmt.Fprintf(&b, "- Root: %s\n", report.Root)
	fmt.Fprintf(&b, "- Started: %s\n", report.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n", report.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "- Files scanned: %d (%d skipped)\n", report.ScannedFiles, report.SkippedFiles)

	b.WriteString("\n## Summary\n\n")
	b.WriteString("| Severity | Count |\n")
	b.WriteString("|----------|-------|\n")
	counts := report.CountBySeverity()
	for _, sev := range types.Severities() {
		fmt.Fprintf(&b, "| %s | %d |\n", sev, counts[sev])
	}

	for _, kind := range report.Kinds {
		fmt.Fprintf(&b, "\n## %s\n\n", kindHeading(kind))

		findings := report.FindingsOfKind(kind)
		if len(findings) == 0 {
			b.WriteString("No findings.\n")
			continue
		}

		b.WriteString("| Rule | Severity | Location | Title | Detail |\n")
		b.WriteString("|------|----------|----------|-------|--------|\n")
		for _, f := range findings {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				f.Rule, f.Severity, f.Location(), tableCell(f.Title), tableCell(f.Detail))
		}
	}

	return b.String()
}

// tableCell keeps cell text from breaking the fixed column split
func tableCell(s string) string {
	s = strings.ReplaceAll(s, "|", "/")
	return strings.ReplaceAll(s, "\n", " ")
}

// reportBase returns the shared base name of one run's report files
func reportBase(report *model.AuditReport) string {
	return reportPrefix + report.StartedAt.Format("20060102-150405")
}

// WriteFiles writes the markdown and JSON reports under dir and returns
// their paths
func WriteFiles(report *model.AuditReport, dir string) (string, string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", goerr.Wrap(err, "failed to create report directory", goerr.V("dir", dir))
	}

	base := reportBase(report)
	mdPath := filepath.Join(dir, base+".md")
	jsonPath := filepath.Join(dir, base+".json")

	if err := os.WriteFile(mdPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return "", "", goerr.Wrap(err, "failed to write markdown report", goerr.V("path", mdPath))
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", "", goerr.Wrap(err, "failed to serialize report")
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return "", "", goerr.Wrap(err, "failed to write JSON report", goerr.V("path", jsonPath))
	}

	return mdPath, jsonPath, nil
}

// LoadJSON reads a JSON report written by WriteFiles
func LoadJSON(path string) (*model.AuditReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(model.ErrReportNotFound, "no such report", goerr.V("path", path))
		}
		return nil, goerr.Wrap(err, "failed to read report", goerr.V("path", path))
	}

	var report model.AuditReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, goerr.Wrap(err, "failed to parse report", goerr.V("path", path))
	}
	return &report, nil
}

// ListReportFiles returns the report artifacts under dir, newest first
func ListReportFiles(dir string) ([]*model.ReportFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to read report directory", goerr.V("dir", dir))
	}

	var files []*model.ReportFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, reportPrefix) {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		if ext != "md" && ext != "json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, &model.ReportFile{
			Name:      name,
			Path:      filepath.Join(dir, name),
			Format:    ext,
			Size:      info.Size(),
			WrittenAt: info.ModTime(),
		})
	}

	// Timestamped names sort lexically, newest last
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name > files[j].Name
	})
	return files, nil
}

// LatestReport returns the path of the newest report with the given
// format ("md" or "json")
func LatestReport(dir, format string) (string, error) {
	files, err := ListReportFiles(dir)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if f.Format == format {
			return f.Path, nil
		}
	}
	return "", goerr.Wrap(model.ErrReportNotFound, "no reports found",
		goerr.V("dir", dir),
		goerr.V("format", format))
}
