package audit

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

var (
	reLocation  = regexp.MustCompile(`^(.+):(\d+)$`)
	reDividerRx = regexp.MustCompile(`^[\s|:-]+$`)
)

// ParseMarkdown extracts bug reports from a markdown audit report written
// by RenderMarkdown. The findings tables are parsed by fixed column split:
// Rule, Severity, Location, Title, Detail.
func ParseMarkdown(r io.Reader) ([]*model.BugReport, error) {
	var reports []*model.BugReport
	var kind types.AuditKind

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "## ") {
			switch strings.TrimPrefix(line, "## ") {
			case kindHeading(types.AuditKindSecurity):
				kind = types.AuditKindSecurity
			case kindHeading(types.AuditKindQuality):
				kind = types.AuditKindQuality
			default:
				kind = ""
			}
			continue
		}

		if kind == "" || !strings.HasPrefix(line, "|") {
			continue
		}
		if reDividerRx.MatchString(line) {
			continue
		}

		cells := splitRow(line)
		if len(cells) != 5 {
			return nil, goerr.New("malformed findings table row",
				goerr.V("line", lineNo),
				goerr.V("columns", len(cells)))
		}
		if cells[0] == "Rule" {
			continue
		}

		report, err := rowToBugReport(kind, cells)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid findings table row", goerr.V("line", lineNo))
		}
		reports = append(reports, report)
	}
	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read markdown report")
	}

	return reports, nil
}

// splitRow splits one pipe-delimited table row into trimmed cells
func splitRow(line string) []string {
	parts := strings.Split(line, "|")
	// leading and trailing pipes produce empty first and last parts
	if len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
		parts = parts[1:]
	}
	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

// rowToBugReport converts table cells into a validated bug report
func rowToBugReport(kind types.AuditKind, cells []string) (*model.BugReport, error) {
	rule, sevText, location, title, detail := cells[0], cells[1], cells[2], cells[3], cells[4]

	severity, err := types.ParseSeverity(sevText)
	if err != nil {
		return nil, err
	}

	m := reLocation.FindStringSubmatch(location)
	if m == nil {
		return nil, goerr.New("location cell is not file:line", goerr.V("location", location))
	}
	lineNum, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, goerr.Wrap(err, "invalid line number", goerr.V("location", location))
	}

	report := &model.BugReport{
		Kind:     kind,
		Severity: severity,
		File:     m[1],
		Line:     lineNum,
		Title:    title,
		Body:     bugBody(rule, severity, location, detail),
	}
	if err := report.Validate(); err != nil {
		return nil, err
	}
	return report, nil
}

// bugBody renders the GitHub issue body for one finding
func bugBody(rule string, severity types.Severity, location, detail string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Rule:** %s\n", rule)
	fmt.Fprintf(&b, "**Severity:** %s\n", severity)
	fmt.Fprintf(&b, "**Location:** `%s`\n\n", location)
	fmt.Fprintf(&b, "%s\n\n", detail)
	b.WriteString("_Filed by aistack audit automation._\n")
	return b.String()
}

// ParseMarkdownFile reads and parses a markdown report from disk
func ParseMarkdownFile(path string) ([]*model.BugReport, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(model.ErrReportNotFound, "no such report", goerr.V("path", path))
		}
		return nil, goerr.Wrap(err, "failed to open report", goerr.V("path", path))
	}
	defer f.Close()

	reports, err := ParseMarkdown(f)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse report", goerr.V("path", path))
	}
	return reports, nil
}

var reBranchSlug = regexp.MustCompile(`[^a-z0-9]+`)

// branchSlug converts a file path into a branch-safe slug
func branchSlug(file string) string {
	slug := reBranchSlug.ReplaceAllString(strings.ToLower(file), "-")
	return strings.Trim(slug, "-")
}

// GroupMergeRequests groups bug reports by file into merge request
// records targeting the given base branch
func GroupMergeRequests(reports []*model.BugReport, base string) []*model.MergeRequest {
	byFile := make(map[string][]*model.BugReport)
	for _, r := range reports {
		byFile[r.File] = append(byFile[r.File], r)
	}

	files := make([]string, 0, len(byFile))
	for file := range byFile {
		files = append(files, file)
	}
	sort.Strings(files)

	var requests []*model.MergeRequest
	for _, file := range files {
		group := byFile[file]

		maxSev := types.SeverityInfo
		var b strings.Builder
		b.WriteString("This change addresses the following audit findings:\n\n")
		for _, r := range group {
			fmt.Fprintf(&b, "- [%s] %s (`%s:%d`)\n", r.Severity, r.Title, r.File, r.Line)
			if r.Severity.AtLeast(maxSev) {
				maxSev = r.Severity
			}
		}
		b.WriteString("\n_Filed by aistack audit automation._\n")

		noun := "findings"
		if len(group) == 1 {
			noun = "finding"
		}

		requests = append(requests, &model.MergeRequest{
			File:    file,
			Branch:  "fix/" + branchSlug(file),
			Base:    base,
			Title:   fmt.Sprintf("Fix %d audit %s in %s", len(group), noun, file),
			Body:    b.String(),
			Labels:  []string{"automated-audit", string(maxSev)},
			Reports: group,
		})
	}
	return requests
}
