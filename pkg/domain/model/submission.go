package model

import (
	"fmt"

	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// BugReport is a transient record parsed from a markdown audit report,
// ready to be filed as a GitHub issue
type BugReport struct {
	Kind     types.AuditKind
	Severity types.Severity
	File     string
	Line     int
	Title    string
	Body     string
}

// Validate checks the report has the fields required before posting
func (b *BugReport) Validate() error {
	if b.Title == "" {
		return goerr.New("bug report title is required")
	}
	if b.Body == "" {
		return goerr.New("bug report body is required")
	}
	if !b.Severity.IsValid() {
		return goerr.New("invalid severity", goerr.V("severity", b.Severity))
	}
	return nil
}

// IssueTitle returns the GitHub issue title for the bug report
func (b *BugReport) IssueTitle() string {
	if b.File != "" && b.Line > 0 {
		return fmt.Sprintf("[%s] %s (%s:%d)", b.Severity, b.Title, b.File, b.Line)
	}
	return fmt.Sprintf("[%s] %s", b.Severity, b.Title)
}

// Labels returns the GitHub labels for the bug report
func (b *BugReport) Labels() []string {
	labels := []string{"automated-audit", string(b.Severity)}
	if b.Kind.IsValid() {
		labels = append(labels, string(b.Kind))
	}
	return labels
}

// MergeRequest is a transient record describing a fix branch to be
// proposed, grouped from bug reports that share a file
type MergeRequest struct {
	File    string
	Branch  string
	Base    string
	Title   string
	Body    string
	Labels  []string
	Reports []*BugReport
}

// Validate checks the merge request has the fields required before posting
func (m *MergeRequest) Validate() error {
	if m.Title == "" {
		return goerr.New("merge request title is required")
	}
	if m.Body == "" {
		return goerr.New("merge request body is required")
	}
	if m.Branch == "" {
		return goerr.New("merge request branch is required")
	}
	if m.Base == "" {
		return goerr.New("merge request base branch is required")
	}
	return nil
}

// FallbackIssueTitle returns the issue title used when the fix branch
// does not exist and the request is filed as an issue instead
func (m *MergeRequest) FallbackIssueTitle() string {
	return fmt.Sprintf("[merge] %s", m.Title)
}
