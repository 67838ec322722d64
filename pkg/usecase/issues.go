package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/Scarmonit/aistack/pkg/service/audit"
)

// Issues manages the flat-file issue store
type Issues struct {
	repo       interfaces.Repository
	reportsDir string
}

// NewIssues creates an Issues use case backed by the given repository
func NewIssues(repo interfaces.Repository, reportsDir string) *Issues {
	return &Issues{
		repo:       repo,
		reportsDir: reportsDir,
	}
}

// GenerateResult reports what a sync from an audit report did
type GenerateResult struct {
	Report  string
	Created int
	Skipped int
}

// Generate seeds the issue store from a JSON audit report. Findings whose
// fingerprint is already tracked are skipped, so re-running is idempotent.
// An empty reportPath picks the most recent JSON report.
func (u *Issues) Generate(ctx context.Context, reportPath string) (*GenerateResult, error) {
	logger := ctxlog.From(ctx)

	if reportPath == "" {
		latest, err := audit.LatestReport(u.reportsDir, "json")
		if err != nil {
			return nil, goerr.Wrap(err, "no audit report to generate issues from")
		}
		reportPath = latest
	}

	report, err := audit.LoadJSON(reportPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load audit report", goerr.V("path", reportPath))
	}

	result := &GenerateResult{Report: reportPath}
	for _, finding := range report.Findings {
		existing, err := u.repo.GetIssueByFingerprint(ctx, finding.Fingerprint)
		if err != nil && !errors.Is(err, model.ErrIssueNotFound) {
			return nil, goerr.Wrap(err, "failed to look up fingerprint",
				goerr.V("fingerprint", finding.Fingerprint))
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		id, err := u.repo.NextIssueID(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to allocate issue ID")
		}
		issue, err := model.NewIssue(id, finding)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to build issue from finding",
				goerr.V("rule", finding.Rule), goerr.V("file", finding.File))
		}
		if err := u.repo.PutIssue(ctx, issue); err != nil {
			return nil, goerr.Wrap(err, "failed to store issue", goerr.V("issueID", id))
		}
		result.Created++
	}

	logger.Info("generated issues from audit report",
		"report", reportPath, "created", result.Created, "skipped", result.Skipped)
	return result, nil
}

// IssueFilter narrows List output. Zero values match everything.
type IssueFilter struct {
	Status   types.IssueStatus
	Severity types.Severity
	Kind     types.AuditKind
}

func (f IssueFilter) matches(issue *model.Issue) bool {
	if f.Status != "" && issue.Status != f.Status {
		return false
	}
	if f.Severity != "" && issue.Severity != f.Severity {
		return false
	}
	if f.Kind != "" && issue.Kind != f.Kind {
		return false
	}
	return true
}

// List returns the stored issues matching the filter, in ID order
func (u *Issues) List(ctx context.Context, filter IssueFilter) ([]*model.Issue, error) {
	issues, err := u.repo.ListIssues(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list issues")
	}

	out := make([]*model.Issue, 0, len(issues))
	for _, issue := range issues {
		if filter.matches(issue) {
			out = append(out, issue)
		}
	}
	return out, nil
}

// Update applies a status transition to one issue and records it in the
// issue's history
func (u *Issues) Update(ctx context.Context, id types.IssueID, status types.IssueStatus, note string) (*model.Issue, error) {
	issue, err := u.repo.GetIssue(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load issue", goerr.V("issueID", id))
	}

	if err := issue.UpdateStatus(status, note); err != nil {
		return nil, err
	}
	if err := u.repo.PutIssue(ctx, issue); err != nil {
		return nil, goerr.Wrap(err, "failed to store issue", goerr.V("issueID", id))
	}

	ctxlog.From(ctx).Info("updated issue",
		"issueID", id, "status", status, "note", note)
	return issue, nil
}

// Progress tallies the issue store for the progress report
func (u *Issues) Progress(ctx context.Context) (*model.Progress, error) {
	issues, err := u.repo.ListIssues(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list issues")
	}
	return model.NewProgress(issues), nil
}

// RenderProgressMarkdown renders the progress report shown by
// `issues report`
func RenderProgressMarkdown(p *model.Progress) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Issue Progress Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", p.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- Total issues: %d\n", p.Total)
	fmt.Fprintf(&b, "- Closed: %d (%.0f%%)\n", p.Closed(), p.Completion()*100)
	fmt.Fprintf(&b, "- Open: %d\n\n", p.Total-p.Closed())

	b.WriteString("## Open by severity\n\n")
	for _, severity := range types.Severities() {
		if n := p.OpenBySeverity[severity]; n > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", severity, n)
		}
	}
	b.WriteString("\n## By status\n\n")
	for _, status := range []types.IssueStatus{
		types.IssueStatusOpen,
		types.IssueStatusInProgress,
		types.IssueStatusFixed,
		types.IssueStatusIgnored,
	} {
		fmt.Fprintf(&b, "- %s: %d\n", status, p.ByStatus[status])
	}

	if len(p.RecentlyClosed) > 0 {
		b.WriteString("\n## Recently closed\n\n")
		for _, issue := range p.RecentlyClosed {
			fmt.Fprintf(&b, "- #%d %s (%s, %s)\n",
				issue.ID.Int(), issue.Title, issue.Severity, issue.Status)
		}
	}

	return b.String()
}
