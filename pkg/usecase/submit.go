package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/Scarmonit/aistack/pkg/service/audit"
	"github.com/Scarmonit/aistack/pkg/utils/async"
)

// SubmitConfig holds configuration for the Submit use case
type SubmitConfig struct {
	dryRun bool
	limit  int
	base   string
	out    io.Writer
}

// SubmitOption is a functional option for configuring Submit
type SubmitOption func(*SubmitConfig)

// WithDryRun prints payloads instead of posting them
func WithDryRun(dryRun bool) SubmitOption {
	return func(c *SubmitConfig) {
		c.dryRun = dryRun
	}
}

// WithLimit caps the number of records submitted in one run
func WithLimit(limit int) SubmitOption {
	return func(c *SubmitConfig) {
		c.limit = limit
	}
}

// WithBaseBranch overrides the base branch for merge requests. The
// repository default branch is used when unset.
func WithBaseBranch(base string) SubmitOption {
	return func(c *SubmitConfig) {
		c.base = base
	}
}

// WithOutput redirects dry-run payload output
func WithOutput(w io.Writer) SubmitOption {
	return func(c *SubmitConfig) {
		c.out = w
	}
}

// Submit files audit report findings as GitHub issues and merge requests
type Submit struct {
	github   interfaces.GitHubClient
	notifier interfaces.Notifier
	config   *SubmitConfig
}

// NewSubmit creates a Submit use case
func NewSubmit(github interfaces.GitHubClient, notifier interfaces.Notifier, opts ...SubmitOption) *Submit {
	config := &SubmitConfig{out: os.Stdout}
	for _, opt := range opts {
		opt(config)
	}
	return &Submit{
		github:   github,
		notifier: notifier,
		config:   config,
	}
}

// SubmitResult counts the outcome of one submit run
type SubmitResult struct {
	Filed   int
	Skipped int
	Failed  int
	DryRun  bool
}

func (r *SubmitResult) String() string {
	return fmt.Sprintf("filed %d, skipped %d, failed %d", r.Filed, r.Skipped, r.Failed)
}

// openIssueTitles returns the titles of open issues for duplicate
// suppression. A lookup failure downgrades to no suppression.
func (u *Submit) openIssueTitles(ctx context.Context) map[string]bool {
	issues, err := u.github.ListOpenIssues(ctx)
	if err != nil {
		ctxlog.From(ctx).Warn("could not list open issues, duplicate suppression disabled",
			"error", err)
		return nil
	}

	titles := make(map[string]bool, len(issues))
	for _, issue := range issues {
		titles[issue.Title] = true
	}
	return titles
}

// Bugs files one GitHub issue per parsed bug report. Records that fail to
// post are logged and skipped; the run errors only when the report cannot
// be parsed or every attempted record fails.
func (u *Submit) Bugs(ctx context.Context, reportPath string, kind types.AuditKind) (*SubmitResult, error) {
	logger := ctxlog.From(ctx)

	reports, err := audit.ParseMarkdownFile(reportPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse audit report", goerr.V("path", reportPath))
	}

	if kind != "" {
		filtered := reports[:0]
		for _, report := range reports {
			if report.Kind == kind {
				filtered = append(filtered, report)
			}
		}
		reports = filtered
	}
	if u.config.limit > 0 && len(reports) > u.config.limit {
		logger.Info("limiting submission", "total", len(reports), "limit", u.config.limit)
		reports = reports[:u.config.limit]
	}

	result := &SubmitResult{DryRun: u.config.dryRun}
	if len(reports) == 0 {
		logger.Info("no bug reports to submit", "report", reportPath)
		return result, nil
	}

	var existing map[string]bool
	if !u.config.dryRun {
		existing = u.openIssueTitles(ctx)
	}

	var lastErr error
	for _, report := range reports {
		title := report.IssueTitle()
		if existing[title] {
			logger.Debug("skipping duplicate issue", "title", title)
			result.Skipped++
			continue
		}

		if u.config.dryRun {
			u.printPayload("issue", title, report.Labels(), report.Body)
			result.Filed++
			continue
		}

		issue, err := u.github.CreateIssue(ctx, title, report.Body, report.Labels())
		if err != nil {
			logger.Error("failed to file issue", "title", title, "error", err)
			result.Failed++
			lastErr = err
			continue
		}
		logger.Info("filed issue", "number", issue.Number, "url", issue.HTMLURL)
		result.Filed++
	}

	if result.Failed > 0 && result.Filed == 0 {
		return result, goerr.Wrap(lastErr, "every bug report failed to submit",
			goerr.V("failed", result.Failed))
	}

	u.notify(ctx, fmt.Sprintf("submit bugs: %s", result))
	return result, nil
}

// Merge groups parsed bug reports into per-file merge requests and files
// each as a draft pull request, or as an issue when the fix branch does
// not exist on the remote.
func (u *Submit) Merge(ctx context.Context, reportPath string) (*SubmitResult, error) {
	logger := ctxlog.From(ctx)

	reports, err := audit.ParseMarkdownFile(reportPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse audit report", goerr.V("path", reportPath))
	}

	base := u.config.base
	if base == "" && !u.config.dryRun {
		base, err = u.github.DefaultBranch(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to resolve base branch")
		}
	}
	if base == "" {
		base = "main"
	}

	requests := audit.GroupMergeRequests(reports, base)
	result := &SubmitResult{DryRun: u.config.dryRun}
	if u.config.limit > 0 && len(requests) > u.config.limit {
		requests = requests[:u.config.limit]
	}
	if len(requests) == 0 {
		logger.Info("no merge requests to submit", "report", reportPath)
		return result, nil
	}

	var existing map[string]bool
	if !u.config.dryRun {
		existing = u.openIssueTitles(ctx)
	}

	var lastErr error
	for _, request := range requests {
		if existing[request.Title] || existing[request.FallbackIssueTitle()] {
			logger.Debug("skipping duplicate merge request", "title", request.Title)
			result.Skipped++
			continue
		}

		if u.config.dryRun {
			u.printPayload("merge request", request.Title, request.Labels,
				fmt.Sprintf("branch: %s -> %s\n\n%s", request.Branch, request.Base, request.Body))
			result.Filed++
			continue
		}

		if err := u.submitMergeRequest(ctx, request); err != nil {
			logger.Error("failed to file merge request",
				"title", request.Title, "branch", request.Branch, "error", err)
			result.Failed++
			lastErr = err
			continue
		}
		result.Filed++
	}

	if result.Failed > 0 && result.Filed == 0 {
		return result, goerr.Wrap(lastErr, "every merge request failed to submit",
			goerr.V("failed", result.Failed))
	}

	u.notify(ctx, fmt.Sprintf("submit merge: %s", result))
	return result, nil
}

func (u *Submit) submitMergeRequest(ctx context.Context, request *model.MergeRequest) error {
	logger := ctxlog.From(ctx)

	exists, err := u.github.BranchExists(ctx, request.Branch)
	if err != nil {
		return goerr.Wrap(err, "failed to check fix branch", goerr.V("branch", request.Branch))
	}

	if !exists {
		issue, err := u.github.CreateIssue(ctx, request.FallbackIssueTitle(), request.Body, request.Labels)
		if err != nil {
			return err
		}
		logger.Info("fix branch missing, filed merge request as issue",
			"branch", request.Branch, "number", issue.Number, "url", issue.HTMLURL)
		return nil
	}

	pr, err := u.github.CreatePullRequest(ctx, request.Title, request.Body, request.Branch, request.Base)
	if err != nil {
		return err
	}
	if err := u.github.AddLabels(ctx, pr.Number, request.Labels); err != nil {
		logger.Warn("failed to label pull request", "number", pr.Number, "error", err)
	}
	logger.Info("filed draft pull request", "number", pr.Number, "url", pr.HTMLURL)
	return nil
}

func (u *Submit) printPayload(kind, title string, labels []string, body string) {
	fmt.Fprintf(u.config.out, "--- dry run: %s ---\n", kind)
	fmt.Fprintf(u.config.out, "title: %s\n", title)
	fmt.Fprintf(u.config.out, "labels: %s\n", strings.Join(labels, ", "))
	fmt.Fprintf(u.config.out, "%s\n\n", body)
}

func (u *Submit) notify(ctx context.Context, message string) {
	if u.config.dryRun {
		return
	}
	async.Dispatch(ctx, func(ctx context.Context) error {
		return u.notifier.Post(ctx, message)
	})
}
