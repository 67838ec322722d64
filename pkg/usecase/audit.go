package usecase

import (
	"context"
	"fmt"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/Scarmonit/aistack/pkg/service/audit"
	"github.com/Scarmonit/aistack/pkg/utils/async"
)

// Audit runs the security and quality scanners and writes report files
type Audit struct {
	reportsDir string
	notifier   interfaces.Notifier
}

// NewAudit creates an Audit use case writing reports under reportsDir
func NewAudit(reportsDir string, notifier interfaces.Notifier) *Audit {
	return &Audit{
		reportsDir: reportsDir,
		notifier:   notifier,
	}
}

// AuditResult bundles the scan outcome with the written report paths
type AuditResult struct {
	Report       *model.AuditReport
	MarkdownPath string
	JSONPath     string
}

// Run scans root with the rules for the given kinds and writes the
// markdown and JSON reports
func (u *Audit) Run(ctx context.Context, root string, kinds []types.AuditKind) (*AuditResult, error) {
	if root == "" {
		return nil, goerr.New("audit root is required")
	}
	if len(kinds) == 0 {
		kinds = []types.AuditKind{types.AuditKindSecurity, types.AuditKindQuality}
	}

	scanner := audit.NewScanner(kinds)
	report, err := scanner.Scan(ctx, root)
	if err != nil {
		return nil, goerr.Wrap(err, "audit scan failed", goerr.V("root", root))
	}

	mdPath, jsonPath, err := audit.WriteFiles(report, u.reportsDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to write audit reports")
	}

	ctxlog.From(ctx).Info("audit finished",
		"root", root,
		"scanned", report.ScannedFiles,
		"skipped", report.SkippedFiles,
		"findings", len(report.Findings),
		"markdown", mdPath,
		"json", jsonPath,
	)

	if criticals := report.CountBySeverity()[types.SeverityCritical]; criticals > 0 {
		message := fmt.Sprintf("audit of %s found %d critical issue(s) among %d findings",
			root, criticals, len(report.Findings))
		async.Dispatch(ctx, func(ctx context.Context) error {
			return u.notifier.Post(ctx, message)
		})
	}

	return &AuditResult{
		Report:       report,
		MarkdownPath: mdPath,
		JSONPath:     jsonPath,
	}, nil
}
