package usecase

import (
	"context"

	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
)

// AuditUseCase runs the scanners and writes report files
type AuditUseCase interface {
	Run(ctx context.Context, root string, kinds []types.AuditKind) (*AuditResult, error)
}

// IssuesUseCase manages the flat-file issue store
type IssuesUseCase interface {
	Generate(ctx context.Context, reportPath string) (*GenerateResult, error)
	List(ctx context.Context, filter IssueFilter) ([]*model.Issue, error)
	Update(ctx context.Context, id types.IssueID, status types.IssueStatus, note string) (*model.Issue, error)
	Progress(ctx context.Context) (*model.Progress, error)
}

// SubmitUseCase files parsed audit findings on GitHub
type SubmitUseCase interface {
	Bugs(ctx context.Context, reportPath string, kind types.AuditKind) (*SubmitResult, error)
	Merge(ctx context.Context, reportPath string) (*SubmitResult, error)
}

// DeployUseCase brings the stack up and down
type DeployUseCase interface {
	Deploy(ctx context.Context, names []string) error
	Down(ctx context.Context, names []string) error
}

// StatusUseCase collects stack health snapshots
type StatusUseCase interface {
	Collect(ctx context.Context, names []string) (*model.StackStatus, error)
}

// ChatUseCase sends one-shot prompts to the local LLM
type ChatUseCase interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// SmokeUseCase verifies the deployed stack end to end
type SmokeUseCase interface {
	Run(ctx context.Context) (*SmokeResult, error)
}

var (
	_ AuditUseCase  = (*Audit)(nil)
	_ IssuesUseCase = (*Issues)(nil)
	_ SubmitUseCase = (*Submit)(nil)
	_ DeployUseCase = (*Deploy)(nil)
	_ StatusUseCase = (*Status)(nil)
	_ ChatUseCase   = (*Chat)(nil)
	_ SmokeUseCase  = (*Smoke)(nil)
)
