package interfaces

import (
	"context"

	"github.com/Scarmonit/aistack/pkg/domain/model"
)

// GitHubClient defines the interface for the GitHub REST operations used
// by the submit workflow
type GitHubClient interface {
	// CreateIssue opens a new issue and returns the created record
	CreateIssue(ctx context.Context, title, body string, labels []string) (*model.RemoteIssue, error)

	// ListOpenIssues returns the open issues of the configured repository
	ListOpenIssues(ctx context.Context) ([]*model.RemoteIssue, error)

	// CreatePullRequest opens a draft pull request from head into base
	CreatePullRequest(ctx context.Context, title, body, head, base string) (*model.RemotePullRequest, error)

	// AddLabels attaches labels to an existing issue or pull request
	AddLabels(ctx context.Context, number int, labels []string) error

	// BranchExists reports whether the named branch exists on the remote
	BranchExists(ctx context.Context, branch string) (bool, error)

	// DefaultBranch returns the repository's default branch name
	DefaultBranch(ctx context.Context) (string, error)
}
