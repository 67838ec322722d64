package interfaces

import (
	"context"

	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
)

// Repository defines the interface for issue persistence
type Repository interface {
	// Issue operations
	PutIssue(ctx context.Context, issue *model.Issue) error
	GetIssue(ctx context.Context, id types.IssueID) (*model.Issue, error)
	GetIssueByFingerprint(ctx context.Context, fp types.Fingerprint) (*model.Issue, error)
	ListIssues(ctx context.Context) ([]*model.Issue, error)

	// NextIssueID returns the next sequential issue number
	NextIssueID(ctx context.Context) (types.IssueID, error)

	// Close flushes and closes the repository
	Close() error
}
