package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// Memory implements Repository interface with in-memory storage
type Memory struct {
	mu           sync.RWMutex
	issues       map[types.IssueID]*model.Issue
	fingerprints map[types.Fingerprint]types.IssueID
	issueCounter types.IssueID
}

// NewMemory creates a new memory repository
func NewMemory() *Memory {
	return &Memory{
		issues:       make(map[types.IssueID]*model.Issue),
		fingerprints: make(map[types.Fingerprint]types.IssueID),
	}
}

// copyIssue clones an issue including its history slice so callers cannot
// modify stored state
func copyIssue(issue *model.Issue) *model.Issue {
	issueCopy := *issue
	issueCopy.History = make([]model.StatusEntry, len(issue.History))
	copy(issueCopy.History, issue.History)
	return &issueCopy
}

// PutIssue saves an issue to memory
func (m *Memory) PutIssue(ctx context.Context, issue *model.Issue) error {
	if issue == nil {
		return goerr.New("issue is nil")
	}
	if err := issue.Validate(); err != nil {
		return goerr.Wrap(err, "invalid issue")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.issues[issue.ID] = copyIssue(issue)
	m.fingerprints[issue.Fingerprint] = issue.ID
	if issue.ID > m.issueCounter {
		m.issueCounter = issue.ID
	}
	return nil
}

// GetIssue retrieves an issue by ID
func (m *Memory) GetIssue(ctx context.Context, id types.IssueID) (*model.Issue, error) {
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid issue ID")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	issue, exists := m.issues[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrIssueNotFound, "failed to get issue", goerr.V("id", id))
	}

	return copyIssue(issue), nil
}

// GetIssueByFingerprint retrieves an issue by its finding fingerprint
func (m *Memory) GetIssueByFingerprint(ctx context.Context, fp types.Fingerprint) (*model.Issue, error) {
	if err := fp.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid fingerprint")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.fingerprints[fp]
	if !exists {
		return nil, goerr.Wrap(model.ErrIssueNotFound, "failed to get issue by fingerprint",
			goerr.V("fingerprint", fp))
	}

	issue, exists := m.issues[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrIssueNotFound, "fingerprint index is stale",
			goerr.V("fingerprint", fp), goerr.V("id", id))
	}

	return copyIssue(issue), nil
}

// ListIssues retrieves all issues sorted by ID
func (m *Memory) ListIssues(ctx context.Context) ([]*model.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	issues := make([]*model.Issue, 0, len(m.issues))
	for _, issue := range m.issues {
		issues = append(issues, copyIssue(issue))
	}

	sort.Slice(issues, func(i, j int) bool {
		return issues[i].ID < issues[j].ID
	})

	return issues, nil
}

// NextIssueID returns the next sequential issue number
func (m *Memory) NextIssueID(ctx context.Context) (types.IssueID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.issueCounter++
	return m.issueCounter, nil
}

// Close does nothing for memory repository
func (m *Memory) Close() error {
	return nil
}

// counter returns the current issue counter value
func (m *Memory) counter() types.IssueID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.issueCounter
}

// setCounter raises the issue counter to at least n
func (m *Memory) setCounter(n types.IssueID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > m.issueCounter {
		m.issueCounter = n
	}
}

// Clear clears all data (useful for testing)
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues = make(map[types.IssueID]*model.Issue)
	m.fingerprints = make(map[types.Fingerprint]types.IssueID)
	m.issueCounter = 0
}

var _ interfaces.Repository = (*Memory)(nil) // Compile-time interface check
