package model

import (
	"time"

	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// Issue represents a tracked finding in the flat-file issue store
type Issue struct {
	ID          types.IssueID     `json:"id" yaml:"id"`
	Fingerprint types.Fingerprint `json:"fingerprint" yaml:"fingerprint"`
	Kind        types.AuditKind   `json:"kind" yaml:"kind"`
	Category    types.RuleID      `json:"category" yaml:"category"`
	Severity    types.Severity    `json:"severity" yaml:"severity"`
	File        string            `json:"file" yaml:"file"`
	Line        int               `json:"line" yaml:"line"`
	Title       string            `json:"title" yaml:"title"`
	Detail      string            `json:"detail" yaml:"detail"`
	Status      types.IssueStatus `json:"status" yaml:"status"`
	CreatedAt   time.Time         `json:"createdAt" yaml:"created_at"`
	UpdatedAt   time.Time         `json:"updatedAt" yaml:"updated_at"`
	History     []StatusEntry     `json:"history" yaml:"history"`
}

// NewIssue creates an open issue from an audit finding
func NewIssue(id types.IssueID, finding *Finding) (*Issue, error) {
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid issue ID")
	}
	if finding == nil {
		return nil, goerr.New("finding is required")
	}
	if err := finding.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid finding")
	}

	now := time.Now()
	return &Issue{
		ID:          id,
		Fingerprint: finding.Fingerprint,
		Kind:        finding.Kind,
		Category:    finding.Rule,
		Severity:    finding.Severity,
		File:        finding.File,
		Line:        finding.Line,
		Title:       finding.Title,
		Detail:      finding.Detail,
		Status:      types.IssueStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
		History: []StatusEntry{
			{Status: types.IssueStatusOpen, Note: "created from audit", ChangedAt: now},
		},
	}, nil
}

// UpdateStatus applies a status transition and records it in the history.
// Illegal transitions are rejected.
func (i *Issue) UpdateStatus(status types.IssueStatus, note string) error {
	if !status.IsValid() {
		return goerr.New("invalid status", goerr.V("status", status))
	}
	if !i.Status.CanTransitionTo(status) {
		return goerr.Wrap(ErrInvalidTransition, "status transition not allowed",
			goerr.V("issueID", i.ID),
			goerr.V("from", i.Status),
			goerr.V("to", status))
	}

	now := time.Now()
	i.Status = status
	i.UpdatedAt = now
	i.History = append(i.History, StatusEntry{Status: status, Note: note, ChangedAt: now})
	return nil
}

// Validate validates the issue
func (i *Issue) Validate() error {
	if err := i.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid issue ID")
	}
	if err := i.Fingerprint.Validate(); err != nil {
		return goerr.Wrap(err, "invalid fingerprint")
	}
	if !i.Kind.IsValid() {
		return goerr.New("invalid audit kind", goerr.V("kind", i.Kind))
	}
	if !i.Severity.IsValid() {
		return goerr.New("invalid severity", goerr.V("severity", i.Severity))
	}
	if !i.Status.IsValid() {
		return goerr.New("invalid status", goerr.V("status", i.Status))
	}
	if i.File == "" {
		return goerr.New("issue file is required")
	}
	if i.Title == "" {
		return goerr.New("issue title is required")
	}
	if i.CreatedAt.IsZero() {
		return goerr.New("created at timestamp is required")
	}
	return nil
}

// ClosedAt returns the time of the last terminal transition, or zero time
// if the issue is not closed
func (i *Issue) ClosedAt() time.Time {
	if !i.Status.IsTerminal() {
		return time.Time{}
	}
	for idx := len(i.History) - 1; idx >= 0; idx-- {
		if i.History[idx].Status == i.Status {
			return i.History[idx].ChangedAt
		}
	}
	return i.UpdatedAt
}
