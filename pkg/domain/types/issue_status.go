package types

import (
	"github.com/m-mizutani/goerr/v2"
)

// IssueStatus represents the lifecycle state of a tracked issue
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "open"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusFixed      IssueStatus = "fixed"
	IssueStatusIgnored    IssueStatus = "ignored"
)

// String returns the string representation of the status
func (s IssueStatus) String() string {
	return string(s)
}

// IsValid checks if the status is valid
func (s IssueStatus) IsValid() bool {
	switch s {
	case IssueStatusOpen, IssueStatusInProgress, IssueStatusFixed, IssueStatusIgnored:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the status closes the issue
func (s IssueStatus) IsTerminal() bool {
	return s == IssueStatusFixed || s == IssueStatusIgnored
}

// CanTransitionTo checks whether moving to the given status is allowed.
// Open issues may start progress or be resolved either way, and a
// resolved issue may only be reopened.
func (s IssueStatus) CanTransitionTo(next IssueStatus) bool {
	if s == next {
		return false
	}
	switch s {
	case IssueStatusOpen, IssueStatusInProgress:
		return next.IsValid()
	case IssueStatusFixed, IssueStatusIgnored:
		return next == IssueStatusOpen
	default:
		return false
	}
}

// ParseIssueStatus parses a string into an IssueStatus
func ParseIssueStatus(s string) (IssueStatus, error) {
	status := IssueStatus(s)
	if !status.IsValid() {
		return "", goerr.New("invalid issue status", goerr.V("status", s))
	}
	return status, nil
}
