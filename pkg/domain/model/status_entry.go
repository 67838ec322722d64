package model

import (
	"time"

	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// StatusEntry records one status transition of an issue
type StatusEntry struct {
	Status    types.IssueStatus `json:"status" yaml:"status"`
	Note      string            `json:"note,omitempty" yaml:"note,omitempty"`
	ChangedAt time.Time         `json:"changedAt" yaml:"changed_at"`
}

// Validate validates the status entry
func (e *StatusEntry) Validate() error {
	if !e.Status.IsValid() {
		return goerr.New("invalid status", goerr.V("status", e.Status))
	}
	if e.ChangedAt.IsZero() {
		return goerr.New("changed at timestamp is required")
	}
	return nil
}
