package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// IssueID represents a tracked issue identifier (sequential serial number)
type IssueID int

// String returns the string representation
func (id IssueID) String() string {
	return fmt.Sprintf("%d", id)
}

// Int returns the int representation
func (id IssueID) Int() int {
	return int(id)
}

// Validate checks that the issue ID is a positive serial number
func (id IssueID) Validate() error {
	if id <= 0 {
		return goerr.New("issue ID must be positive", goerr.V("id", int(id)))
	}
	return nil
}

// RunID represents a single audit run identifier
type RunID string

// String returns the string representation
func (id RunID) String() string {
	return string(id)
}

// NewRunID creates a new RunID using UUID v7 so runs sort by creation time
func NewRunID() (RunID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return RunID(id.String()), nil
}

// RuleID identifies an audit rule (e.g. SEC001, QUA003)
type RuleID string

// String returns the string representation
func (id RuleID) String() string {
	return string(id)
}

// Fingerprint is a stable identity for a finding, used to deduplicate
// issues across audit runs
type Fingerprint string

// String returns the string representation
func (f Fingerprint) String() string {
	return string(f)
}

// Validate checks that the fingerprint is non-empty
func (f Fingerprint) Validate() error {
	if f == "" {
		return goerr.New("fingerprint cannot be empty")
	}
	return nil
}

// NewFingerprint derives a fingerprint from the identifying parts of a
// finding. The same rule hit at the same location always produces the
// same value.
func NewFingerprint(rule RuleID, file string, line int, excerpt string) Fingerprint {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s", rule, file, line, excerpt)))
	return Fingerprint(hex.EncodeToString(h[:8]))
}

// ServiceName identifies a stack service from the catalog
type ServiceName string

// String returns the string representation
func (n ServiceName) String() string {
	return string(n)
}
