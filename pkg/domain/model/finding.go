package model

import (
	"fmt"

	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// Finding represents a single rule hit produced by an audit scan
type Finding struct {
	Rule        types.RuleID      `json:"rule" yaml:"rule"`
	Kind        types.AuditKind   `json:"kind" yaml:"kind"`
	Severity    types.Severity    `json:"severity" yaml:"severity"`
	File        string            `json:"file" yaml:"file"`
	Line        int               `json:"line" yaml:"line"`
	Title       string            `json:"title" yaml:"title"`
	Detail      string            `json:"detail" yaml:"detail"`
	Excerpt     string            `json:"excerpt" yaml:"excerpt"`
	Fingerprint types.Fingerprint `json:"fingerprint" yaml:"fingerprint"`
}

// NewFinding creates a Finding and derives its fingerprint
func NewFinding(rule types.RuleID, kind types.AuditKind, severity types.Severity, file string, line int, title, detail, excerpt string) *Finding {
	return &Finding{
		Rule:        rule,
		Kind:        kind,
		Severity:    severity,
		File:        file,
		Line:        line,
		Title:       title,
		Detail:      detail,
		Excerpt:     excerpt,
		Fingerprint: types.NewFingerprint(rule, file, line, excerpt),
	}
}

// Validate validates the finding
func (f *Finding) Validate() error {
	if f.Rule == "" {
		return goerr.New("finding rule is required")
	}
	if !f.Kind.IsValid() {
		return goerr.New("invalid audit kind", goerr.V("kind", f.Kind))
	}
	if !f.Severity.IsValid() {
		return goerr.New("invalid severity", goerr.V("severity", f.Severity))
	}
	if f.File == "" {
		return goerr.New("finding file is required")
	}
	if f.Line <= 0 {
		return goerr.New("finding line must be positive", goerr.V("line", f.Line))
	}
	if f.Title == "" {
		return goerr.New("finding title is required")
	}
	if err := f.Fingerprint.Validate(); err != nil {
		return goerr.Wrap(err, "invalid fingerprint")
	}
	return nil
}

// Location returns the file:line form used in report tables
func (f *Finding) Location() string {
	return fmt.Sprintf("%s:%d", f.File, f.Line)
}
