package model

import (
	"sort"
	"time"

	"github.com/Scarmonit/aistack/pkg/domain/types"
)

// Progress summarizes the issue store for the progress report
type Progress struct {
	Total          int                       `json:"total"`
	ByStatus       map[types.IssueStatus]int `json:"byStatus"`
	BySeverity     map[types.Severity]int    `json:"bySeverity"`
	ByKind         map[types.AuditKind]int   `json:"byKind"`
	OpenBySeverity map[types.Severity]int    `json:"openBySeverity"`
	RecentlyClosed []*Issue                  `json:"recentlyClosed"`
	GeneratedAt    time.Time                 `json:"generatedAt"`
}

// NewProgress builds a progress summary from the full issue list
func NewProgress(issues []*Issue) *Progress {
	p := &Progress{
		Total:          len(issues),
		ByStatus:       make(map[types.IssueStatus]int),
		BySeverity:     make(map[types.Severity]int),
		ByKind:         make(map[types.AuditKind]int),
		OpenBySeverity: make(map[types.Severity]int),
		GeneratedAt:    time.Now(),
	}

	for _, issue := range issues {
		p.ByStatus[issue.Status]++
		p.BySeverity[issue.Severity]++
		p.ByKind[issue.Kind]++
		if !issue.Status.IsTerminal() {
			p.OpenBySeverity[issue.Severity]++
		} else {
			p.RecentlyClosed = append(p.RecentlyClosed, issue)
		}
	}

	sort.Slice(p.RecentlyClosed, func(i, j int) bool {
		return p.RecentlyClosed[i].ClosedAt().After(p.RecentlyClosed[j].ClosedAt())
	})
	if len(p.RecentlyClosed) > 10 {
		p.RecentlyClosed = p.RecentlyClosed[:10]
	}

	return p
}

// Closed returns the number of issues in a terminal status
func (p *Progress) Closed() int {
	return p.ByStatus[types.IssueStatusFixed] + p.ByStatus[types.IssueStatusIgnored]
}

// Completion returns the closed ratio in the range 0.0 to 1.0
func (p *Progress) Completion() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Closed()) / float64(p.Total)
}
