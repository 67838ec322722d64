package audit

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxFileSize = 1 << 20 // 1 MiB
	defaultWorkers     = 8
)

// skipDirs are directory names never descended into during a scan
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"venv":         true,
	".venv":        true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	".idea":        true,
	".vscode":      true,
}

// Scanner walks a file tree and applies audit rules line by line
type Scanner struct {
	kinds       []types.AuditKind
	rules       []*Rule
	maxFileSize int64
	workers     int
}

// ScannerOption configures a Scanner
type ScannerOption func(*Scanner)

// WithRules replaces the builtin rule set
func WithRules(rules []*Rule) ScannerOption {
	return func(s *Scanner) {
		s.rules = rules
	}
}

// WithMaxFileSize sets the per-file size cap in bytes
func WithMaxFileSize(n int64) ScannerOption {
	return func(s *Scanner) {
		s.maxFileSize = n
	}
}

// WithWorkers sets the number of concurrent file scanners
func WithWorkers(n int) ScannerOption {
	return func(s *Scanner) {
		s.workers = n
	}
}

// NewScanner creates a Scanner covering the given audit kinds
func NewScanner(kinds []types.AuditKind, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		kinds:       kinds,
		rules:       RulesForKinds(kinds),
		maxFileSize: defaultMaxFileSize,
		workers:     defaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan audits every file under root and returns the collected report.
// Findings are reported with paths relative to root and sorted by file,
// line, then rule.
func (s *Scanner) Scan(ctx context.Context, root string) (*model.AuditReport, error) {
	logger := ctxlog.From(ctx)

	info, err := os.Stat(root)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to stat audit root", goerr.V("root", root))
	}
	if !info.IsDir() {
		return nil, goerr.New("audit root is not a directory", goerr.V("root", root))
	}

	report, err := model.NewAuditReport(root, s.kinds)
	if err != nil {
		return nil, err
	}

	var files []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, goerr.Wrap(walkErr, "failed to walk audit root", goerr.V("root", root))
	}

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.workers)

	for _, path := range files {
		eg.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-egCtx.Done():
				return egCtx.Err()
			}
			defer func() { <-sem }()

			findings, skipped, err := s.scanFile(root, path)
			if err != nil {
				logger.Warn("skipping unreadable file", "path", path, "error", err)
				skipped = true
			}

			mu.Lock()
			defer mu.Unlock()
			if skipped {
				report.SkippedFiles++
				return nil
			}
			report.ScannedFiles++
			report.Findings = append(report.Findings, findings...)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, goerr.Wrap(err, "audit scan aborted")
	}

	report.Sort()
	report.Duration = time.Since(report.StartedAt)
	return report, nil
}

// scanFile applies every applicable rule to one file. It reports
// skipped=true for oversized or binary content.
func (s *Scanner) scanFile(root, path string) ([]*model.Finding, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, true, err
	}
	if info.Size() > s.maxFileSize {
		return nil, true, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, true, err
	}
	if isBinary(data) {
		return nil, true, nil
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	ext := strings.ToLower(filepath.Ext(path))

	var rules []*Rule
	absentPending := make(map[*Rule]bool)
	for _, rule := range s.rules {
		if !rule.AppliesTo(ext) {
			continue
		}
		if rule.Absent {
			absentPending[rule] = true
			continue
		}
		rules = append(rules, rule)
	}

	var findings []*model.Finding
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		for rule := range absentPending {
			if rule.Pattern.MatchString(line) {
				delete(absentPending, rule)
			}
		}
		for _, rule := range rules {
			if rule.Matches(line) {
				findings = append(findings, model.NewFinding(
					rule.ID, rule.Kind, rule.Severity,
					rel, i+1, rule.Title, rule.Detail, excerpt(line),
				))
			}
		}
	}

	for rule := range absentPending {
		findings = append(findings, model.NewFinding(
			rule.ID, rule.Kind, rule.Severity,
			rel, 1, rule.Title, rule.Detail, "",
		))
	}

	return findings, false, nil
}

// isBinary applies the classic NUL-byte heuristic to the head of a file
func isBinary(data []byte) bool {
	head := data
	if len(head) > 8000 {
		head = head[:8000]
	}
	return bytes.IndexByte(head, 0) >= 0
}
