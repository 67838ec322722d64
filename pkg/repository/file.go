package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// StoreFormat selects the serialization of the issue store file
type StoreFormat string

const (
	StoreFormatYAML StoreFormat = "yaml"
	StoreFormatJSON StoreFormat = "json"
)

// IsValid checks if the store format is valid
func (f StoreFormat) IsValid() bool {
	return f == StoreFormatYAML || f == StoreFormatJSON
}

// ParseStoreFormat parses a string into a StoreFormat
func ParseStoreFormat(s string) (StoreFormat, error) {
	format := StoreFormat(strings.ToLower(s))
	if !format.IsValid() {
		return "", goerr.New("invalid store format, must be yaml or json", goerr.V("format", s))
	}
	return format, nil
}

// FormatForPath infers the store format from a file extension, defaulting
// to YAML
func FormatForPath(path string) StoreFormat {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return StoreFormatJSON
	}
	return StoreFormatYAML
}

// storeDocument is the on-disk shape of the issue store. LastID records
// the highest ID ever issued so removed issues never free their numbers.
type storeDocument struct {
	LastID types.IssueID  `yaml:"last_id" json:"lastId"`
	Issues []*model.Issue `yaml:"issues" json:"issues"`
}

// File implements Repository interface backed by a single flat file.
// All reads are served from memory; every mutation rewrites the file
// through a temp file and rename so a crash cannot leave it truncated.
type File struct {
	mu     sync.Mutex
	path   string
	format StoreFormat
	mem    *Memory
}

// NewFile opens (or initializes) a file-backed repository
func NewFile(path string, format StoreFormat) (*File, error) {
	if path == "" {
		return nil, goerr.New("store path is required")
	}
	if !format.IsValid() {
		return nil, goerr.New("invalid store format", goerr.V("format", format))
	}

	f := &File{
		path:   path,
		format: format,
		mem:    NewMemory(),
	}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

// load reads the store file into memory. A missing file is an empty store.
func (f *File) load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return goerr.Wrap(err, "failed to read issue store", goerr.V("path", f.path))
	}
	if len(data) == 0 {
		return nil
	}

	var doc storeDocument
	switch f.format {
	case StoreFormatJSON:
		err = json.Unmarshal(data, &doc)
	default:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return goerr.Wrap(err, "failed to parse issue store",
			goerr.V("path", f.path),
			goerr.V("format", f.format))
	}

	ctx := context.Background()
	for _, issue := range doc.Issues {
		if err := f.mem.PutIssue(ctx, issue); err != nil {
			return goerr.Wrap(err, "invalid issue in store file",
				goerr.V("path", f.path),
				goerr.V("id", issue.ID))
		}
	}
	// Restore the counter so IDs never repeat, even past removed entries
	f.mem.setCounter(doc.LastID)
	return nil
}

// save writes the store file atomically via temp file and rename
func (f *File) save(ctx context.Context) error {
	issues, err := f.mem.ListIssues(ctx)
	if err != nil {
		return err
	}

	doc := storeDocument{
		LastID: f.mem.counter(),
		Issues: issues,
	}

	var data []byte
	switch f.format {
	case StoreFormatJSON:
		data, err = json.MarshalIndent(doc, "", "  ")
	default:
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return goerr.Wrap(err, "failed to serialize issue store")
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return goerr.Wrap(err, "failed to create store directory", goerr.V("dir", dir))
		}
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return goerr.Wrap(err, "failed to write issue store", goerr.V("path", tmpPath))
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		_ = os.Remove(tmpPath)
		return goerr.Wrap(err, "failed to replace issue store", goerr.V("path", f.path))
	}
	return nil
}

// PutIssue saves an issue and persists the store
func (f *File) PutIssue(ctx context.Context, issue *model.Issue) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.mem.PutIssue(ctx, issue); err != nil {
		return err
	}
	return f.save(ctx)
}

// GetIssue retrieves an issue by ID
func (f *File) GetIssue(ctx context.Context, id types.IssueID) (*model.Issue, error) {
	return f.mem.GetIssue(ctx, id)
}

// GetIssueByFingerprint retrieves an issue by its finding fingerprint
func (f *File) GetIssueByFingerprint(ctx context.Context, fp types.Fingerprint) (*model.Issue, error) {
	return f.mem.GetIssueByFingerprint(ctx, fp)
}

// ListIssues retrieves all issues sorted by ID
func (f *File) ListIssues(ctx context.Context) ([]*model.Issue, error) {
	return f.mem.ListIssues(ctx)
}

// NextIssueID returns the next sequential issue number
func (f *File) NextIssueID(ctx context.Context) (types.IssueID, error) {
	return f.mem.NextIssueID(ctx)
}

// Close persists the store a final time
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.save(context.Background())
}

var _ interfaces.Repository = (*File)(nil) // Compile-time interface check
