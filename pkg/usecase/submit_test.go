package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/Scarmonit/aistack/pkg/service/audit"
	"github.com/Scarmonit/aistack/pkg/usecase"
	"github.com/Scarmonit/aistack/pkg/utils/async"
)

type createdIssue struct {
	title  string
	body   string
	labels []string
}

type createdPR struct {
	number                  int
	title, body, head, base string
}

type fakeGitHub struct {
	mu            sync.Mutex
	issues        []createdIssue
	prs           []createdPR
	labeled       map[int][]string
	open          []*model.RemoteIssue
	branches      map[string]bool
	defaultBranch string
	failTitles    map[string]bool
	listErr       error
	nextNumber    int
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		labeled:       map[int][]string{},
		branches:      map[string]bool{},
		failTitles:    map[string]bool{},
		defaultBranch: "main",
		nextNumber:    100,
	}
}

func (f *fakeGitHub) CreateIssue(_ context.Context, title, body string, labels []string) (*model.RemoteIssue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failTitles[title] {
		return nil, errors.New("boom")
	}
	f.nextNumber++
	f.issues = append(f.issues, createdIssue{title: title, body: body, labels: labels})
	return &model.RemoteIssue{
		Number:  f.nextNumber,
		Title:   title,
		State:   "open",
		HTMLURL: fmt.Sprintf("https://github.com/o/r/issues/%d", f.nextNumber),
	}, nil
}

func (f *fakeGitHub) ListOpenIssues(_ context.Context) ([]*model.RemoteIssue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]*model.RemoteIssue{}, f.open...), nil
}

func (f *fakeGitHub) CreatePullRequest(_ context.Context, title, body, head, base string) (*model.RemotePullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failTitles[title] {
		return nil, errors.New("boom")
	}
	f.nextNumber++
	f.prs = append(f.prs, createdPR{number: f.nextNumber, title: title, body: body, head: head, base: base})
	return &model.RemotePullRequest{
		Number:  f.nextNumber,
		Title:   title,
		State:   "open",
		Draft:   true,
		HTMLURL: fmt.Sprintf("https://github.com/o/r/pull/%d", f.nextNumber),
	}, nil
}

func (f *fakeGitHub) AddLabels(_ context.Context, number int, labels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.labeled[number] = append(f.labeled[number], labels...)
	return nil
}

func (f *fakeGitHub) BranchExists(_ context.Context, branch string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.branches[branch], nil
}

func (f *fakeGitHub) DefaultBranch(_ context.Context) (string, error) {
	return f.defaultBranch, nil
}

func (f *fakeGitHub) issueTitles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	titles := make([]string, 0, len(f.issues))
	for _, issue := range f.issues {
		titles = append(titles, issue.title)
	}
	return titles
}

type captureNotifier struct {
	mu       sync.Mutex
	messages []string
	posted   chan string
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{posted: make(chan string, 8)}
}

func (n *captureNotifier) Post(_ context.Context, message string) error {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()

	select {
	case n.posted <- message:
	default:
	}
	return nil
}

func (n *captureNotifier) wait(t *testing.T) string {
	t.Helper()
	select {
	case message := <-n.posted:
		return message
	case <-time.After(2 * time.Second):
		t.Fatal("no notification arrived")
		return ""
	}
}

func (n *captureNotifier) recorded() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// writeReport renders the shared fixture report to a markdown file
func writeReport(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "audit.md")
	content := audit.RenderMarkdown(buildReport(t))
	gt.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSubmitBugs(t *testing.T) {
	ctx := context.Background()
	github := newFakeGitHub()
	notifier := newCaptureNotifier()

	submit := usecase.NewSubmit(github, notifier)
	result, err := submit.Bugs(ctx, writeReport(t), "")
	gt.NoError(t, err)
	gt.Equal(t, result.Filed, 2)
	gt.Equal(t, result.Skipped, 0)
	gt.Equal(t, result.Failed, 0)

	titles := github.issueTitles()
	gt.Equal(t, len(titles), 2)
	gt.S(t, titles[0]).Contains("[critical] Hardcoded password (app/config.py:12)")
	gt.S(t, github.issues[0].body).Contains("sec-hardcoded-password")

	labels := github.issues[0].labels
	gt.Equal(t, labels, []string{"automated-audit", "critical", "security"})

	gt.S(t, notifier.wait(t)).Contains("filed 2")
}

func TestSubmitBugsNotifiesBeforeExit(t *testing.T) {
	ctx := context.Background()
	github := newFakeGitHub()
	notifier := newCaptureNotifier()

	submit := usecase.NewSubmit(github, notifier)
	_, err := submit.Bugs(ctx, writeReport(t), "")
	gt.NoError(t, err)

	// Drain is the join point the CLI runs before process exit; the
	// notification must be observable once it returns
	gt.NoError(t, async.Drain(ctx, 2*time.Second))
	messages := notifier.recorded()
	gt.A(t, messages).Length(1)
	gt.S(t, messages[0]).Contains("filed")
}

func TestSubmitBugsKindFilter(t *testing.T) {
	github := newFakeGitHub()
	submit := usecase.NewSubmit(github, newCaptureNotifier())

	result, err := submit.Bugs(context.Background(), writeReport(t), types.AuditKindSecurity)
	gt.NoError(t, err)
	gt.Equal(t, result.Filed, 1)
	gt.S(t, github.issueTitles()[0]).Contains("Hardcoded password")
}

func TestSubmitBugsSkipsDuplicateTitles(t *testing.T) {
	github := newFakeGitHub()
	github.open = []*model.RemoteIssue{
		{Number: 7, Title: "[critical] Hardcoded password (app/config.py:12)", State: "open"},
	}

	submit := usecase.NewSubmit(github, newCaptureNotifier())
	result, err := submit.Bugs(context.Background(), writeReport(t), "")
	gt.NoError(t, err)
	gt.Equal(t, result.Filed, 1)
	gt.Equal(t, result.Skipped, 1)
}

func TestSubmitBugsLimit(t *testing.T) {
	github := newFakeGitHub()
	submit := usecase.NewSubmit(github, newCaptureNotifier(), usecase.WithLimit(1))

	result, err := submit.Bugs(context.Background(), writeReport(t), "")
	gt.NoError(t, err)
	gt.Equal(t, result.Filed, 1)
	gt.Equal(t, len(github.issues), 1)
}

func TestSubmitBugsContinuesAfterFailure(t *testing.T) {
	github := newFakeGitHub()
	github.failTitles["[critical] Hardcoded password (app/config.py:12)"] = true

	submit := usecase.NewSubmit(github, newCaptureNotifier())
	result, err := submit.Bugs(context.Background(), writeReport(t), "")
	gt.NoError(t, err)
	gt.Equal(t, result.Filed, 1)
	gt.Equal(t, result.Failed, 1)
}

func TestSubmitBugsFailsWhenAllFail(t *testing.T) {
	github := newFakeGitHub()
	github.failTitles["[critical] Hardcoded password (app/config.py:12)"] = true
	github.failTitles["[low] TODO marker (app/main.py:40)"] = true

	submit := usecase.NewSubmit(github, newCaptureNotifier())
	result, err := submit.Bugs(context.Background(), writeReport(t), "")
	gt.Error(t, err)
	gt.Equal(t, result.Failed, 2)
}

func TestSubmitBugsDryRun(t *testing.T) {
	github := newFakeGitHub()
	var out bytes.Buffer

	submit := usecase.NewSubmit(github, newCaptureNotifier(),
		usecase.WithDryRun(true), usecase.WithOutput(&out))
	result, err := submit.Bugs(context.Background(), writeReport(t), "")
	gt.NoError(t, err)
	gt.B(t, result.DryRun).True()
	gt.Equal(t, result.Filed, 2)

	// nothing reached the API
	gt.Equal(t, len(github.issues), 0)
	gt.S(t, out.String()).Contains("dry run: issue")
	gt.S(t, out.String()).Contains("[critical] Hardcoded password")
}

func TestSubmitBugsParseFailure(t *testing.T) {
	submit := usecase.NewSubmit(newFakeGitHub(), newCaptureNotifier())
	_, err := submit.Bugs(context.Background(), filepath.Join(t.TempDir(), "missing.md"), "")
	gt.Error(t, err)
}

func TestSubmitMergeFilesDraftPR(t *testing.T) {
	github := newFakeGitHub()
	github.branches["fix/app-config-py"] = true
	github.branches["fix/app-main-py"] = true

	submit := usecase.NewSubmit(github, newCaptureNotifier())
	result, err := submit.Merge(context.Background(), writeReport(t))
	gt.NoError(t, err)
	gt.Equal(t, result.Filed, 2)
	gt.Equal(t, len(github.prs), 2)

	pr := github.prs[0]
	gt.Equal(t, pr.head, "fix/app-config-py")
	gt.Equal(t, pr.base, "main")
	gt.S(t, pr.title).Contains("app/config.py")
	gt.A(t, github.labeled[pr.number]).Longer(0)
}

func TestSubmitMergeFallsBackToIssue(t *testing.T) {
	github := newFakeGitHub()

	submit := usecase.NewSubmit(github, newCaptureNotifier())
	result, err := submit.Merge(context.Background(), writeReport(t))
	gt.NoError(t, err)
	gt.Equal(t, result.Filed, 2)

	// no branches exist, so both records land as issues
	gt.Equal(t, len(github.prs), 0)
	gt.Equal(t, len(github.issues), 2)
	gt.S(t, github.issues[0].title).Contains("[merge] ")
}

func TestSubmitMergeBaseOverride(t *testing.T) {
	github := newFakeGitHub()
	github.branches["fix/app-config-py"] = true
	github.branches["fix/app-main-py"] = true

	submit := usecase.NewSubmit(github, newCaptureNotifier(),
		usecase.WithBaseBranch("develop"))
	_, err := submit.Merge(context.Background(), writeReport(t))
	gt.NoError(t, err)
	gt.Equal(t, github.prs[0].base, "develop")
}
