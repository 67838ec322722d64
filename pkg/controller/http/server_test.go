package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	controller "github.com/Scarmonit/aistack/pkg/controller/http"
	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/Scarmonit/aistack/pkg/repository"
	"github.com/Scarmonit/aistack/pkg/service/audit"
	"github.com/Scarmonit/aistack/pkg/usecase"
)

// fakeStatus implements usecase.StatusUseCase without probing anything
type fakeStatus struct {
	status *model.StackStatus
	err    error
}

func (f *fakeStatus) Collect(_ context.Context, _ []string) (*model.StackStatus, error) {
	return f.status, f.err
}

func testServer(t *testing.T, status usecase.StatusUseCase, reportsDir string) http.Handler {
	t.Helper()

	repo := repository.NewMemory()
	ctx := context.Background()

	finding := model.NewFinding("sec-hardcoded-password", types.AuditKindSecurity,
		types.SeverityCritical, "deploy.sh", 3, "Hardcoded password",
		"Move the credential into an environment variable", `password = "****"`)
	id, err := repo.NextIssueID(ctx)
	gt.NoError(t, err)
	issue, err := model.NewIssue(id, finding)
	gt.NoError(t, err)
	gt.NoError(t, repo.PutIssue(ctx, issue))

	server, err := controller.NewServer(ctx, "localhost:0",
		status, usecase.NewIssues(repo, reportsDir), reportsDir)
	gt.NoError(t, err)
	return server.Router()
}

func healthyStatus() *fakeStatus {
	return &fakeStatus{
		status: &model.StackStatus{
			Services: []model.ServiceHealth{
				{Name: "ollama", State: types.HealthStateHealthy, Latency: 5 * time.Millisecond},
			},
			Host:      model.HostFacts{TotalMemMB: 16000, AvailMemMB: 8000, FreeDiskGB: 100},
			CheckedAt: time.Now(),
		},
	}
}

func TestHandleHealth(t *testing.T) {
	router := testServer(t, healthyStatus(), t.TempDir())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	gt.Equal(t, rec.Code, http.StatusOK)

	var body map[string]string
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	gt.Equal(t, body["status"], "healthy")
	gt.Equal(t, body["service"], "aistack")
}

func TestHandleStatus(t *testing.T) {
	router := testServer(t, healthyStatus(), t.TempDir())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	gt.Equal(t, rec.Code, http.StatusOK)

	var status model.StackStatus
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	gt.A(t, status.Services).Length(1)
	gt.Equal(t, status.Services[0].Name, "ollama")
	gt.Equal(t, status.Host.TotalMemMB, 16000)
}

func TestHandleIssuesFilter(t *testing.T) {
	router := testServer(t, healthyStatus(), t.TempDir())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/issues?status=open", nil))

	gt.Equal(t, rec.Code, http.StatusOK)

	var issues []*model.Issue
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issues))
	gt.A(t, issues).Length(1)
	gt.Equal(t, issues[0].Status, types.IssueStatusOpen)

	// terminal filter matches nothing, but still returns a JSON array
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/issues?status=fixed", nil))
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, rec.Body.String()[0], byte('['))
}

func TestHandleIssuesBadStatus(t *testing.T) {
	router := testServer(t, healthyStatus(), t.TempDir())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/issues?status=bogus", nil))

	gt.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestHandleProgress(t *testing.T) {
	router := testServer(t, healthyStatus(), t.TempDir())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/progress", nil))

	gt.Equal(t, rec.Code, http.StatusOK)

	var progress model.Progress
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
	gt.Equal(t, progress.Total, 1)
}

func TestHandleReports(t *testing.T) {
	reportsDir := t.TempDir()

	report, err := model.NewAuditReport("/srv/scan-root", []types.AuditKind{types.AuditKindSecurity})
	gt.NoError(t, err)
	_, _, err = audit.WriteFiles(report, reportsDir)
	gt.NoError(t, err)

	router := testServer(t, healthyStatus(), reportsDir)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports", nil))

	gt.Equal(t, rec.Code, http.StatusOK)

	var files []*model.ReportFile
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	gt.A(t, files).Length(2) // markdown + JSON twin
}

func TestHandleStatusError(t *testing.T) {
	failing := &fakeStatus{err: context.DeadlineExceeded}
	router := testServer(t, failing, t.TempDir())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	gt.Equal(t, rec.Code, http.StatusInternalServerError)
}

func TestServeEmbeddedPage(t *testing.T) {
	router := testServer(t, healthyStatus(), t.TempDir())

	for _, path := range []string{"/", "/some/client/route"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		gt.Equal(t, rec.Code, http.StatusOK)
		gt.S(t, rec.Header().Get("Content-Type")).Contains("text/html")
		gt.S(t, rec.Body.String()).Contains("aistack")
	}
}
