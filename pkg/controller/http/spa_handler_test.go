package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/m-mizutani/gt"

	controller "github.com/Scarmonit/aistack/pkg/controller/http"
)

func spaHandler(t *testing.T) *controller.SPAHandler {
	t.Helper()

	fsys := fstest.MapFS{
		"index.html": {Data: []byte("<html><body>dashboard</body></html>")},
		"app.css":    {Data: []byte("body { margin: 0 }")},
	}
	handler, err := controller.NewSPAHandler(http.FS(fsys))
	gt.NoError(t, err)
	return handler
}

func TestSPAServesExistingFile(t *testing.T) {
	handler := spaHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.css", nil))

	gt.Equal(t, rec.Code, http.StatusOK)
	gt.S(t, rec.Header().Get("Content-Type")).Contains("text/css")
	gt.S(t, rec.Body.String()).Contains("margin")
}

func TestSPAFallsBackToIndex(t *testing.T) {
	handler := spaHandler(t)

	for _, path := range []string{"/", "/missing", "/deep/client/route"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		gt.Equal(t, rec.Code, http.StatusOK)
		gt.S(t, rec.Body.String()).Contains("dashboard")
	}
}

func TestSPAMissingIndexFails(t *testing.T) {
	_, err := controller.NewSPAHandler(http.FS(fstest.MapFS{}))
	gt.Error(t, err)
}
