package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/ctxlog"

	"github.com/Scarmonit/aistack/frontend"
	"github.com/Scarmonit/aistack/pkg/usecase"
)

// Server is the monitoring dashboard HTTP server
type Server struct {
	*http.Server
	router chi.Router
}

// NewServer creates the dashboard server: JSON API for stack status,
// issue store contents, and written audit reports, plus the embedded
// status page
func NewServer(
	ctx context.Context,
	addr string,
	statusUC usecase.StatusUseCase,
	issuesUC usecase.IssuesUseCase,
	reportsDir string,
) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	api := &apiHandler{
		statusUC:   statusUC,
		issuesUC:   issuesUC,
		reportsDir: reportsDir,
	}

	router.Get("/health", handleHealth)

	router.Route("/api", func(r chi.Router) {
		r.Get("/status", api.handleStatus)
		r.Get("/issues", api.handleIssues)
		r.Get("/progress", api.handleProgress)
		r.Get("/reports", api.handleReports)
	})

	// Static status page, embedded so the binary is self-contained
	fs, err := frontend.GetHTTPFS()
	if err != nil {
		return nil, err
	}
	spa, err := NewSPAHandler(fs)
	if err != nil {
		return nil, err
	}
	router.Handle("/*", spa)

	ctxlog.From(ctx).Debug("dashboard routes registered")

	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
		router: router,
	}, nil
}

// Router exposes the handler for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// handleHealth handles liveness requests
func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "aistack",
	})
}
