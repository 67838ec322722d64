package http

import (
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/ctxlog"

	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/Scarmonit/aistack/pkg/service/audit"
	"github.com/Scarmonit/aistack/pkg/usecase"
)

// apiHandler serves the dashboard JSON endpoints
type apiHandler struct {
	statusUC   usecase.StatusUseCase
	issuesUC   usecase.IssuesUseCase
	reportsDir string
}

// handleStatus runs live probes and returns the combined stack status
func (h *apiHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.statusUC.Collect(r.Context(), nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleIssues returns the issue store contents, optionally filtered by
// the status query parameter
func (h *apiHandler) handleIssues(w http.ResponseWriter, r *http.Request) {
	var filter usecase.IssueFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := types.ParseIssueStatus(raw)
		if err != nil {
			writeBadRequest(w, r, err)
			return
		}
		filter.Status = status
	}

	issues, err := h.issuesUC.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if issues == nil {
		issues = []*model.Issue{}
	}
	writeJSON(w, r, http.StatusOK, issues)
}

// handleProgress returns the issue store tallies
func (h *apiHandler) handleProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.issuesUC.Progress(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, progress)
}

// handleReports returns the index of written audit reports
func (h *apiHandler) handleReports(w http.ResponseWriter, r *http.Request) {
	files, err := audit.ListReportFiles(h.reportsDir)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if files == nil {
		files = []*model.ReportFile{}
	}
	writeJSON(w, r, http.StatusOK, files)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		ctxlog.From(r.Context()).Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctxlog.From(r.Context()).Error("API request failed",
		"path", r.URL.Path, "error", err)
	writeJSON(w, r, http.StatusInternalServerError, map[string]string{
		"error": err.Error(),
	})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, r, http.StatusBadRequest, map[string]string{
		"error": err.Error(),
	})
}
