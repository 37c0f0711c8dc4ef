package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/issue-tracker/internal/apperror"
	"github.com/sakif/issue-tracker/internal/auth"
	"github.com/sakif/issue-tracker/internal/model"
	"github.com/sakif/issue-tracker/internal/service"
)

// IssueHandler serves the issue CRUD and stats endpoints.
type IssueHandler struct {
	issues *service.IssueService
	logger *slog.Logger
}

func NewIssueHandler(issues *service.IssueService, logger *slog.Logger) *IssueHandler {
	return &IssueHandler{issues: issues, logger: logger}
}

type createIssueRequest struct {
	Title       string `json:"title"       validate:"required"`
	Description string `json:"description" validate:"required"`
	Severity    string `json:"severity"`
}

type createIssueResponse struct {
	Message string       `json:"message"`
	Issue   *model.Issue `json:"issue"`
}

// HandleCreate files a new issue. Authentication is optional here: requests
// without a token are recorded against the anonymous placeholder account.
//
// POST /api/issues/create → 201 {message, issue}
func (h *IssueHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, err)
		return
	}

	caller, _ := auth.CallerFromContext(r.Context()) // nil caller = anonymous

	issue, err := h.issues.Create(r.Context(), caller, req.Title, req.Description, req.Severity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createIssueResponse{
		Message: "issue created",
		Issue:   issue,
	})
}

// HandleList returns the issues visible to the caller, newest first.
// Reporters only see their own.
//
// GET /api/issues?limit=20&offset=0 → 200 [issue...]
func (h *IssueHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("authentication required"))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	issues, err := h.issues.List(r.Context(), caller, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

// HandleGet returns one issue.
//
// GET /api/issues/{id} → 200 issue
func (h *IssueHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("authentication required"))
		return
	}

	issue, err := h.issues.Get(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

type updateIssueRequest struct {
	Status   string `json:"status"`
	Severity string `json:"severity"`
}

// HandleUpdateStatus changes an issue's triage fields. Only status and
// severity can change through this endpoint.
//
// POST|PATCH /api/issues/{id}/update-status → 200 issue
func (h *IssueHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("authentication required"))
		return
	}

	var req updateIssueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	issue, err := h.issues.UpdateStatusSeverity(r.Context(), caller, r.PathValue("id"), req.Status, req.Severity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// HandleDelete removes an issue. Admin only.
//
// DELETE /api/issues/{id} → 204
func (h *IssueHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("authentication required"))
		return
	}

	if err := h.issues.Delete(r.Context(), caller, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats returns issue counts grouped by status and severity, scoped
// to the caller's visibility.
//
// GET /api/issues/stats → 200 {status_counts, severity_counts, total_issues}
func (h *IssueHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("authentication required"))
		return
	}

	stats, err := h.issues.Stats(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
