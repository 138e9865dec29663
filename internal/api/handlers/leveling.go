// Package handlers provides HTTP handlers for the resource leveling API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"taskboard-leveler/internal/api/response"
	"taskboard-leveler/internal/leveling"
	"taskboard-leveler/pkg/types"
)

// LevelingHandler handles analysis, suggestion, and balancing operations
type LevelingHandler struct {
	service *leveling.Service
}

// NewLevelingHandler creates a new leveling handler
func NewLevelingHandler(service *leveling.Service) *LevelingHandler {
	return &LevelingHandler{service: service}
}

// AnalyzeTask returns the full candidate analysis for one task.
func (h *LevelingHandler) AnalyzeTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	analysis, err := h.service.Analyze(r.Context(), taskID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to analyze task")
		return
	}
	response.WriteSuccess(w, http.StatusOK, analysis)
}

// SuggestTask evaluates one task and stores a suggestion when a reassignment
// is worthwhile. A skipped task is a successful response with no suggestion.
func (h *LevelingHandler) SuggestTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	result, err := h.service.Suggest(r.Context(), taskID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to generate suggestion")
		return
	}
	if result.Suggestion == nil {
		response.WriteSuccess(w, http.StatusOK, result, result.Skipped)
		return
	}
	response.WriteSuccess(w, http.StatusCreated, result)
}

// TeamSuggestions returns a board's suggestions, optionally regenerating the
// pending set first (?refresh=true). ?limit= caps the result.
func (h *LevelingHandler) TeamSuggestions(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "boardID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.WriteError(w, http.StatusBadRequest, response.ErrorCodeValidationFailed,
				"Invalid limit parameter", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	refresh := r.URL.Query().Get("refresh") == "true"

	suggestions, err := h.service.SuggestionsForTeam(r.Context(), boardID, limit, refresh)
	if err != nil {
		h.writeServiceError(w, err, "Failed to list suggestions")
		return
	}
	if suggestions == nil {
		suggestions = []types.Suggestion{}
	}
	response.WriteSuccess(w, http.StatusOK, suggestions)
}

// TeamReport returns the board's utilization report.
func (h *LevelingHandler) TeamReport(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "boardID")

	report, err := h.service.Report(r.Context(), boardID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to build report")
		return
	}
	response.WriteSuccess(w, http.StatusOK, report)
}

// reviewRequest carries the reviewing user for accept and reject calls.
type reviewRequest struct {
	Actor string `json:"actor"`
}

func (h *LevelingHandler) parseReview(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, http.StatusBadRequest, response.ErrorCodeBadRequest,
			"Invalid JSON request", err.Error())
		return "", false
	}
	if req.Actor == "" {
		response.WriteError(w, http.StatusBadRequest, response.ErrorCodeValidationFailed,
			"Validation failed", "actor is required")
		return "", false
	}
	return req.Actor, true
}

// AcceptSuggestion applies a pending suggestion.
func (h *LevelingHandler) AcceptSuggestion(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.parseReview(w, r)
	if !ok {
		return
	}

	suggestion, err := h.service.Accept(r.Context(), chi.URLParam(r, "suggestionID"), actor)
	if err != nil {
		h.writeServiceError(w, err, "Failed to accept suggestion")
		return
	}
	response.WriteSuccess(w, http.StatusOK, suggestion)
}

// RejectSuggestion declines a pending suggestion.
func (h *LevelingHandler) RejectSuggestion(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.parseReview(w, r)
	if !ok {
		return
	}

	suggestion, err := h.service.Reject(r.Context(), chi.URLParam(r, "suggestionID"), actor)
	if err != nil {
		h.writeServiceError(w, err, "Failed to reject suggestion")
		return
	}
	response.WriteSuccess(w, http.StatusOK, suggestion)
}

// balanceRequest carries the optional target utilization for a balance run.
type balanceRequest struct {
	TargetUtilization float64 `json:"target_utilization"`
}

// BalanceTeam computes a workload balancing plan for a board. The plan is a
// proposal; no assignment changes until individual moves are accepted.
func (h *LevelingHandler) BalanceTeam(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.WriteError(w, http.StatusBadRequest, response.ErrorCodeBadRequest,
				"Invalid JSON request", err.Error())
			return
		}
	}
	if req.TargetUtilization < 0 || req.TargetUtilization > 100 {
		response.WriteError(w, http.StatusBadRequest, response.ErrorCodeValidationFailed,
			"Validation failed", "target_utilization must be between 0 and 100")
		return
	}

	plan, err := h.service.Balance(r.Context(), chi.URLParam(r, "boardID"), req.TargetUtilization)
	if err != nil {
		h.writeServiceError(w, err, "Failed to balance team")
		return
	}
	response.WriteSuccess(w, http.StatusOK, plan)
}

// AssignmentChanged ingests an assignment-change notification from the task
// module so stale suggestions get invalidated.
func (h *LevelingHandler) AssignmentChanged(w http.ResponseWriter, r *http.Request) {
	var ev types.AssignmentChanged
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		response.WriteError(w, http.StatusBadRequest, response.ErrorCodeBadRequest,
			"Invalid JSON request", err.Error())
		return
	}
	if ev.TaskID == "" || ev.BoardID == "" {
		response.WriteError(w, http.StatusBadRequest, response.ErrorCodeValidationFailed,
			"Validation failed", "task_id and board_id are required")
		return
	}

	h.service.NotifyAssignmentChanged(r.Context(), ev)
	response.WriteSuccess(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// writeServiceError maps service errors onto HTTP status codes.
func (h *LevelingHandler) writeServiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, leveling.ErrNotFound):
		response.WriteError(w, http.StatusNotFound, response.ErrorCodeNotFound, message, err.Error())
	case errors.Is(err, leveling.ErrSuggestionExpired):
		response.WriteError(w, http.StatusGone, response.ErrorCodeGone, message, err.Error())
	case errors.Is(err, leveling.ErrSuggestionReviewed):
		response.WriteError(w, http.StatusConflict, response.ErrorCodeConflict, message, err.Error())
	default:
		response.WriteError(w, http.StatusInternalServerError, response.ErrorCodeInternalError, message, err.Error())
	}
}
