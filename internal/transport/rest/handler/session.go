package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"huntcurator/internal/curation"
	"huntcurator/internal/model"
	"huntcurator/internal/service"
	"huntcurator/internal/transport/rest/middleware"
)

// SessionHandler handles session, rubric and run endpoints
type SessionHandler struct {
	curationSvc *service.CurationService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(curationSvc *service.CurationService) *SessionHandler {
	return &SessionHandler{curationSvc: curationSvc}
}

// RubricRequest carries raw rubric text as pasted by the curator
type RubricRequest struct {
	RubricText string `json:"rubricText" validate:"required"`
}

// ReferenceRequest carries the reference response; only the judge grades it
type ReferenceRequest struct {
	ResponseText string `json:"responseText" validate:"required"`
}

// AppendRunRequest is one executor run
type AppendRunRequest struct {
	Model    string               `json:"model"`
	Attempts []model.AttemptInput `json:"attempts" validate:"required,min=1,dive"`
}

// Create handles POST /v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	curatorID := middleware.GetCuratorID(r.Context())

	var req RubricRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	sess, err := h.curationSvc.CreateSession(r.Context(), curatorID, req.RubricText)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, service.NewSessionView(*sess))
}

// Get handles GET /v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	curatorID := middleware.GetCuratorID(r.Context())
	id := mux.Vars(r)["id"]

	sess, err := h.curationSvc.GetSession(r.Context(), curatorID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, service.NewSessionView(*sess))
}

// UpdateRubric handles PUT /v1/sessions/{id}/rubric
func (h *SessionHandler) UpdateRubric(w http.ResponseWriter, r *http.Request) {
	curatorID := middleware.GetCuratorID(r.Context())
	id := mux.Vars(r)["id"]

	var req RubricRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	sess, missing, err := h.curationSvc.UpdateRubric(r.Context(), curatorID, id, req.RubricText)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if missing == nil {
		missing = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session":         service.NewSessionView(*sess),
		"missingCriteria": missing,
	})
}

// PreviewRubric handles POST /v1/rubric/preview
func (h *SessionHandler) PreviewRubric(w http.ResponseWriter, r *http.Request) {
	var req RubricRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	resp := map[string]interface{}{
		"preview": curation.PreviewRubric(req.RubricText),
	}
	if _, err := curation.ExtractRubric(req.RubricText); err != nil {
		resp["strictError"] = errorBody{Error: err.Error(), Kind: curation.Kind(err), Details: curation.Diagnostic(err)}
	}
	writeJSON(w, http.StatusOK, resp)
}

// MissingCriteria handles GET /v1/sessions/{id}/criteria/missing
func (h *SessionHandler) MissingCriteria(w http.ResponseWriter, r *http.Request) {
	curatorID := middleware.GetCuratorID(r.Context())
	id := mux.Vars(r)["id"]

	missing, err := h.curationSvc.MissingCriteria(r.Context(), curatorID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if missing == nil {
		missing = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"missingCriteria": missing})
}

// CheckReference handles POST /v1/sessions/{id}/reference
func (h *SessionHandler) CheckReference(w http.ResponseWriter, r *http.Request) {
	curatorID := middleware.GetCuratorID(r.Context())
	id := mux.Vars(r)["id"]

	var req ReferenceRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	sess, err := h.curationSvc.CheckReference(r.Context(), curatorID, id, req.ResponseText)

	var gateErr *curation.ReferenceGateError
	if errors.As(err, &gateErr) && sess != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":     err.Error(),
			"kind":      curation.Kind(err),
			"details":   gateErr,
			"reference": sess.Reference,
		})
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"reference": sess.Reference})
}

// AppendRun handles POST /v1/sessions/{id}/runs
func (h *SessionHandler) AppendRun(w http.ResponseWriter, r *http.Request) {
	curatorID := middleware.GetCuratorID(r.Context())
	id := mux.Vars(r)["id"]

	var req AppendRunRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	sess, added, err := h.curationSvc.AppendRun(r.Context(), curatorID, id, req.Model, req.Attempts)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"added":   len(added),
		"session": service.NewSessionView(*sess),
	})
}

// Reset handles POST /v1/sessions/{id}/reset
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	curatorID := middleware.GetCuratorID(r.Context())
	id := mux.Vars(r)["id"]

	sess, err := h.curationSvc.ResetResults(r.Context(), curatorID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, service.NewSessionView(*sess))
}

func rowParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	row, err := strconv.Atoi(mux.Vars(r)["row"])
	if err != nil || row < 0 {
		writeError(w, http.StatusBadRequest, "invalid row number")
		return 0, false
	}
	return row, true
}
