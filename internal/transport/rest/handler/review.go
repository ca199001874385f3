package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"huntcurator/internal/model"
	"huntcurator/internal/service"
	"huntcurator/internal/transport/rest/middleware"
)

// ReviewHandler handles selection, review, reveal and save endpoints
type ReviewHandler struct {
	curationSvc *service.CurationService
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(curationSvc *service.CurationService) *ReviewHandler {
	return &ReviewHandler{curationSvc: curationSvc}
}

// ReviewRequest is the curator's grading of one selected row
type ReviewRequest struct {
	Grades      map[string]model.Grade `json:"grades" validate:"required"`
	Explanation string                 `json:"explanation"`
}

// Select handles POST /v1/sessions/{id}/selection/{row}
func (h *ReviewHandler) Select(w http.ResponseWriter, r *http.Request) {
	row, ok := rowParam(w, r)
	if !ok {
		return
	}
	sess, err := h.curationSvc.Select(r.Context(), middleware.GetCuratorID(r.Context()), mux.Vars(r)["id"], row)
	h.respond(w, sess, err)
}

// Deselect handles DELETE /v1/sessions/{id}/selection/{row}
func (h *ReviewHandler) Deselect(w http.ResponseWriter, r *http.Request) {
	row, ok := rowParam(w, r)
	if !ok {
		return
	}
	sess, err := h.curationSvc.Deselect(r.Context(), middleware.GetCuratorID(r.Context()), mux.Vars(r)["id"], row)
	h.respond(w, sess, err)
}

// Confirm handles POST /v1/sessions/{id}/confirm
func (h *ReviewHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	sess, err := h.curationSvc.Confirm(r.Context(), middleware.GetCuratorID(r.Context()), mux.Vars(r)["id"])
	h.respond(w, sess, err)
}

// SubmitReview handles PUT /v1/sessions/{id}/reviews/{row}
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	row, ok := rowParam(w, r)
	if !ok {
		return
	}

	var req ReviewRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	sess, err := h.curationSvc.SubmitReview(r.Context(), middleware.GetCuratorID(r.Context()), mux.Vars(r)["id"], row, req.Grades, req.Explanation)
	h.respond(w, sess, err)
}

// Reveal handles POST /v1/sessions/{id}/reveal
func (h *ReviewHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	sess, err := h.curationSvc.Reveal(r.Context(), middleware.GetCuratorID(r.Context()), mux.Vars(r)["id"])
	h.respond(w, sess, err)
}

// Save handles POST /v1/sessions/{id}/save
func (h *ReviewHandler) Save(w http.ResponseWriter, r *http.Request) {
	req, err := h.curationSvc.Save(r.Context(), middleware.GetCuratorID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Restart handles POST /v1/sessions/{id}/restart
func (h *ReviewHandler) Restart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.curationSvc.Restart(r.Context(), middleware.GetCuratorID(r.Context()), mux.Vars(r)["id"])
	h.respond(w, sess, err)
}

// ListCurations handles GET /v1/curations
func (h *ReviewHandler) ListCurations(w http.ResponseWriter, r *http.Request) {
	list, err := h.curationSvc.ListCurations(r.Context(), middleware.GetCuratorID(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"curations": list})
}

// SessionCurations handles GET /v1/sessions/{id}/curations
func (h *ReviewHandler) SessionCurations(w http.ResponseWriter, r *http.Request) {
	list, err := h.curationSvc.SessionCurations(r.Context(), middleware.GetCuratorID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"curations": list})
}

// GetCuration handles GET /v1/curations/{cycleId}
func (h *ReviewHandler) GetCuration(w http.ResponseWriter, r *http.Request) {
	req, err := h.curationSvc.GetCuration(r.Context(), middleware.GetCuratorID(r.Context()), mux.Vars(r)["cycleId"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *ReviewHandler) respond(w http.ResponseWriter, sess *model.Session, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.NewSessionView(*sess))
}
