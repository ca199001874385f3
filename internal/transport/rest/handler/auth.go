package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"huntcurator/internal/curation"
	"huntcurator/internal/model"
	"huntcurator/internal/service"
)

// validate is shared by all request DTOs
var validate = validator.New()

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	resp, err := h.authSvc.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeRequest decodes and validates a JSON body, writing 400 on failure.
// Unknown fields are rejected.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

type errorBody struct {
	Error   string      `json:"error"`
	Kind    string      `json:"kind"`
	Details interface{} `json:"details,omitempty"`
}

// writeDomainError maps service and curation errors to HTTP responses
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrCurationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case errors.Is(err, service.ErrPersistFailed):
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	kind := curation.Kind(err)
	status := http.StatusUnprocessableEntity
	switch kind {
	case "workflow_locked", "invalid_transition":
		status = http.StatusConflict
	case "internal":
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	body := errorBody{Error: err.Error(), Kind: kind}
	if d := curation.Diagnostic(err); d != nil {
		body.Details = d
	}
	writeJSON(w, status, body)
}
