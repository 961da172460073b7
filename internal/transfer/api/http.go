package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pulseroute/platform/internal/shared/auth"
	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
	"github.com/pulseroute/platform/internal/transfer"
)

// Handler provides HTTP handlers for transfer request resolution
type Handler struct {
	service *transfer.Service
}

// NewHandler creates a new transfer handler
func NewHandler(service *transfer.Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the transfer request routes. Resolution and queue
// endpoints are hospital-only; single-request lookup is open to any
// authenticated actor.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireActorType(auth.ActorTypeHospital))
		r.Get("/pending", h.ListPending)
		r.Get("/resolved", h.ListResolved)
		r.Post("/{requestID}/accept", h.AcceptRequest)
		r.Post("/{requestID}/reject", h.RejectRequest)
	})

	r.Get("/{requestID}", h.GetRequest)

	return r
}

// RejectRequestBody is the optional payload for a rejection
type RejectRequestBody struct {
	Reason string `json:"reason"`
}

// AcceptRequest accepts a pending transfer request for the acting hospital
func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid request ID"))
		return
	}

	result, err := h.service.Accept(r.Context(), auth.GetActor(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// RejectRequest rejects a pending transfer request for the acting hospital
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid request ID"))
		return
	}

	// An absent body means the default reason; anything else must parse
	var body RejectRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	req, err := h.service.Reject(r.Context(), auth.GetActor(r.Context()), id, body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// GetRequest returns a single transfer request
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid request ID"))
		return
	}

	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// ListPending returns the acting hospital's open request queue
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.Pending(r.Context(), auth.GetActor(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  requests,
		"total": len(requests),
	})
}

// ListResolved returns the acting hospital's resolved requests
func (h *Handler) ListResolved(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.Resolved(r.Context(), auth.GetActor(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  requests,
		"total": len(requests),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
