package chat

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
)

// Handler provides HTTP handlers for chat channel lookup
type Handler struct {
	repo Repository
}

// NewHandler creates a new chat handler
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the chat routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/by-patient/{patientID}", h.GetByPatient)
	r.Get("/by-request/{requestID}", h.GetByRequest)

	return r
}

// GetByPatient returns the channel for a patient's accepted transfer
func (h *Handler) GetByPatient(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	ch, err := h.repo.GetByPatient(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ch)
}

// GetByRequest returns the channel for an accepted transfer request
func (h *Handler) GetByRequest(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid request ID"))
		return
	}

	ch, err := h.repo.GetByRequest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ch)
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
