package patient

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pulseroute/platform/internal/shared/auth"
	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
)

// Handler provides HTTP handlers for patient registration and lookup
type Handler struct {
	service *Service
}

// NewHandler creates a new patient handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the patient routes. Registration is reserved for EMS
// units; lookups are open to any authenticated actor.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(auth.RequireActorType(auth.ActorTypeEMS)).Post("/", h.RegisterPatient)
	r.With(auth.RequireActorType(auth.ActorTypeEMS)).Get("/", h.ListPatients)
	r.Get("/{patientID}", h.GetPatient)

	return r
}

// RegisterPatient registers an emergency patient and starts the hospital
// search
func (h *Handler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetActor(r.Context())

	var in RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	result, err := h.service.Register(r.Context(), actor.ID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// GetPatient returns a patient with its transfer requests
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	result, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListPatients returns the patients registered by the calling EMS unit
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetActor(r.Context())

	patients, err := h.service.ListByUnit(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  patients,
		"total": len(patients),
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
