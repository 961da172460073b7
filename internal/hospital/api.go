package hospital

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the hospital directory
type Handler struct {
	repo Repository
}

// NewHandler creates a new hospital handler
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the hospital routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListHospitals)
	r.Post("/", h.CreateHospital)
	r.Get("/{hospitalID}", h.GetHospital)

	return r
}

// CreateHospitalRequest is the payload for registering a hospital
type CreateHospitalRequest struct {
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	Specialty     []string `json:"specialty"`
	AvailableBeds int      `json:"available_beds"`
}

// ListHospitals lists all hospitals in the directory
func (h *Handler) ListHospitals(w http.ResponseWriter, r *http.Request) {
	hospitals, err := h.repo.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  hospitals,
		"total": len(hospitals),
	})
}

// GetHospital gets a hospital by ID
func (h *Handler) GetHospital(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "hospitalID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid hospital ID"))
		return
	}

	hosp, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, hosp)
}

// CreateHospital registers a new hospital in the directory
func (h *Handler) CreateHospital(w http.ResponseWriter, r *http.Request) {
	var req CreateHospitalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	loc := types.Location{Latitude: req.Latitude, Longitude: req.Longitude}
	hosp, err := NewHospital(req.Name, req.Email, loc, req.Specialty, req.AvailableBeds)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	if err := h.repo.Create(r.Context(), hosp); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, hosp)
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
