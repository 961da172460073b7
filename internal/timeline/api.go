package timeline

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pulseroute/platform/internal/shared/auth"
	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
)

// Handler provides HTTP handlers for timelines and transfer history
type Handler struct {
	projector *Projector
}

// NewHandler creates a new timeline handler
func NewHandler(projector *Projector) *Handler {
	return &Handler{projector: projector}
}

// Routes registers the timeline routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/patients/{patientID}", h.GetTimeline)
	r.Get("/history", h.GetHistory)

	return r
}

// GetTimeline returns the ordered lifecycle of one patient
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	timeline, err := h.projector.Project(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, timeline)
}

// GetHistory returns the acting identity's completed transfers
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	filter := HistoryFilter{
		Severity: r.URL.Query().Get("severity"),
		Days:     queryInt(r, "days"),
		Limit:    queryInt(r, "limit"),
		Offset:   queryInt(r, "offset"),
	}

	items, total, err := h.projector.History(r.Context(), auth.GetActor(r.Context()), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  items,
		"total": total,
	})
}

func queryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
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
