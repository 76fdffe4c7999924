package activity

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/campo-directo-backend/internal/modules/auth"
)

// Handler exposes the caller's activity feed.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/activities", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := h.service.List(r.Context(), id.UserID, limit)
	if err != nil {
		respond(w, http.StatusInternalServerError, map[string]string{"error": "could not load activities"})
		return
	}
	if records == nil {
		records = []*Record{}
	}
	respond(w, http.StatusOK, records)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
