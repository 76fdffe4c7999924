package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the public user endpoints. Profile reads go through
// the authenticated group passed as protected.
func (h *Handler) RegisterRoutes(public, protected chi.Router) {
	public.Post("/api/v1/users/register", h.registerUser)
	protected.Get("/api/v1/users/{id}", h.getUser)
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	user, err := h.service.RegisterUser(r.Context(), req)
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, ErrEmailTaken):
		respond(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	case err != nil:
		respond(w, http.StatusInternalServerError, map[string]string{"error": "could not register user"})
		return
	}
	respond(w, http.StatusCreated, user)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if errors.Is(err, ErrUserNotFound) {
		respond(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		respond(w, http.StatusInternalServerError, map[string]string{"error": "could not load user"})
		return
	}
	respond(w, http.StatusOK, user)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
