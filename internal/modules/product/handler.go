package product

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/campo-directo-backend/internal/modules/auth"
	"github.com/georgemunganga/campo-directo-backend/internal/modules/user"
)

// Handler exposes product HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

// RegisterRoutes expects r to sit behind auth.Middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/{id}", h.getProduct)
		r.Get("/{id}/availability", h.availability) // ?quantity=...
		r.Get("/farmer/{farmer_id}", h.listFarmerProducts)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(user.RoleFarmer))
			r.Post("/", h.createProduct)
			r.Patch("/{id}/stock", h.updateStock)
		})
	})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	p, err := h.service.CreateProduct(r.Context(), id.UserID, req)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusCreated, p)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	pid, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	p, err := h.service.GetProduct(r.Context(), pid)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (h *Handler) listFarmerProducts(w http.ResponseWriter, r *http.Request) {
	fid, ok := parseID(w, chi.URLParam(r, "farmer_id"))
	if !ok {
		return
	}
	products, err := h.service.ListFarmerProducts(r.Context(), fid)
	if err != nil {
		respondErr(w, err)
		return
	}
	if products == nil {
		products = []*Product{}
	}
	respond(w, http.StatusOK, products)
}

func (h *Handler) updateStock(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())
	pid, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req UpdateStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	p, err := h.service.UpdateStock(r.Context(), id.UserID, pid, req.Stock)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	pid, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	qty, err := decimal.NewFromString(r.URL.Query().Get("quantity"))
	if err != nil || !qty.IsPositive() {
		respond(w, http.StatusBadRequest, map[string]string{"error": "quantity must be a positive number"})
		return
	}
	a, err := h.service.CheckAvailability(r.Context(), pid, qty)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, a)
}

func parseID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidProduct):
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrProductNotFound):
		respond(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNotOwner):
		respond(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		respond(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
