package order

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/georgemunganga/campo-directo-backend/internal/modules/auth"
	"github.com/georgemunganga/campo-directo-backend/internal/modules/user"
	"github.com/georgemunganga/campo-directo-backend/internal/platform/logger"
)

// Handler exposes order HTTP endpoints.
type Handler struct {
	service Service
	log     *zap.Logger
}

func NewHandler(service Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: service, log: log}
}

// RegisterRoutes expects r to sit behind auth.Middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/orders", func(r chi.Router) {
		r.With(auth.RequireRole(user.RoleBuyer)).Post("/", h.createOrder)
		r.Get("/", h.listOrders) // ?status=&from=&to=&page=&limit=
		r.Get("/stats/summary", h.stats)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/can-rate", h.canRate)
		r.Put("/{id}/status", h.updateStatus)
		r.Put("/{id}/cancel", h.cancelOrder)
		r.Post("/{id}/rate", h.rateOrder)
	})
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badBody(w, r)
		return
	}
	o, err := h.service.CreateOrder(r.Context(), actorFrom(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	f, err := parseListFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.service.ListOrders(r.Context(), actorFrom(r), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, page)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	o, err := h.service.GetOrder(r.Context(), id, actorFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, o)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badBody(w, r)
		return
	}
	o, err := h.service.UpdateStatus(r.Context(), id, actorFrom(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, o)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	// The body is optional.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.badBody(w, r)
		return
	}
	o, err := h.service.Cancel(r.Context(), id, actorFrom(r), req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, o)
}

func (h *Handler) rateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badBody(w, r)
		return
	}
	o, err := h.service.Rate(r.Context(), id, actorFrom(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, o)
}

func (h *Handler) canRate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	res, err := h.service.CanRate(r.Context(), id, actorFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Stats(r.Context(), actorFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, st)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func actorFrom(r *http.Request) Actor {
	id, _ := auth.IdentityFrom(r.Context())
	return Actor{UserID: id.UserID, Role: id.Role}
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, invalid("id", "must be a valid order id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) badBody(w http.ResponseWriter, r *http.Request) {
	h.fail(w, r, invalid("body", "malformed JSON"))
}

// parseListFilter reads status (comma separated), from and to (YYYY-MM-DD,
// both inclusive), page and limit.
func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	var f ListFilter
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Statuses = append(f.Statuses, Status(strings.ToLower(s)))
			}
		}
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return f, invalid("from", "must be a date in YYYY-MM-DD format")
		}
		f.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return f, invalid("to", "must be a date in YYYY-MM-DD format")
		}
		end := t.AddDate(0, 0, 1)
		f.To = &end
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	return f, nil
}

type errorBody struct {
	Error     string     `json:"error"`
	Field     string     `json:"field,omitempty"`
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
}

// fail maps a service error to its HTTP status. Storage failures are logged
// and reported without detail.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Error: err.Error(), RequestID: middleware.GetReqID(r.Context())}
	var (
		ve *ValidationError
		ue *UnavailableError
		te *InvalidTransitionError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status, body.Error, body.Field = http.StatusBadRequest, ve.Message, ve.Field
	case errors.Is(err, ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.As(err, &ue):
		status, body.Error, body.ProductID = http.StatusUnprocessableEntity, ue.Reason, &ue.ProductID
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusForbidden
	case errors.As(err, &te), errors.Is(err, ErrAlreadyRated):
		status = http.StatusConflict
	default:
		logger.FromContext(r.Context(), h.log).Error("order request failed", zap.Error(err))
		body.Error = "internal server error"
	}
	respond(w, status, body)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
