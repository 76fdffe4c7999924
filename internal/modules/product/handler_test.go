package product

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/campo-directo-backend/internal/modules/auth"
	"github.com/georgemunganga/campo-directo-backend/internal/modules/user"
)

func newRouter(svc Service, id auth.Identity) *chi.Mux {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithIdentity(req.Context(), id)))
		})
	})
	NewHandler(svc).RegisterRoutes(r)
	return r
}

func TestHandlerAvailability(t *testing.T) {
	p := tomatoes(uuid.New())
	svc := NewService(newMemRepo(p), &memLog{}, inlineTx{}, nil)
	r := newRouter(svc, auth.Identity{UserID: uuid.New(), Role: user.RoleBuyer})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/"+p.ID.String()+"/availability?quantity=20", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var a Availability
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.False(t, a.Available)
	assert.Contains(t, a.Reason, "insufficient stock")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/"+p.ID.String()+"/availability?quantity=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerCreateProduct_RoleGate(t *testing.T) {
	svc := NewService(newMemRepo(), &memLog{}, inlineTx{}, nil)
	body := `{"name":"Cebolla","price_per_unit":"2500","stock":"30"}`

	rec := httptest.NewRecorder()
	buyer := newRouter(svc, auth.Identity{UserID: uuid.New(), Role: user.RoleBuyer})
	buyer.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/products/", strings.NewReader(body)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	farmer := newRouter(svc, auth.Identity{UserID: uuid.New(), Role: user.RoleFarmer})
	farmer.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/products/", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, rec.Code)
}
