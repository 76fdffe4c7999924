package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/georgemunganga/campo-directo-backend/internal/modules/user"
)

type fixedVerifier struct {
	Service
	id  Identity
	err error
}

func (f fixedVerifier) Verify(string) (Identity, error) { return f.id, f.err }

func TestMiddleware(t *testing.T) {
	want := Identity{UserID: uuid.New(), Role: user.RoleBuyer}
	var got Identity
	h := Middleware(fixedVerifier{id: want})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, want, got)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	Middleware(fixedVerifier{err: ErrInvalidToken})(h).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireRole(user.RoleFarmer)(ok)

	cases := []struct {
		name string
		id   *Identity
		want int
	}{
		{"farmer allowed", &Identity{UserID: uuid.New(), Role: user.RoleFarmer}, http.StatusOK},
		{"buyer forbidden", &Identity{UserID: uuid.New(), Role: user.RoleBuyer}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.id != nil {
				req = req.WithContext(WithIdentity(req.Context(), *tc.id))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
