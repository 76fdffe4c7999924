package auth

import (
	"net/http"
	"strings"

	"github.com/georgemunganga/campo-directo-backend/internal/modules/user"
)

// Middleware rejects requests without a valid bearer token and attaches the
// caller's Identity to the request context.
func Middleware(svc Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				respond(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
				return
			}
			id, err := svc.Verify(strings.TrimSpace(raw))
			if err != nil {
				respond(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole allows the request through only for the listed roles.
// Must be mounted after Middleware.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				respond(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respond(w, http.StatusForbidden, map[string]string{"error": "role not permitted"})
		})
	}
}
