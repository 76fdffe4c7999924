package auth

import (
	"context"
	"errors"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"

	"github.com/georgemunganga/campo-directo-backend/internal/modules/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Service defines the interface for authentication-related business logic.
type Service interface {
	Login(ctx context.Context, email, password string) (*Token, error)
	Verify(token string) (Identity, error)
}

// Users is the slice of the user repository login needs.
type Users interface {
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID uuid.UUID
	Role   user.Role
}

// Claims is the JWT payload issued at login.
type Claims struct {
	Role user.Role `json:"role"`
	jwt.StandardClaims
}

// Token is returned to the client after a successful login.
type Token struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int64      `json:"expires_in"`
	User        *user.User `json:"user"`
}

type ctxKey struct{}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the caller identity set by Middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
