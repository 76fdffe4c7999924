package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/georgemunganga/campo-directo-backend/internal/modules/user"
)

const issuer = "campo-directo"

type service struct {
	users  Users
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates an auth service signing HS256 tokens with secret.
func NewService(users Users, secret string, ttl time.Duration, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		logger: logger.Named("auth"),
	}
}

func (s *service) Login(ctx context.Context, email, password string) (*Token, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("password mismatch", zap.String("user_id", u.ID.String()))
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	claims := Claims{
		Role: u.Role,
		StandardClaims: jwt.StandardClaims{
			Subject:   u.ID.String(),
			Issuer:    issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.ttl.Seconds()),
		User:        u,
	}, nil
}

func (s *service) Verify(raw string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil || !claims.Role.Valid() {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: id, Role: claims.Role}, nil
}
