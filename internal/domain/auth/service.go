package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type UserStore interface {
	FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error)
	UpdateLastLogin(ctx context.Context, userID string) error
}

type Service struct {
	Store    UserStore
	Secret   string
	TokenTTL time.Duration
}

func NewService(store UserStore, secret string, ttl time.Duration) *Service {
	return &Service{Store: store, Secret: secret, TokenTTL: ttl}
}

// Login checks the password and returns a signed access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, Actor, error) {
	user, err := s.Store.FindActiveUserByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", Actor{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", Actor{}, err
	}
	if err := CheckPassword(user.Password, password); err != nil {
		return "", Actor{}, ErrInvalidCredentials
	}

	claims := Claims{UserID: user.ID, StaffID: user.StaffID, Role: user.Role}
	token, err := GenerateToken(s.Secret, claims, s.TokenTTL)
	if err != nil {
		return "", Actor{}, err
	}
	if err := s.Store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("update last login failed", "userId", user.ID, "err", err)
	}
	return token, claims.Actor(), nil
}
