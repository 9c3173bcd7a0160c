package db

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"hrpay/internal/domain/auth"
	"hrpay/internal/platform/config"
	"hrpay/internal/platform/querier"
)

// Seed creates the first system administrator. It is a no-op once the user
// exists.
func Seed(ctx context.Context, q querier.Querier, cfg config.Config) error {
	return ensureAdminUser(ctx, q, auth.RoleSystemAdmin, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
}

func ensureAdminUser(ctx context.Context, q querier.Querier, role, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	var id string
	err := q.QueryRow(ctx, "SELECT id FROM users WHERE lower(email) = lower($1)", email).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	if err := q.QueryRow(ctx, `
    INSERT INTO users (email, password_hash, role, status)
    VALUES ($1, $2, $3, 'active')
    RETURNING id
  `, email, hash, role).Scan(&id); err != nil {
		return err
	}
	slog.Info("seeded admin user", "userId", id, "role", role)
	return nil
}
