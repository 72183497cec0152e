package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocoder89/coursehub/internal/config"
	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/security"
)

// EnsureAdminUser creates the configured platform admin once. It is a no-op
// when no admin credentials are configured or the email is already taken.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, hasher *security.PasswordHasher) (bool, error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}

	hash, err := hasher.Hash(cfg.AdminPassword)
	if err != nil {
		return false, err
	}

	u := user.New(user.NewUser{
		FirstName:    cfg.AdminFirstName,
		LastName:     cfg.AdminLastName,
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		Roles:        []string{user.RoleAdmin},
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := pool.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, email, password_hash, roles, company_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, $7, $8, $9)
		ON CONFLICT (email) DO NOTHING
	`, u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Roles, u.Status, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}
