package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocoder89/coursehub/internal/domain/session"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/geocoder89/coursehub/internal/utils"
)

type RefreshTokensRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRefreshTokensRepo(pool *pgxpool.Pool, prom *observability.Prom) *RefreshTokensRepo {
	return &RefreshTokensRepo{pool: pool, prom: prom}
}

func (r *RefreshTokensRepo) Save(ctx context.Context, rt session.RefreshToken) error {
	return r.prom.ObserveDB("refresh_tokens.save", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, rt.ID, rt.UserID, rt.TokenHash, rt.ExpiresAt, rt.RevokedAt, rt.ReplacedBy, rt.CreatedAt)
		return err
	})
}

// Rotate swaps the token oldID for next in one transaction. The old row is
// locked so two concurrent refreshes with the same token cannot both win.
func (r *RefreshTokensRepo) Rotate(ctx context.Context, oldID, oldHash string, next session.RefreshToken) (userID string, err error) {
	if !utils.IsUUID(oldID) {
		return "", session.ErrRefreshNotFound
	}

	err = r.prom.ObserveDB("refresh_tokens.rotate", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		old, err := getForUpdate(ctx, tx, oldID)
		if err != nil {
			return err
		}
		if !old.Usable(oldHash, time.Now().UTC()) {
			return session.ErrRefreshRejected
		}

		if _, err := tx.Exec(ctx, `
			UPDATE refresh_tokens SET revoked_at = NOW(), replaced_by = $2 WHERE id = $1
		`, oldID, next.ID); err != nil {
			return fmt.Errorf("revoke old token: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at)
			VALUES ($1, $2, $3, $4, NULL, NULL, $5)
		`, next.ID, old.UserID, next.TokenHash, next.ExpiresAt, next.CreatedAt); err != nil {
			return fmt.Errorf("insert new token: %w", err)
		}

		userID = old.UserID
		return tx.Commit(ctx)
	})
	return userID, err
}

// Revoke is idempotent: unknown or already revoked tokens are not an error.
func (r *RefreshTokensRepo) Revoke(ctx context.Context, id string) error {
	if !utils.IsUUID(id) {
		return nil
	}
	return r.prom.ObserveDB("refresh_tokens.revoke", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE refresh_tokens SET revoked_at = NOW()
			WHERE id = $1 AND revoked_at IS NULL
		`, id)
		return err
	})
}

func (r *RefreshTokensRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	return r.prom.ObserveDB("refresh_tokens.revoke_all", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE refresh_tokens SET revoked_at = NOW()
			WHERE user_id = $1 AND revoked_at IS NULL
		`, userID)
		return err
	})
}

func getForUpdate(ctx context.Context, tx pgx.Tx, id string) (session.RefreshToken, error) {
	var row session.RefreshToken

	err := tx.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at
		FROM refresh_tokens
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(
		&row.ID,
		&row.UserID,
		&row.TokenHash,
		&row.ExpiresAt,
		&row.RevokedAt,
		&row.ReplacedBy,
		&row.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.RefreshToken{}, session.ErrRefreshNotFound
		}
		return session.RefreshToken{}, err
	}

	return row, nil
}
