package postgres

import (
	"context"
	"fmt"
	"time"
)

// RevokedTokenRepository provides PostgreSQL-backed storage of logged-out token IDs.
// It is used when no Redis is configured.
type RevokedTokenRepository struct {
	pool *Pool
}

// NewRevokedTokenRepository creates a new PostgreSQL revoked token repository
func NewRevokedTokenRepository(pool *Pool) *RevokedTokenRepository {
	return &RevokedTokenRepository{pool: pool}
}

// Revoke stores a token ID until ttl elapses
func (r *RevokedTokenRepository) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	query := `
		INSERT INTO revoked_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`

	_, err := r.pool.Exec(ctx, query, jti, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether an unexpired revocation exists for the token ID
func (r *RevokedTokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1 AND expires_at > NOW())", jti,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// DeleteExpired removes all expired revocations and returns the count deleted
func (r *RevokedTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM revoked_tokens WHERE expires_at <= NOW()")
	if err != nil {
		return 0, fmt.Errorf("delete expired revocations: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return count, nil
}
