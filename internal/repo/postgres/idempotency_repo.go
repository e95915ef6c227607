package postgres

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRepo remembers which booking request an intake Idempotency-Key
// produced, so a retried submission returns the original booking.
type IdempotencyRepo interface {
	// Lookup returns the booking id stored for key, or "" if none.
	Lookup(ctx context.Context, key string) (string, error)
	// Remember stores key -> bookingRequestID. An existing key is kept.
	Remember(ctx context.Context, key, bookingRequestID string, ttl time.Duration) error
	CleanupExpired(ctx context.Context) (int64, error)
}

type IdempotencyRepoImpl struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepo(pool *pgxpool.Pool) *IdempotencyRepoImpl {
	return &IdempotencyRepoImpl{pool: pool}
}

func hashKey(key string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))
}

func (r *IdempotencyRepoImpl) Lookup(ctx context.Context, key string) (string, error) {
	const q = `SELECT booking_request_id FROM booking_idempotency WHERE key_hash=$1 AND expires_at > now()`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id string
	err := r.pool.QueryRow(ctx, q, hashKey(key)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func (r *IdempotencyRepoImpl) Remember(ctx context.Context, key, bookingRequestID string, ttl time.Duration) error {
	const q = `
INSERT INTO booking_idempotency (key_hash, booking_request_id, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (key_hash) DO NOTHING`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, hashKey(key), bookingRequestID, time.Now().Add(ttl))
	return err
}

func (r *IdempotencyRepoImpl) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM booking_idempotency WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ IdempotencyRepo = (*IdempotencyRepoImpl)(nil)
