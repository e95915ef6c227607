package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LinkTokenRepo persists booking link tokens. Rows are never deleted.
type LinkTokenRepo interface {
	BookingExists(ctx context.Context, bookingRequestID string) (bool, error)
	Create(ctx context.Context, in *domain.NewLinkToken) (*domain.BookingLinkToken, error)
	FindByID(ctx context.Context, id string) (*domain.BookingLinkToken, error)
	UpdateUsage(ctx context.Context, id string, usage domain.TokenUsage) error
	Revoke(ctx context.Context, id string, rev domain.TokenRevocation) (*domain.BookingLinkToken, error)
	ListByBooking(ctx context.Context, bookingRequestID string) ([]domain.BookingLinkToken, error)
}

type LinkTokenRepoImpl struct{ pool *pgxpool.Pool }

func NewLinkTokenRepo(pool *pgxpool.Pool) *LinkTokenRepoImpl { return &LinkTokenRepoImpl{pool: pool} }

const linkTokenCols = `id, booking_request_id, secret_hash, scopes, status,
expires_at, last_used_at, use_count, created_by_admin_id,
revoked_at, revoke_reason, created_at`

func scanLinkToken(row rowScanner) (*domain.BookingLinkToken, error) {
	var (
		t      domain.BookingLinkToken
		scopes []string
		status string
	)
	if err := row.Scan(
		&t.ID, &t.BookingRequestID, &t.SecretHash, &scopes, &status,
		&t.ExpiresAt, &t.LastUsedAt, &t.UseCount, &t.CreatedByAdminID,
		&t.RevokedAt, &t.RevokeReason, &t.CreatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if t.Scopes, err = domain.ParseScopes(scopes); err != nil {
		return nil, fmt.Errorf("link token %s: stored scopes: %w", t.ID, err)
	}
	if t.Status, err = domain.ParseTokenStatus(status); err != nil {
		return nil, fmt.Errorf("link token %s: stored status: %w", t.ID, err)
	}
	return &t, nil
}

func (r *LinkTokenRepoImpl) BookingExists(ctx context.Context, bookingRequestID string) (bool, error) {
	if !validID(bookingRequestID) {
		return false, nil
	}
	const q = `SELECT EXISTS (SELECT 1 FROM booking_requests WHERE id=$1)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var ok bool
	err := r.pool.QueryRow(ctx, q, bookingRequestID).Scan(&ok)
	return ok, err
}

func (r *LinkTokenRepoImpl) Create(ctx context.Context, in *domain.NewLinkToken) (*domain.BookingLinkToken, error) {
	const q = `INSERT INTO booking_link_tokens (
    id, booking_request_id, secret_hash, scopes, status, expires_at, created_by_admin_id
  ) VALUES ($1,$2,$3,$4,'ACTIVE',$5,$6)
  RETURNING ` + linkTokenCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	t, err := scanLinkToken(r.pool.QueryRow(ctx, q,
		uuid.NewString(), in.BookingRequestID, in.SecretHash,
		domain.ScopeStrings(in.Scopes), in.ExpiresAt, in.CreatedByAdminID,
	))
	if isUniqueViolation(err) {
		return nil, domain.ErrConflict
	}
	return t, err
}

func (r *LinkTokenRepoImpl) FindByID(ctx context.Context, id string) (*domain.BookingLinkToken, error) {
	if !validID(id) {
		return nil, nil
	}
	const q = `SELECT ` + linkTokenCols + ` FROM booking_link_tokens WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	t, err := scanLinkToken(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// UpdateUsage bumps use_count in the database so concurrent validations never
// lose an increment.
func (r *LinkTokenRepoImpl) UpdateUsage(ctx context.Context, id string, usage domain.TokenUsage) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	const q = `UPDATE booking_link_tokens
SET use_count = use_count + $2,
    last_used_at = GREATEST(COALESCE(last_used_at, $3), $3)
WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, id, usage.UseCountIncrement, usage.LastUsedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Revoke flips an ACTIVE token to REVOKED. A token in any other status is
// left untouched and reported as ErrTokenInactive.
func (r *LinkTokenRepoImpl) Revoke(ctx context.Context, id string, rev domain.TokenRevocation) (*domain.BookingLinkToken, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	const q = `UPDATE booking_link_tokens
SET status='REVOKED', revoked_at=$2, revoke_reason=$3
WHERE id=$1 AND status='ACTIVE'
RETURNING ` + linkTokenCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	t, err := scanLinkToken(r.pool.QueryRow(ctx, q, id, rev.RevokedAt, rev.Reason))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}
	return nil, domain.ErrTokenInactive
}

func (r *LinkTokenRepoImpl) ListByBooking(ctx context.Context, bookingRequestID string) ([]domain.BookingLinkToken, error) {
	if !validID(bookingRequestID) {
		return nil, nil
	}
	const q = `SELECT ` + linkTokenCols + ` FROM booking_link_tokens
WHERE booking_request_id=$1 ORDER BY created_at DESC`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, bookingRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BookingLinkToken
	for rows.Next() {
		t, err := scanLinkToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

var _ LinkTokenRepo = (*LinkTokenRepoImpl)(nil)
