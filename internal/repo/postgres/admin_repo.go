package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminRepo interface {
	Create(ctx context.Context, email, hash string, displayName *string) (*domain.AdminUser, error)
	FindByEmail(ctx context.Context, email string) (*domain.AdminUser, error)
	FindByID(ctx context.Context, id string) (*domain.AdminUser, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type AdminRepoImpl struct{ pool *pgxpool.Pool }

func NewAdminRepo(pool *pgxpool.Pool) *AdminRepoImpl { return &AdminRepoImpl{pool: pool} }

const adminCols = `id, email, display_name, password_hash, is_active, last_login_at, created_at`

func scanAdmin(row rowScanner) (*domain.AdminUser, error) {
	var a domain.AdminUser
	if err := row.Scan(
		&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &a.IsActive, &a.LastLoginAt, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AdminRepoImpl) Create(ctx context.Context, email, hash string, displayName *string) (*domain.AdminUser, error) {
	const q = `
INSERT INTO admin_users (id, email, password_hash, display_name)
VALUES ($1,$2,$3,$4)
RETURNING ` + adminCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a, err := scanAdmin(r.pool.QueryRow(ctx, q, uuid.NewString(), normalizeEmail(email), hash, displayName))
	if isUniqueViolation(err) {
		return nil, domain.ErrConflict
	}
	return a, err
}

func (r *AdminRepoImpl) FindByEmail(ctx context.Context, email string) (*domain.AdminUser, error) {
	const q = `SELECT ` + adminCols + ` FROM admin_users WHERE email=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a, err := scanAdmin(r.pool.QueryRow(ctx, q, normalizeEmail(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *AdminRepoImpl) FindByID(ctx context.Context, id string) (*domain.AdminUser, error) {
	if !validID(id) {
		return nil, nil
	}
	const q = `SELECT ` + adminCols + ` FROM admin_users WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a, err := scanAdmin(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *AdminRepoImpl) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE admin_users SET last_login_at=$2 WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, id, at)
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ AdminRepo = (*AdminRepoImpl)(nil)
