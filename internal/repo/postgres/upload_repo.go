package postgres

import (
	"context"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UploadRepo interface {
	Create(ctx context.Context, in *domain.NewUpload) (*domain.Upload, error)
	ListByBooking(ctx context.Context, bookingRequestID string) ([]domain.Upload, error)
}

type UploadRepoImpl struct{ pool *pgxpool.Pool }

func NewUploadRepo(pool *pgxpool.Pool) *UploadRepoImpl { return &UploadRepoImpl{pool: pool} }

const uploadCols = `id, booking_request_id, kind, original_name, mime_type, bytes,
storage_public_id, secure_url, link_token_id, created_at`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanUpload(row rowScanner) (*domain.Upload, error) {
	var u domain.Upload
	if err := row.Scan(
		&u.ID, &u.BookingRequestID, &u.Kind, &u.OriginalName, &u.MimeType, &u.Bytes,
		&u.StoragePublicID, &u.SecureURL, &u.LinkTokenID, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UploadRepoImpl) Create(ctx context.Context, in *domain.NewUpload) (*domain.Upload, error) {
	const q = `INSERT INTO uploads (
    id, booking_request_id, kind, original_name, mime_type, bytes,
    storage_public_id, secure_url, link_token_id
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  RETURNING ` + uploadCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	kind := in.Kind
	if kind == "" {
		kind = domain.UploadReference
	}
	return scanUpload(r.pool.QueryRow(ctx, q,
		uuid.NewString(), in.BookingRequestID, string(kind), in.OriginalName, in.MimeType, in.Bytes,
		in.StoragePublicID, in.SecureURL, in.LinkTokenID,
	))
}

func (r *UploadRepoImpl) ListByBooking(ctx context.Context, bookingRequestID string) ([]domain.Upload, error) {
	if !validID(bookingRequestID) {
		return []domain.Upload{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return listUploads(ctx, r.pool, bookingRequestID)
}

func listUploads(ctx context.Context, db querier, bookingRequestID string) ([]domain.Upload, error) {
	const q = `SELECT ` + uploadCols + ` FROM uploads
WHERE booking_request_id=$1 ORDER BY created_at DESC`
	rows, err := db.Query(ctx, q, bookingRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Upload{}
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

var _ UploadRepo = (*UploadRepoImpl)(nil)
