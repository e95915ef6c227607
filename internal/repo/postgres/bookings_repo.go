package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepo interface {
	List(ctx context.Context, f domain.BookingFilter) (*domain.BookingPage, error)
	GetByID(ctx context.Context, id string) (*domain.BookingRequest, error)
	GetDetail(ctx context.Context, id string) (*domain.BookingDetail, error)
	UpdateStatus(ctx context.Context, w domain.StatusWrite) (*domain.BookingRequest, error)
}

type BookingRepoImpl struct{ pool *pgxpool.Pool }

func NewBookingRepo(pool *pgxpool.Pool) *BookingRepoImpl { return &BookingRepoImpl{pool: pool} }

const bookingCols = `b.id, b.client_id, b.status, b.description, b.budget_range,
b.placement, b.size_description, b.style_notes, b.references_notes,
b.preferred_artist_name, b.studio_chooses, b.source,
b.utm_campaign, b.utm_adset, b.utm_ad, b.referrer, b.landing_path,
b.admin_notes, b.internal_status_note, b.reviewed_at, b.reviewed_by_admin_id,
b.created_at, b.updated_at`

const clientCols = `c.id, c.first_name, c.last_name, c.email, c.phone, c.instagram,
c.birthday, c.created_at, c.updated_at`

func bookingDest(b *domain.BookingRequest, status, budget, source *string) []any {
	return []any{
		&b.ID, &b.ClientID, status, &b.Description, budget,
		&b.Placement, &b.SizeDescription, &b.StyleNotes, &b.ReferencesNotes,
		&b.PreferredArtistName, &b.StudioChooses, source,
		&b.UTMCampaign, &b.UTMAdset, &b.UTMAd, &b.Referrer, &b.LandingPath,
		&b.AdminNotes, &b.InternalStatusNote, &b.ReviewedAt, &b.ReviewedByAdminID,
		&b.CreatedAt, &b.UpdatedAt,
	}
}

func clientDest(c *domain.Client) []any {
	return []any{
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Instagram,
		&c.Birthday, &c.CreatedAt, &c.UpdatedAt,
	}
}

// parseBookingEnums turns the stored text columns into typed values. A value
// outside the known set is reported, never cast.
func parseBookingEnums(b *domain.BookingRequest, status, budget, source string) error {
	var err error
	if b.Status, err = domain.ParseBookingStatus(status); err != nil {
		return fmt.Errorf("booking %s: stored status: %w", b.ID, err)
	}
	if b.BudgetRange, err = domain.ParseBudgetRange(budget); err != nil {
		return fmt.Errorf("booking %s: stored budget: %w", b.ID, err)
	}
	if b.Source, err = domain.ParseIntakeSource(source); err != nil {
		return fmt.Errorf("booking %s: stored source: %w", b.ID, err)
	}
	return nil
}

func scanBooking(row rowScanner) (*domain.BookingRequest, error) {
	var (
		b                      domain.BookingRequest
		status, budget, source string
	)
	if err := row.Scan(bookingDest(&b, &status, &budget, &source)...); err != nil {
		return nil, err
	}
	if err := parseBookingEnums(&b, status, budget, source); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanBookingWithClient(row rowScanner) (*domain.BookingListItem, error) {
	var (
		it                     domain.BookingListItem
		status, budget, source string
	)
	dest := append(bookingDest(&it.BookingRequest, &status, &budget, &source), clientDest(&it.Client)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := parseBookingEnums(&it.BookingRequest, status, budget, source); err != nil {
		return nil, err
	}
	return &it, nil
}

// escapeLike makes user input literal inside an ILIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func buildBookingWhere(f domain.BookingFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Status != nil {
		args = append(args, string(*f.Status))
		conds = append(conds, fmt.Sprintf("b.status = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(c.first_name ILIKE $%[1]d OR c.last_name ILIKE $%[1]d OR c.email ILIKE $%[1]d OR c.phone ILIKE $%[1]d)", n))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List reads the total and the requested page inside one read-only
// transaction so both come from the same snapshot.
func (r *BookingRepoImpl) List(ctx context.Context, f domain.BookingFilter) (*domain.BookingPage, error) {
	f.Normalize()
	where, args := buildBookingWhere(f)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	page := &domain.BookingPage{Page: f.Page, Limit: f.Limit, Items: []domain.BookingListItem{}}

	countQ := `SELECT count(*) FROM booking_requests b JOIN clients c ON c.id = b.client_id` + where
	if err := tx.QueryRow(ctx, countQ, args...).Scan(&page.Total); err != nil {
		return nil, err
	}

	n := len(args)
	listQ := `SELECT ` + bookingCols + `, ` + clientCols + `
FROM booking_requests b JOIN clients c ON c.id = b.client_id` + where +
		fmt.Sprintf(" ORDER BY b.created_at DESC LIMIT $%d OFFSET $%d", n+1, n+2)

	rows, err := tx.Query(ctx, listQ, append(args, f.Limit, f.Offset())...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		it, err := scanBookingWithClient(rows)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page, tx.Commit(ctx)
}

func (r *BookingRepoImpl) GetByID(ctx context.Context, id string) (*domain.BookingRequest, error) {
	if !validID(id) {
		return nil, nil
	}
	const q = `SELECT ` + bookingCols + ` FROM booking_requests b WHERE b.id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *BookingRepoImpl) GetDetail(ctx context.Context, id string) (*domain.BookingDetail, error) {
	if !validID(id) {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const q = `SELECT ` + bookingCols + `, ` + clientCols + `
FROM booking_requests b JOIN clients c ON c.id = b.client_id WHERE b.id=$1`
	it, err := scanBookingWithClient(tx.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	d := &domain.BookingDetail{BookingRequest: it.BookingRequest, Client: it.Client}

	if d.MedicalDeclaration, err = getMedicalDeclaration(ctx, tx, id); err != nil {
		return nil, err
	}
	if d.Consent, err = getConsent(ctx, tx, id); err != nil {
		return nil, err
	}
	if d.Uploads, err = listUploads(ctx, tx, id); err != nil {
		return nil, err
	}
	if d.ReviewedByAdminID != nil {
		if d.ReviewedByAdmin, err = getReviewer(ctx, tx, *d.ReviewedByAdminID); err != nil {
			return nil, err
		}
	}
	return d, tx.Commit(ctx)
}

func getMedicalDeclaration(ctx context.Context, tx pgx.Tx, bookingID string) (*domain.MedicalDeclaration, error) {
	const q = `SELECT has_allergies, allergies_details, has_skin_condition, skin_condition_details,
is_pregnant_or_nursing, has_heart_condition, has_diabetes, takes_blood_thinners,
takes_medication, medication_details, other_notes
FROM medical_declarations WHERE booking_request_id=$1`
	var m domain.MedicalDeclaration
	err := tx.QueryRow(ctx, q, bookingID).Scan(
		&m.HasAllergies, &m.AllergiesDetails, &m.HasSkinCondition, &m.SkinConditionDetails,
		&m.IsPregnantOrNursing, &m.HasHeartCondition, &m.HasDiabetes, &m.TakesBloodThinners,
		&m.TakesMedication, &m.MedicationDetails, &m.OtherNotes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func getConsent(ctx context.Context, tx pgx.Tx, bookingID string) (*domain.Consent, error) {
	const q = `SELECT is_adult_confirmed, terms_accepted, privacy_accepted, full_name, signed_at
FROM consents WHERE booking_request_id=$1`
	var c domain.Consent
	err := tx.QueryRow(ctx, q, bookingID).Scan(
		&c.IsAdultConfirmed, &c.TermsAccepted, &c.PrivacyAccepted, &c.FullName, &c.SignedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// getReviewer selects the public admin fields only; the password hash never
// leaves admin_users on this path.
func getReviewer(ctx context.Context, tx pgx.Tx, adminID string) (*domain.ReviewerSummary, error) {
	const q = `SELECT id, email, display_name FROM admin_users WHERE id=$1`
	var s domain.ReviewerSummary
	err := tx.QueryRow(ctx, q, adminID).Scan(&s.ID, &s.Email, &s.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateStatus writes w only while the row still holds w.Expected. When no row
// changes, the booking is re-read: a missing row is ErrNotFound, anything
// else means another writer got there first and is reported as ErrConflict.
func (r *BookingRepoImpl) UpdateStatus(ctx context.Context, w domain.StatusWrite) (*domain.BookingRequest, error) {
	if !validID(w.ID) {
		return nil, domain.ErrNotFound
	}
	const q = `UPDATE booking_requests AS b
SET status = $3,
    admin_notes = COALESCE($4, b.admin_notes),
    internal_status_note = COALESCE($5, b.internal_status_note),
    reviewed_at = COALESCE($6, b.reviewed_at),
    reviewed_by_admin_id = COALESCE($7, b.reviewed_by_admin_id),
    updated_at = now()
WHERE b.id = $1 AND b.status = $2
RETURNING ` + bookingCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q,
		w.ID, string(w.Expected), string(w.Next),
		w.AdminNotes, w.InternalStatusNote, w.ReviewedAt, w.ReviewedByAdminID,
	))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM booking_requests WHERE id=$1)`, w.ID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrNotFound
	}
	return nil, domain.ErrConflict
}

var _ BookingRepo = (*BookingRepoImpl)(nil)
