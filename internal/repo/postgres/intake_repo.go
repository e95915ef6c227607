package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IntakeRepo writes a public booking submission and everything attached to it
// in a single transaction.
type IntakeRepo interface {
	Create(ctx context.Context, in *domain.Intake, uploads []domain.NewUpload) (*domain.IntakeResult, error)
}

type IntakeRepoImpl struct{ pool *pgxpool.Pool }

func NewIntakeRepo(pool *pgxpool.Pool) *IntakeRepoImpl { return &IntakeRepoImpl{pool: pool} }

func (r *IntakeRepoImpl) Create(ctx context.Context, in *domain.Intake, uploads []domain.NewUpload) (*domain.IntakeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	clientID, err := upsertClient(ctx, tx, &in.Client)
	if err != nil {
		return nil, err
	}

	b := &in.Booking
	const insertBooking = `INSERT INTO booking_requests (
    id, client_id, status, description, budget_range,
    placement, size_description, style_notes, references_notes,
    preferred_artist_name, studio_chooses, source,
    utm_campaign, utm_adset, utm_ad, referrer, landing_path
  ) VALUES ($1,$2,'NEW',$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
  RETURNING id, status, created_at`

	var (
		res    = domain.IntakeResult{ClientID: clientID}
		status string
	)
	if err := tx.QueryRow(ctx, insertBooking,
		uuid.NewString(), clientID, b.Description, string(b.BudgetRange),
		b.Placement, b.SizeDescription, b.StyleNotes, b.ReferencesNotes,
		b.PreferredArtistName, b.StudioChooses, string(b.Source),
		b.UTMCampaign, b.UTMAdset, b.UTMAd, b.Referrer, b.LandingPath,
	).Scan(&res.BookingRequestID, &status, &res.CreatedAt); err != nil {
		return nil, err
	}
	if res.Status, err = domain.ParseBookingStatus(status); err != nil {
		return nil, err
	}

	m := &in.MedicalDeclaration
	const insertMedical = `INSERT INTO medical_declarations (
    booking_request_id, has_allergies, allergies_details, has_skin_condition, skin_condition_details,
    is_pregnant_or_nursing, has_heart_condition, has_diabetes, takes_blood_thinners,
    takes_medication, medication_details, other_notes
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	if _, err := tx.Exec(ctx, insertMedical,
		res.BookingRequestID, m.HasAllergies, m.AllergiesDetails, m.HasSkinCondition, m.SkinConditionDetails,
		m.IsPregnantOrNursing, m.HasHeartCondition, m.HasDiabetes, m.TakesBloodThinners,
		m.TakesMedication, m.MedicationDetails, m.OtherNotes,
	); err != nil {
		return nil, err
	}

	c := &in.Consent
	const insertConsent = `INSERT INTO consents (
    booking_request_id, is_adult_confirmed, terms_accepted, privacy_accepted, full_name, signed_at
  ) VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := tx.Exec(ctx, insertConsent,
		res.BookingRequestID, c.IsAdultConfirmed, c.TermsAccepted, c.PrivacyAccepted, c.FullName, c.SignedAt,
	); err != nil {
		return nil, err
	}

	const insertUpload = `INSERT INTO uploads (
    id, booking_request_id, kind, original_name, mime_type, bytes, storage_public_id, secure_url
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	for _, u := range uploads {
		if _, err := tx.Exec(ctx, insertUpload,
			uuid.NewString(), res.BookingRequestID, string(domain.UploadReference), u.OriginalName,
			u.MimeType, u.Bytes, u.StoragePublicID, u.SecureURL,
		); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &res, nil
}

// upsertClient matches an existing client by email first, then by phone.
// A match is refreshed with the submitted details; optional fields the
// submission leaves out keep their stored values.
func upsertClient(ctx context.Context, tx pgx.Tx, c *domain.IntakeClient) (string, error) {
	var id string
	found := false

	if c.Email != nil && *c.Email != "" {
		err := tx.QueryRow(ctx, `SELECT id FROM clients WHERE lower(email)=lower($1) ORDER BY created_at LIMIT 1`, *c.Email).Scan(&id)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, pgx.ErrNoRows):
			return "", err
		}
	}
	if !found && c.Phone != nil && *c.Phone != "" {
		err := tx.QueryRow(ctx, `SELECT id FROM clients WHERE phone=$1 ORDER BY created_at LIMIT 1`, *c.Phone).Scan(&id)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, pgx.ErrNoRows):
			return "", err
		}
	}

	if found {
		const q = `UPDATE clients SET
    first_name = $2,
    last_name = $3,
    email = COALESCE($4, email),
    phone = COALESCE($5, phone),
    instagram = COALESCE($6, instagram),
    birthday = COALESCE($7, birthday),
    updated_at = now()
WHERE id = $1`
		_, err := tx.Exec(ctx, q, id, c.FirstName, c.LastName, c.Email, c.Phone, c.Instagram, c.Birthday)
		return id, err
	}

	const q = `INSERT INTO clients (id, first_name, last_name, email, phone, instagram, birthday)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`
	err := tx.QueryRow(ctx, q, uuid.NewString(), c.FirstName, c.LastName, c.Email, c.Phone, c.Instagram, c.Birthday).Scan(&id)
	return id, err
}

var _ IntakeRepo = (*IntakeRepoImpl)(nil)
