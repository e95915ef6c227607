package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/diagnosis/inkstudio-bookings/internal/media"
	"github.com/diagnosis/inkstudio-bookings/internal/repo/postgres"
	"github.com/google/uuid"
)

const testPepper = "test-pepper-0123456789-abcdefghij"

var fastParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

// fakeLinkTokenRepo mirrors the SQL semantics: atomic use_count increments
// and revoke only from ACTIVE.
type fakeLinkTokenRepo struct {
	mu       sync.Mutex
	bookings map[string]bool
	tokens   map[string]*domain.BookingLinkToken
}

func newFakeLinkTokenRepo(bookingIDs ...string) *fakeLinkTokenRepo {
	r := &fakeLinkTokenRepo{bookings: map[string]bool{}, tokens: map[string]*domain.BookingLinkToken{}}
	for _, id := range bookingIDs {
		r.bookings[id] = true
	}
	return r
}

func (r *fakeLinkTokenRepo) BookingExists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bookings[id], nil
}

func (r *fakeLinkTokenRepo) Create(_ context.Context, in *domain.NewLinkToken) (*domain.BookingLinkToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &domain.BookingLinkToken{
		ID:               uuid.NewString(),
		BookingRequestID: in.BookingRequestID,
		SecretHash:       in.SecretHash,
		Scopes:           append([]domain.Scope(nil), in.Scopes...),
		Status:           domain.TokenActive,
		ExpiresAt:        in.ExpiresAt,
		CreatedByAdminID: in.CreatedByAdminID,
		CreatedAt:        time.Now(),
	}
	r.tokens[t.ID] = t
	cp := *t
	return &cp, nil
}

func (r *fakeLinkTokenRepo) FindByID(_ context.Context, id string) (*domain.BookingLinkToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *fakeLinkTokenRepo) UpdateUsage(_ context.Context, id string, usage domain.TokenUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.UseCount += usage.UseCountIncrement
	if t.LastUsedAt == nil || usage.LastUsedAt.After(*t.LastUsedAt) {
		at := usage.LastUsedAt
		t.LastUsedAt = &at
	}
	return nil
}

func (r *fakeLinkTokenRepo) Revoke(_ context.Context, id string, rev domain.TokenRevocation) (*domain.BookingLinkToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if t.Status != domain.TokenActive {
		return nil, domain.ErrTokenInactive
	}
	t.Status = domain.TokenRevoked
	at := rev.RevokedAt
	t.RevokedAt = &at
	t.RevokeReason = rev.Reason
	cp := *t
	return &cp, nil
}

func (r *fakeLinkTokenRepo) ListByBooking(_ context.Context, bookingID string) ([]domain.BookingLinkToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.BookingLinkToken
	for _, t := range r.tokens {
		if t.BookingRequestID == bookingID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeLinkTokenRepo) setStatus(id string, st domain.TokenStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[id].Status = st
}

func (r *fakeLinkTokenRepo) get(id string) domain.BookingLinkToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.tokens[id]
}

// fakeBookingRepo applies StatusWrite as a compare-and-swap under a lock.
type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]*domain.BookingRequest
	writes   []domain.StatusWrite
}

func newFakeBookingRepo(bs ...domain.BookingRequest) *fakeBookingRepo {
	r := &fakeBookingRepo{bookings: map[string]*domain.BookingRequest{}}
	for i := range bs {
		b := bs[i]
		r.bookings[b.ID] = &b
	}
	return r
}

func (r *fakeBookingRepo) List(_ context.Context, f domain.BookingFilter) (*domain.BookingPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page := &domain.BookingPage{Page: f.Page, Limit: f.Limit, Items: []domain.BookingListItem{}}
	for _, b := range r.bookings {
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		page.Total++
		page.Items = append(page.Items, domain.BookingListItem{BookingRequest: *b})
	}
	return page, nil
}

func (r *fakeBookingRepo) GetByID(_ context.Context, id string) (*domain.BookingRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBookingRepo) GetDetail(ctx context.Context, id string) (*domain.BookingDetail, error) {
	b, err := r.GetByID(ctx, id)
	if err != nil || b == nil {
		return nil, err
	}
	return &domain.BookingDetail{BookingRequest: *b, Client: domain.Client{ID: b.ClientID, FirstName: "Ada"}}, nil
}

func (r *fakeBookingRepo) UpdateStatus(_ context.Context, w domain.StatusWrite) (*domain.BookingRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[w.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if b.Status != w.Expected {
		return nil, domain.ErrConflict
	}
	r.writes = append(r.writes, w)
	b.Status = w.Next
	if w.AdminNotes != nil {
		b.AdminNotes = w.AdminNotes
	}
	if w.InternalStatusNote != nil {
		b.InternalStatusNote = w.InternalStatusNote
	}
	if w.ReviewedAt != nil {
		b.ReviewedAt = w.ReviewedAt
	}
	if w.ReviewedByAdminID != nil {
		b.ReviewedByAdminID = w.ReviewedByAdminID
	}
	cp := *b
	return &cp, nil
}

type fakeAdminRepo struct {
	mu      sync.Mutex
	byEmail map[string]*domain.AdminUser
	touched []string
}

func newFakeAdminRepo() *fakeAdminRepo {
	return &fakeAdminRepo{byEmail: map[string]*domain.AdminUser{}}
}

func (r *fakeAdminRepo) Create(_ context.Context, email, hash string, displayName *string) (*domain.AdminUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[email]; ok {
		return nil, domain.ErrConflict
	}
	a := &domain.AdminUser{
		ID: uuid.NewString(), Email: email, DisplayName: displayName,
		PasswordHash: hash, IsActive: true, CreatedAt: time.Now(),
	}
	r.byEmail[email] = a
	cp := *a
	return &cp, nil
}

func (r *fakeAdminRepo) FindByEmail(_ context.Context, email string) (*domain.AdminUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAdminRepo) FindByID(_ context.Context, id string) (*domain.AdminUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byEmail {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAdminRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, id)
	return nil
}

type fakeUploadRepo struct {
	mu      sync.Mutex
	uploads []domain.Upload
	failOn  int
}

func (r *fakeUploadRepo) Create(_ context.Context, in *domain.NewUpload) (*domain.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn > 0 && len(r.uploads)+1 == r.failOn {
		return nil, fmt.Errorf("insert upload: boom")
	}
	u := domain.Upload{
		ID: uuid.NewString(), BookingRequestID: in.BookingRequestID, Kind: in.Kind,
		OriginalName: in.OriginalName, MimeType: in.MimeType, Bytes: in.Bytes,
		StoragePublicID: in.StoragePublicID, SecureURL: in.SecureURL, LinkTokenID: in.LinkTokenID,
		CreatedAt: time.Now(),
	}
	r.uploads = append(r.uploads, u)
	return &u, nil
}

func (r *fakeUploadRepo) ListByBooking(_ context.Context, id string) ([]domain.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Upload
	for _, u := range r.uploads {
		if u.BookingRequestID == id {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeIntakeRepo struct {
	mu      sync.Mutex
	calls   int
	last    *domain.Intake
	uploads []domain.NewUpload
	err     error
}

func (r *fakeIntakeRepo) Create(_ context.Context, in *domain.Intake, uploads []domain.NewUpload) (*domain.IntakeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	r.last = in
	r.uploads = uploads
	return &domain.IntakeResult{
		BookingRequestID: uuid.NewString(),
		ClientID:         uuid.NewString(),
		Status:           domain.BookingNew,
		CreatedAt:        time.Now(),
	}, nil
}

type fakeIdempotencyRepo struct {
	mu   sync.Mutex
	keys map[string]string
}

func newFakeIdempotencyRepo() *fakeIdempotencyRepo {
	return &fakeIdempotencyRepo{keys: map[string]string{}}
}

func (r *fakeIdempotencyRepo) Lookup(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keys[key], nil
}

func (r *fakeIdempotencyRepo) Remember(_ context.Context, key, id string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[key]; !ok {
		r.keys[key] = id
	}
	return nil
}

func (r *fakeIdempotencyRepo) CleanupExpired(context.Context) (int64, error) { return 0, nil }

type publishedEvent struct {
	Subject string
	Data    interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(_ context.Context, subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Subject: subject, Data: data})
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Subject
	}
	return out
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore { return &fakeStore{objects: map[string][]byte{}} }

func (s *fakeStore) Put(_ context.Context, data []byte, folder, filename string) (*media.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := folder + "/" + uuid.NewString()
	s.objects[id] = data
	return &media.Object{PublicID: id, URL: "https://media.example.com/" + id}, nil
}

func (s *fakeStore) Delete(_ context.Context, publicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, publicID)
	s.deleted = append(s.deleted, publicID)
	return nil
}

var (
	_ postgres.LinkTokenRepo   = (*fakeLinkTokenRepo)(nil)
	_ postgres.BookingRepo     = (*fakeBookingRepo)(nil)
	_ postgres.AdminRepo       = (*fakeAdminRepo)(nil)
	_ postgres.UploadRepo      = (*fakeUploadRepo)(nil)
	_ postgres.IntakeRepo      = (*fakeIntakeRepo)(nil)
	_ postgres.IdempotencyRepo = (*fakeIdempotencyRepo)(nil)
	_ media.Store              = (*fakeStore)(nil)
)
