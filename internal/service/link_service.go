package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/diagnosis/inkstudio-bookings/internal/repo/postgres"
	"github.com/diagnosis/inkstudio-bookings/pkg/events"
	"github.com/diagnosis/inkstudio-bookings/pkg/logger"
	"github.com/diagnosis/inkstudio-bookings/pkg/secret"
)

// PublicBookingPath is the route prefix that carries a compound token.
const PublicBookingPath = "/public/booking/"

// SecretHasher is satisfied by *secret.Hasher.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) (bool, error)
	Burn(secret string)
}

// LinkService issues and validates booking link tokens. Tokens stay usable
// until they expire or are revoked; validation never consumes them.
type LinkService interface {
	CreateToken(ctx context.Context, req domain.CreateLinkRequest) (*domain.IssuedLink, error)
	ValidateToken(ctx context.Context, compound string) (*domain.LinkIdentity, error)
	RevokeToken(ctx context.Context, tokenID string, reason *string) (*domain.BookingLinkToken, error)
	ListTokens(ctx context.Context, bookingRequestID string) ([]domain.BookingLinkToken, error)
}

type linkService struct {
	tokens        postgres.LinkTokenRepo
	hasher        SecretHasher
	eventBus      events.Publisher
	publicBaseURL string
	now           func() time.Time
}

func NewLinkService(
	tokens postgres.LinkTokenRepo,
	hasher SecretHasher,
	eventBus events.Publisher,
	publicBaseURL string,
) LinkService {
	return newLinkService(tokens, hasher, eventBus, publicBaseURL)
}

func newLinkService(tokens postgres.LinkTokenRepo, hasher SecretHasher, eventBus events.Publisher, publicBaseURL string) *linkService {
	return &linkService{
		tokens:        tokens,
		hasher:        hasher,
		eventBus:      eventBus,
		publicBaseURL: publicBaseURL,
		now:           time.Now,
	}
}

func (s *linkService) CreateToken(ctx context.Context, req domain.CreateLinkRequest) (*domain.IssuedLink, error) {
	if !req.ExpiresAt.After(s.now()) {
		return nil, domain.Validationf("expiresAt must be in the future")
	}
	if len(req.Scopes) == 0 {
		return nil, domain.Validationf("scopes must not be empty")
	}

	exists, err := s.tokens.BookingExists(ctx, req.BookingRequestID)
	if err != nil {
		return nil, fmt.Errorf("check booking request: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("booking request %s: %w", req.BookingRequestID, domain.ErrNotFound)
	}

	raw, err := secret.Generate(secret.DefaultLength)
	if err != nil {
		return nil, fmt.Errorf("generate link secret: %w", err)
	}
	hash, err := s.hasher.Hash(raw)
	if err != nil {
		return nil, fmt.Errorf("hash link secret: %w", err)
	}

	tok, err := s.tokens.Create(ctx, &domain.NewLinkToken{
		BookingRequestID: req.BookingRequestID,
		SecretHash:       hash,
		Scopes:           req.Scopes,
		ExpiresAt:        req.ExpiresAt,
		CreatedByAdminID: req.CreatedByAdminID,
	})
	if err != nil {
		return nil, fmt.Errorf("create link token: %w", err)
	}

	compound := domain.CompoundToken{TokenID: tok.ID, Secret: raw}
	logger.InfoContext(ctx, "Booking link issued",
		"token_id", tok.ID, "booking_request_id", tok.BookingRequestID, "expires_at", tok.ExpiresAt)

	event := events.BookingLinkIssuedEvent{
		TokenID:          tok.ID,
		BookingRequestID: tok.BookingRequestID,
		Scopes:           domain.ScopeStrings(tok.Scopes),
		ExpiresAt:        tok.ExpiresAt,
	}
	if req.CreatedByAdminID != nil {
		event.AdminID = *req.CreatedByAdminID
	}
	if err := s.eventBus.Publish(ctx, events.BookingLinkIssued, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking link issued event", "error", err, "token_id", tok.ID)
	}

	return &domain.IssuedLink{
		BookingRequestID: tok.BookingRequestID,
		URL:              s.publicBaseURL + PublicBookingPath + compound.String(),
		TokenID:          tok.ID,
		ExpiresAt:        tok.ExpiresAt,
		Scopes:           tok.Scopes,
	}, nil
}

// ValidateToken checks, in order: format, existence, status, expiry, secret.
// Every rejection before the secret check still runs one hash so response
// time does not reveal which check failed.
func (s *linkService) ValidateToken(ctx context.Context, compound string) (*domain.LinkIdentity, error) {
	ct, err := domain.ParseCompoundToken(compound)
	if err != nil {
		return nil, err
	}

	tok, err := s.tokens.FindByID(ctx, ct.TokenID)
	if err != nil {
		return nil, fmt.Errorf("find link token: %w", err)
	}
	if tok == nil {
		s.hasher.Burn(ct.Secret)
		return nil, s.reject(ctx, ct.TokenID, fmt.Errorf("link token %s: %w", ct.TokenID, domain.ErrNotFound))
	}

	now := s.now()
	if !tok.IsActive() {
		s.hasher.Burn(ct.Secret)
		return nil, s.reject(ctx, tok.ID, fmt.Errorf("link token %s is %s: %w", tok.ID, tok.Status, domain.ErrTokenInactive))
	}
	if tok.IsExpired(now) {
		s.hasher.Burn(ct.Secret)
		return nil, s.reject(ctx, tok.ID, fmt.Errorf("link token %s expired at %s: %w",
			tok.ID, tok.ExpiresAt.Format(time.RFC3339), domain.ErrTokenExpired))
	}

	ok, err := s.hasher.Verify(ct.Secret, tok.SecretHash)
	if err != nil {
		return nil, fmt.Errorf("verify link secret: %w", err)
	}
	if !ok {
		return nil, s.reject(ctx, tok.ID, fmt.Errorf("link token %s: %w", tok.ID, domain.ErrInvalidSecret))
	}

	if err := s.tokens.UpdateUsage(ctx, tok.ID, domain.TokenUsage{LastUsedAt: now, UseCountIncrement: 1}); err != nil {
		return nil, fmt.Errorf("record link token usage: %w", err)
	}

	return &domain.LinkIdentity{
		TokenID:          tok.ID,
		BookingRequestID: tok.BookingRequestID,
		Scopes:           tok.Scopes,
	}, nil
}

// reject logs the specific failure. The caller decides how much of it the
// client gets to see.
func (s *linkService) reject(ctx context.Context, tokenID string, err error) error {
	kind := "invalid_secret"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		kind = "not_found"
	case errors.Is(err, domain.ErrTokenInactive):
		kind = "inactive"
	case errors.Is(err, domain.ErrTokenExpired):
		kind = "expired"
	}
	logger.WarnContext(ctx, "Booking link rejected", "token_id", tokenID, "reason", kind)
	return err
}

func (s *linkService) RevokeToken(ctx context.Context, tokenID string, reason *string) (*domain.BookingLinkToken, error) {
	tok, err := s.tokens.Revoke(ctx, tokenID, domain.TokenRevocation{RevokedAt: s.now(), Reason: reason})
	if err != nil {
		return nil, fmt.Errorf("revoke link token %s: %w", tokenID, err)
	}

	logger.InfoContext(ctx, "Booking link revoked", "token_id", tok.ID, "booking_request_id", tok.BookingRequestID)

	event := events.BookingLinkRevokedEvent{
		TokenID:          tok.ID,
		BookingRequestID: tok.BookingRequestID,
		RevokedAt:        s.now(),
	}
	if tok.RevokedAt != nil {
		event.RevokedAt = *tok.RevokedAt
	}
	if reason != nil {
		event.Reason = *reason
	}
	if err := s.eventBus.Publish(ctx, events.BookingLinkRevoked, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking link revoked event", "error", err, "token_id", tok.ID)
	}
	return tok, nil
}

func (s *linkService) ListTokens(ctx context.Context, bookingRequestID string) ([]domain.BookingLinkToken, error) {
	exists, err := s.tokens.BookingExists(ctx, bookingRequestID)
	if err != nil {
		return nil, fmt.Errorf("check booking request: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("booking request %s: %w", bookingRequestID, domain.ErrNotFound)
	}
	toks, err := s.tokens.ListByBooking(ctx, bookingRequestID)
	if err != nil {
		return nil, fmt.Errorf("list link tokens: %w", err)
	}
	if toks == nil {
		toks = []domain.BookingLinkToken{}
	}
	return toks, nil
}

var _ SecretHasher = (*secret.Hasher)(nil)
