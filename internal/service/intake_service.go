package service

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/diagnosis/inkstudio-bookings/internal/media"
	"github.com/diagnosis/inkstudio-bookings/internal/repo/postgres"
	"github.com/diagnosis/inkstudio-bookings/pkg/events"
	"github.com/diagnosis/inkstudio-bookings/pkg/logger"
)

// IdempotencyTTL is how long an intake Idempotency-Key is remembered.
const IdempotencyTTL = 24 * time.Hour

type IntakeService interface {
	Submit(ctx context.Context, in *domain.Intake, files []media.File, idempotencyKey string) (*domain.IntakeResult, error)
}

type intakeService struct {
	intakeRepo      postgres.IntakeRepo
	bookingRepo     postgres.BookingRepo
	idempotencyRepo postgres.IdempotencyRepo
	store           media.Store
	eventBus        events.Publisher
	limits          UploadLimits
}

func NewIntakeService(
	intakeRepo postgres.IntakeRepo,
	bookingRepo postgres.BookingRepo,
	idempotencyRepo postgres.IdempotencyRepo,
	store media.Store,
	eventBus events.Publisher,
	limits UploadLimits,
) IntakeService {
	return &intakeService{
		intakeRepo:      intakeRepo,
		bookingRepo:     bookingRepo,
		idempotencyRepo: idempotencyRepo,
		store:           store,
		eventBus:        eventBus,
		limits:          limits,
	}
}

// Submit records a public booking request. A repeated idempotencyKey returns
// the booking the first submission created.
func (s *intakeService) Submit(ctx context.Context, in *domain.Intake, files []media.File, idempotencyKey string) (*domain.IntakeResult, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		existingID, err := s.idempotencyRepo.Lookup(ctx, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if existingID != "" {
			b, err := s.bookingRepo.GetByID(ctx, existingID)
			if err != nil {
				return nil, fmt.Errorf("get booking request: %w", err)
			}
			if b != nil {
				logger.InfoContext(ctx, "Booking intake replayed", "booking_request_id", b.ID)
				return &domain.IntakeResult{
					BookingRequestID: b.ID,
					ClientID:         b.ClientID,
					Status:           b.Status,
					CreatedAt:        b.CreatedAt,
				}, nil
			}
		}
	}

	pending, err := storeFiles(ctx, s.store, s.limits, files)
	if err != nil {
		return nil, err
	}

	res, err := s.intakeRepo.Create(ctx, in, pending)
	if err != nil {
		discardObjects(ctx, s.store, pending)
		return nil, fmt.Errorf("create booking intake: %w", err)
	}

	if idempotencyKey != "" {
		if err := s.idempotencyRepo.Remember(ctx, idempotencyKey, res.BookingRequestID, IdempotencyTTL); err != nil {
			logger.ErrorContext(ctx, "Failed to store idempotency record", "error", err, "booking_request_id", res.BookingRequestID)
		}
	}

	logger.InfoContext(ctx, "Booking intake created",
		"booking_request_id", res.BookingRequestID, "uploads", len(pending), "source", in.Booking.Source)

	event := events.BookingCreatedEvent{
		BookingRequestID: res.BookingRequestID,
		ClientID:         res.ClientID,
		Source:           string(in.Booking.Source),
		CreatedAt:        res.CreatedAt,
	}
	if err := s.eventBus.Publish(ctx, events.BookingCreated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking created event", "error", err, "booking_request_id", res.BookingRequestID)
	}
	return res, nil
}
