package service

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/diagnosis/inkstudio-bookings/internal/repo/postgres"
	"github.com/diagnosis/inkstudio-bookings/pkg/events"
	"github.com/diagnosis/inkstudio-bookings/pkg/logger"
)

type BookingService interface {
	List(ctx context.Context, f domain.BookingFilter) (*domain.BookingPage, error)
	Detail(ctx context.Context, id string) (*domain.BookingDetail, error)
	PublicView(ctx context.Context, id string) (*domain.PublicBookingView, error)
	UpdateStatus(ctx context.Context, id, adminID string, upd domain.StatusUpdate) (*domain.BookingRequest, error)
}

type bookingService struct {
	bookingRepo postgres.BookingRepo
	eventBus    events.Publisher
	now         func() time.Time
}

func NewBookingService(bookingRepo postgres.BookingRepo, eventBus events.Publisher) BookingService {
	return newBookingService(bookingRepo, eventBus)
}

func newBookingService(bookingRepo postgres.BookingRepo, eventBus events.Publisher) *bookingService {
	return &bookingService{bookingRepo: bookingRepo, eventBus: eventBus, now: time.Now}
}

func (s *bookingService) List(ctx context.Context, f domain.BookingFilter) (*domain.BookingPage, error) {
	f.Normalize()
	page, err := s.bookingRepo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list booking requests: %w", err)
	}
	return page, nil
}

func (s *bookingService) Detail(ctx context.Context, id string) (*domain.BookingDetail, error) {
	d, err := s.bookingRepo.GetDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking request: %w", err)
	}
	if d == nil {
		return nil, fmt.Errorf("booking request %s: %w", id, domain.ErrNotFound)
	}
	if d.Uploads == nil {
		d.Uploads = []domain.Upload{}
	}
	return d, nil
}

func (s *bookingService) PublicView(ctx context.Context, id string) (*domain.PublicBookingView, error) {
	d, err := s.Detail(ctx, id)
	if err != nil {
		return nil, err
	}
	return domain.NewPublicBookingView(d), nil
}

// UpdateStatus reads the current status, checks the transition and writes
// with the read status as the expected value. If another update lands in
// between, the write fails with domain.ErrConflict instead of overwriting it.
func (s *bookingService) UpdateStatus(ctx context.Context, id, adminID string, upd domain.StatusUpdate) (*domain.BookingRequest, error) {
	current, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking request: %w", err)
	}
	if current == nil {
		return nil, fmt.Errorf("booking request %s: %w", id, domain.ErrNotFound)
	}

	tr, err := domain.ApplyTransition(current.Status, upd.Status)
	if err != nil {
		return nil, err
	}

	w := domain.StatusWrite{
		ID:                 id,
		Expected:           tr.From,
		Next:               tr.To,
		AdminNotes:         upd.AdminNotes,
		InternalStatusNote: upd.InternalStatusNote,
	}
	now := s.now()
	if tr.StampReview {
		w.ReviewedAt = &now
		w.ReviewedByAdminID = &adminID
	}

	updated, err := s.bookingRepo.UpdateStatus(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("update booking status %s: %w", tr, err)
	}

	if tr.NoOp {
		return updated, nil
	}

	logger.InfoContext(ctx, "Booking status changed",
		"booking_request_id", id, "from", tr.From, "to", tr.To, "admin_id", adminID)

	event := events.BookingStatusChangedEvent{
		BookingRequestID: id,
		From:             string(tr.From),
		To:               string(tr.To),
		AdminID:          adminID,
		Reviewed:         tr.StampReview,
		ChangedAt:        now,
	}
	if err := s.eventBus.Publish(ctx, events.BookingStatusChanged, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking status changed event", "error", err, "booking_request_id", id)
	}
	return updated, nil
}
