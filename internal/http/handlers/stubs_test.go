package handlers

import (
	"context"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/diagnosis/inkstudio-bookings/internal/media"
)

const testJWTSecret = "handler-test-secret"

type stubAuth struct {
	resp *domain.LoginResponse
	err  error
	got  *domain.LoginRequest
}

func (s *stubAuth) Login(_ context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	s.got = req
	return s.resp, s.err
}

func (s *stubAuth) CreateAdmin(context.Context, string, string, *string) (*domain.AdminUser, error) {
	return nil, nil
}

type stubBookings struct {
	page    *domain.BookingPage
	detail  *domain.BookingDetail
	view    *domain.PublicBookingView
	updated *domain.BookingRequest
	err     error

	gotFilter  domain.BookingFilter
	gotID      string
	gotAdminID string
	gotUpdate  domain.StatusUpdate
}

func (s *stubBookings) List(_ context.Context, f domain.BookingFilter) (*domain.BookingPage, error) {
	s.gotFilter = f
	return s.page, s.err
}

func (s *stubBookings) Detail(_ context.Context, id string) (*domain.BookingDetail, error) {
	s.gotID = id
	return s.detail, s.err
}

func (s *stubBookings) PublicView(_ context.Context, id string) (*domain.PublicBookingView, error) {
	s.gotID = id
	return s.view, s.err
}

func (s *stubBookings) UpdateStatus(_ context.Context, id, adminID string, upd domain.StatusUpdate) (*domain.BookingRequest, error) {
	s.gotID, s.gotAdminID, s.gotUpdate = id, adminID, upd
	return s.updated, s.err
}

type stubLinks struct {
	issued   *domain.IssuedLink
	tokens   []domain.BookingLinkToken
	revoked  *domain.BookingLinkToken
	identity *domain.LinkIdentity
	err      error

	gotCreate domain.CreateLinkRequest
	gotReason *string
	gotToken  string
}

func (s *stubLinks) CreateToken(_ context.Context, req domain.CreateLinkRequest) (*domain.IssuedLink, error) {
	s.gotCreate = req
	return s.issued, s.err
}

func (s *stubLinks) ValidateToken(_ context.Context, compound string) (*domain.LinkIdentity, error) {
	s.gotToken = compound
	if s.identity == nil {
		return nil, domain.ErrNotFound
	}
	return s.identity, nil
}

func (s *stubLinks) RevokeToken(_ context.Context, _ string, reason *string) (*domain.BookingLinkToken, error) {
	s.gotReason = reason
	return s.revoked, s.err
}

func (s *stubLinks) ListTokens(context.Context, string) ([]domain.BookingLinkToken, error) {
	return s.tokens, s.err
}

type stubIntake struct {
	err       error
	gotIntake *domain.Intake
	gotFiles  []media.File
	gotKey    string
}

func (s *stubIntake) Submit(_ context.Context, in *domain.Intake, files []media.File, key string) (*domain.IntakeResult, error) {
	s.gotIntake, s.gotFiles, s.gotKey = in, files, key
	if s.err != nil {
		return nil, s.err
	}
	return &domain.IntakeResult{
		BookingRequestID: "7b0a5f0e-8c39-4d59-9d2e-0f6f3c1c2a11",
		Status:           domain.BookingNew,
		CreatedAt:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}, nil
}

type stubUploads struct {
	err         error
	gotIdentity domain.LinkIdentity
	gotFiles    []media.File
}

func (s *stubUploads) AddUploads(_ context.Context, id domain.LinkIdentity, files []media.File) ([]domain.Upload, error) {
	s.gotIdentity, s.gotFiles = id, files
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Upload, 0, len(files))
	for _, f := range files {
		name := f.Name
		out = append(out, domain.Upload{BookingRequestID: id.BookingRequestID, OriginalName: &name})
	}
	return out, nil
}
