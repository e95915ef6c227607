package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/diagnosis/inkstudio-bookings/internal/repo/postgres"
	"github.com/diagnosis/inkstudio-bookings/internal/utils"
	"github.com/diagnosis/inkstudio-bookings/pkg/auth"
	"github.com/diagnosis/inkstudio-bookings/pkg/logger"
)

// MinPasswordLength applies to admin accounts created through CreateAdmin.
const MinPasswordLength = 12

type AuthService interface {
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	CreateAdmin(ctx context.Context, email, password string, displayName *string) (*domain.AdminUser, error)
}

type authService struct {
	adminRepo  postgres.AdminRepo
	jwtSecret  string
	tokenTTL   time.Duration
	hashParams *argon2id.Params
	now        func() time.Time
}

func NewAuthService(adminRepo postgres.AdminRepo, jwtSecret string, tokenTTL time.Duration) AuthService {
	return newAuthService(adminRepo, jwtSecret, tokenTTL, argon2id.DefaultParams)
}

func newAuthService(adminRepo postgres.AdminRepo, jwtSecret string, tokenTTL time.Duration, params *argon2id.Params) *authService {
	return &authService{
		adminRepo:  adminRepo,
		jwtSecret:  jwtSecret,
		tokenTTL:   tokenTTL,
		hashParams: params,
		now:        time.Now,
	}
}

// Login answers every failure with domain.ErrInvalidCredentials so callers
// cannot tell an unknown email from a wrong password.
func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	email := utils.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	admin, err := s.adminRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	if admin == nil || !admin.IsActive {
		logger.WarnContext(ctx, "Admin login rejected", "reason", "unknown_or_inactive")
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := argon2id.ComparePasswordAndHash(req.Password, admin.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify admin password: %w", err)
	}
	if !ok {
		logger.WarnContext(ctx, "Admin login rejected", "reason", "bad_password", "admin_id", admin.ID)
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.adminRepo.TouchLastLogin(ctx, admin.ID, s.now()); err != nil {
		logger.ErrorContext(ctx, "Failed to record admin login", "error", err, "admin_id", admin.ID)
	}

	token, err := auth.NewAdminToken(admin.ID, admin.Email, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign admin token: %w", err)
	}

	logger.InfoContext(ctx, "Admin logged in", "admin_id", admin.ID)
	return &domain.LoginResponse{AccessToken: token, ExpiresIn: int64(s.tokenTTL.Seconds())}, nil
}

func (s *authService) CreateAdmin(ctx context.Context, email, password string, displayName *string) (*domain.AdminUser, error) {
	email = utils.NormalizeEmail(email)
	if !utils.IsValidEmail(email) {
		return nil, domain.Validationf("email is not a valid email address")
	}
	if len(password) < MinPasswordLength {
		return nil, domain.Validationf("password must be at least %d characters", MinPasswordLength)
	}

	hash, err := argon2id.CreateHash(password, s.hashParams)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}

	admin, err := s.adminRepo.Create(ctx, email, hash, utils.TrimOptional(displayName))
	if err != nil {
		return nil, fmt.Errorf("create admin %s: %w", email, err)
	}
	return admin, nil
}
