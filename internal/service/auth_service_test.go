package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/diagnosis/inkstudio-bookings/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "jwt-test-secret"

func newAuthFixture(t *testing.T) (*authService, *fakeAdminRepo) {
	t.Helper()
	repo := newFakeAdminRepo()
	return newAuthService(repo, testJWTSecret, time.Hour, fastParams), repo
}

func TestLogin_Success(t *testing.T) {
	svc, repo := newAuthFixture(t)
	admin, err := svc.CreateAdmin(context.Background(), " Owner@Studio.Example ", "correct horse battery", nil)
	require.NoError(t, err)
	assert.Equal(t, "owner@studio.example", admin.Email)

	resp, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "OWNER@studio.example",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3600, resp.ExpiresIn)

	claims, err := auth.Parse(resp.AccessToken, testJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, claims.Sub)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
	assert.Equal(t, []string{admin.ID}, repo.touched)
}

func TestLogin_UniformFailures(t *testing.T) {
	svc, repo := newAuthFixture(t)
	_, err := svc.CreateAdmin(context.Background(), "owner@studio.example", "correct horse battery", nil)
	require.NoError(t, err)

	_, err = svc.CreateAdmin(context.Background(), "former@studio.example", "correct horse battery", nil)
	require.NoError(t, err)
	repo.byEmail["former@studio.example"].IsActive = false

	tests := []struct {
		name string
		req  domain.LoginRequest
	}{
		{"wrong password", domain.LoginRequest{Email: "owner@studio.example", Password: "nope"}},
		{"unknown email", domain.LoginRequest{Email: "nobody@studio.example", Password: "correct horse battery"}},
		{"inactive admin", domain.LoginRequest{Email: "former@studio.example", Password: "correct horse battery"}},
		{"empty", domain.LoginRequest{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), &tt.req)
			assert.True(t, errors.Is(err, domain.ErrInvalidCredentials))
		})
	}
	assert.Empty(t, repo.touched)
}

func TestCreateAdmin_Validation(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.CreateAdmin(context.Background(), "not-an-email", "correct horse battery", nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = svc.CreateAdmin(context.Background(), "owner@studio.example", "short", nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = svc.CreateAdmin(context.Background(), "owner@studio.example", "correct horse battery", nil)
	require.NoError(t, err)
	_, err = svc.CreateAdmin(context.Background(), "owner@studio.example", "correct horse battery", nil)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}
