package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/diagnosis/inkstudio-bookings/internal/http/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const intakeJSON = `{
	"client": {"firstName": "Ada", "lastName": "Ink", "email": "ada@example.com", "birthday": "1990-04-12"},
	"bookingRequest": {"description": "Koi fish on the forearm", "budgetRange": "B400_700"},
	"medicalDeclaration": {"hasAllergies": false},
	"consent": {"isAdultConfirmed": true, "termsAccepted": true, "privacyAccepted": true, "signedAt": "2026-03-01T10:00:00Z"}
}`

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type publicFixture struct {
	intake   *stubIntake
	bookings *stubBookings
	uploads  *stubUploads
	links    *stubLinks
	handler  http.Handler
}

func newPublicFixture() *publicFixture {
	f := &publicFixture{
		intake:   &stubIntake{},
		bookings: &stubBookings{},
		uploads:  &stubUploads{},
		links:    &stubLinks{},
	}
	f.handler = NewPublicHandler(f.intake, f.bookings, f.uploads, f.links, UploadLimits{MaxBytes: 1024, MaxFiles: 2}, nil).Routes()
	return f
}

func (f *publicFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

type part struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.name)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSubmitIntake_JSON(t *testing.T) {
	f := newPublicFixture()

	req := httptest.NewRequest(http.MethodPost, "/booking-intake?utm_campaign=spring&source=instagram", strings.NewReader(intakeJSON))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://instagram.com/studio")
	req.Header.Set("X-Landing-Path", "/book")
	req.Header.Set("Idempotency-Key", " abc-123 ")

	rec := f.serve(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	in := f.intake.gotIntake
	require.NotNil(t, in)
	assert.Equal(t, "Ada", in.Client.FirstName)
	require.NotNil(t, in.Client.Birthday)
	assert.Equal(t, time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC), *in.Client.Birthday)
	require.NotNil(t, in.Consent.SignedAt)
	assert.True(t, in.Consent.TermsAccepted)

	b := in.Booking
	assert.Equal(t, domain.SourceInstagram, b.Source)
	require.NotNil(t, b.UTMCampaign)
	assert.Equal(t, "spring", *b.UTMCampaign)
	require.NotNil(t, b.Referrer)
	assert.Equal(t, "https://instagram.com/studio", *b.Referrer)
	require.NotNil(t, b.LandingPath)
	assert.Equal(t, "/book", *b.LandingPath)
	assert.Nil(t, b.UTMAd)

	assert.Equal(t, "abc-123", f.intake.gotKey)
	assert.Empty(t, f.intake.gotFiles)

	var res domain.IntakeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, domain.BookingNew, res.Status)
}

func TestSubmitIntake_PayloadTrackingWins(t *testing.T) {
	f := newPublicFixture()
	body := strings.Replace(intakeJSON, `"budgetRange": "B400_700"`, `"budgetRange": "B400_700", "utmCampaign": "from-form"`, 1)

	req := httptest.NewRequest(http.MethodPost, "/booking-intake?utm_campaign=from-query", strings.NewReader(body))
	rec := f.serve(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "from-form", *f.intake.gotIntake.Booking.UTMCampaign)
}

func TestSubmitIntake_Multipart(t *testing.T) {
	f := newPublicFixture()
	body, ct := multipartBody(t, map[string]string{"payload": intakeJSON},
		part{field: "files", name: "ref.png", data: pngHeader},
		part{field: "files", name: "sketch.png", data: pngHeader},
	)

	req := httptest.NewRequest(http.MethodPost, "/booking-intake", body)
	req.Header.Set("Content-Type", ct)

	rec := f.serve(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, f.intake.gotFiles, 2)
	assert.Equal(t, "ref.png", f.intake.gotFiles[0].Name)
	assert.Equal(t, pngHeader, f.intake.gotFiles[1].Data)
}

func TestSubmitIntake_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T) *http.Request
	}{
		{
			name: "unknown field",
			build: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/booking-intake", strings.NewReader(`{"client":{"firstName":"A","isVip":true}}`))
			},
		},
		{
			name: "bad birthday",
			build: func(t *testing.T) *http.Request {
				body := strings.Replace(intakeJSON, "1990-04-12", "12/04/1990", 1)
				return httptest.NewRequest(http.MethodPost, "/booking-intake", strings.NewReader(body))
			},
		},
		{
			name: "missing payload field",
			build: func(t *testing.T) *http.Request {
				body, ct := multipartBody(t, nil, part{field: "files", name: "a.png", data: pngHeader})
				req := httptest.NewRequest(http.MethodPost, "/booking-intake", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
		},
		{
			name: "too many files",
			build: func(t *testing.T) *http.Request {
				body, ct := multipartBody(t, map[string]string{"payload": intakeJSON},
					part{field: "files", name: "1.png", data: pngHeader},
					part{field: "files", name: "2.png", data: pngHeader},
					part{field: "files", name: "3.png", data: pngHeader},
				)
				req := httptest.NewRequest(http.MethodPost, "/booking-intake", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
		},
		{
			name: "oversized file",
			build: func(t *testing.T) *http.Request {
				body, ct := multipartBody(t, map[string]string{"payload": intakeJSON},
					part{field: "files", name: "big.png", data: bytes.Repeat([]byte{0x89}, 2048)},
				)
				req := httptest.NewRequest(http.MethodPost, "/booking-intake", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPublicFixture()
			rec := f.serve(tt.build(t))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Nil(t, f.intake.gotIntake, "service must not be called")
		})
	}
}

func TestSubmitIntake_ServiceValidation(t *testing.T) {
	f := newPublicFixture()
	f.intake.err = domain.Validationf("client.firstName is required")

	rec := f.serve(httptest.NewRequest(http.MethodPost, "/booking-intake", strings.NewReader(intakeJSON)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "client.firstName is required", decodeError(t, rec).Error)
}

func TestViewBooking(t *testing.T) {
	f := newPublicFixture()
	f.links.identity = &domain.LinkIdentity{TokenID: "t-1", BookingRequestID: "b-1", Scopes: []domain.Scope{domain.ScopeView}}
	f.bookings.view = &domain.PublicBookingView{ID: "b-1", Status: domain.BookingInReview, Uploads: []domain.Upload{}}

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/booking/t-1.s3cret", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t-1.s3cret", f.links.gotToken)
	assert.Equal(t, "b-1", f.bookings.gotID)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestPublicRoutes_ScopeChecks(t *testing.T) {
	tests := []struct {
		name     string
		identity *domain.LinkIdentity
		method   string
		path     string
		want     int
	}{
		{
			name:   "unknown token",
			method: http.MethodGet,
			path:   "/booking/nope.nope",
			want:   http.StatusForbidden,
		},
		{
			name:     "view without VIEW scope",
			identity: &domain.LinkIdentity{TokenID: "t-1", BookingRequestID: "b-1", Scopes: []domain.Scope{domain.ScopeUpload}},
			method:   http.MethodGet,
			path:     "/booking/t-1.s",
			want:     http.StatusForbidden,
		},
		{
			name:     "upload without UPLOAD scope",
			identity: &domain.LinkIdentity{TokenID: "t-1", BookingRequestID: "b-1", Scopes: []domain.Scope{domain.ScopeView}},
			method:   http.MethodPost,
			path:     "/booking/t-1.s/uploads",
			want:     http.StatusForbidden,
		},
		{
			name:     "validate accepts any scope",
			identity: &domain.LinkIdentity{TokenID: "t-1", BookingRequestID: "b-1", Scopes: []domain.Scope{domain.ScopeIntakeContinue}},
			method:   http.MethodPost,
			path:     "/booking/t-1.s/validate",
			want:     http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPublicFixture()
			f.links.identity = tt.identity

			rec := f.serve(httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				assert.Equal(t, response.CodeAccessDenied, decodeError(t, rec).Code)
			}
		})
	}
}

func TestAddUploads(t *testing.T) {
	f := newPublicFixture()
	f.links.identity = &domain.LinkIdentity{TokenID: "t-1", BookingRequestID: "b-1", Scopes: []domain.Scope{domain.ScopeUpload}}

	body, ct := multipartBody(t, nil, part{field: "files[]", name: "ref.png", data: pngHeader})
	req := httptest.NewRequest(http.MethodPost, "/booking/t-1.s3cret/uploads", body)
	req.Header.Set("Content-Type", ct)

	rec := f.serve(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "b-1", f.uploads.gotIdentity.BookingRequestID)
	require.Len(t, f.uploads.gotFiles, 1)
	assert.Equal(t, "ref.png", f.uploads.gotFiles[0].Name)

	var out struct {
		Uploads []domain.Upload `json:"uploads"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out.Uploads, 1)
}

func TestAddUploads_UnsupportedMedia(t *testing.T) {
	f := newPublicFixture()
	f.links.identity = &domain.LinkIdentity{TokenID: "t-1", BookingRequestID: "b-1", Scopes: []domain.Scope{domain.ScopeUpload}}
	f.uploads.err = domain.ErrUnsupportedMedia

	body, ct := multipartBody(t, nil, part{field: "files[]", name: "notes.txt", data: []byte("hello")})
	req := httptest.NewRequest(http.MethodPost, "/booking/t-1.s3cret/uploads", body)
	req.Header.Set("Content-Type", ct)

	rec := f.serve(req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestAddUploads_RequiresMultipart(t *testing.T) {
	f := newPublicFixture()
	f.links.identity = &domain.LinkIdentity{TokenID: "t-1", BookingRequestID: "b-1", Scopes: []domain.Scope{domain.ScopeUpload}}

	req := httptest.NewRequest(http.MethodPost, "/booking/t-1.s3cret/uploads", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, f.serve(req).Code)
}
