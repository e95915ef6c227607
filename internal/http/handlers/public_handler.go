package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/diagnosis/inkstudio-bookings/internal/http/middleware"
	"github.com/diagnosis/inkstudio-bookings/internal/http/response"
	"github.com/diagnosis/inkstudio-bookings/internal/media"
	"github.com/diagnosis/inkstudio-bookings/internal/service"
	"github.com/diagnosis/inkstudio-bookings/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

type UploadLimits struct {
	MaxBytes int64
	MaxFiles int
}

type PublicHandler struct {
	Intake   service.IntakeService
	Bookings service.BookingService
	Uploads  service.UploadService
	Links    middleware.TokenValidator
	limits   UploadLimits
	throttle func(http.Handler) http.Handler
}

// NewPublicHandler wires the unauthenticated routes. throttle may be nil.
func NewPublicHandler(
	intake service.IntakeService,
	bookings service.BookingService,
	uploads service.UploadService,
	links middleware.TokenValidator,
	limits UploadLimits,
	throttle func(http.Handler) http.Handler,
) *PublicHandler {
	return &PublicHandler{
		Intake:   intake,
		Bookings: bookings,
		Uploads:  uploads,
		Links:    links,
		limits:   limits,
		throttle: throttle,
	}
}

func (h *PublicHandler) Routes() chi.Router {
	r := chi.NewRouter()
	if h.throttle != nil {
		r.Use(h.throttle)
	}

	r.Post("/booking-intake", h.submitIntake)
	r.Route("/booking/{token}", func(r chi.Router) {
		r.With(middleware.RequireLinkScope(h.Links, domain.ScopeView)).Get("/", h.viewBooking)
		r.With(middleware.RequireLinkScope(h.Links, domain.ScopeUpload)).Post("/uploads", h.addUploads)
		r.With(middleware.RequireLinkScope(h.Links, "")).Post("/validate", h.validate)
	})
	return r
}

// intakePayload is the wire shape of a booking submission. Dates arrive as
// strings and are converted before the service sees them.
type intakePayload struct {
	Client struct {
		domain.IntakeClient
		Birthday *string `json:"birthday"`
	} `json:"client"`
	BookingRequest     domain.IntakeBooking      `json:"bookingRequest"`
	MedicalDeclaration domain.MedicalDeclaration `json:"medicalDeclaration"`
	Consent            struct {
		domain.Consent
		SignedAt *string `json:"signedAt"`
	} `json:"consent"`
}

func (p *intakePayload) toIntake() (*domain.Intake, error) {
	birthday, err := parseDate("client.birthday", p.Client.Birthday)
	if err != nil {
		return nil, err
	}
	signedAt, err := parseDate("consent.signedAt", p.Consent.SignedAt)
	if err != nil {
		return nil, err
	}

	in := &domain.Intake{
		Client:             p.Client.IntakeClient,
		Booking:            p.BookingRequest,
		MedicalDeclaration: p.MedicalDeclaration,
		Consent:            p.Consent.Consent,
	}
	in.Client.Birthday = birthday
	in.Consent.SignedAt = signedAt
	return in, nil
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

func (h *PublicHandler) submitIntake(w http.ResponseWriter, r *http.Request) {
	var (
		payload intakePayload
		files   []media.File
	)

	if isMultipart(r) {
		form, err := h.parseMultipart(w, r)
		if err != nil {
			response.FromError(r.Context(), w, err)
			return
		}
		defer form.RemoveAll()

		raw := form.Value["payload"]
		if len(raw) == 0 || strings.TrimSpace(raw[0]) == "" {
			response.BadRequest(w, "payload field is required")
			return
		}
		dec := json.NewDecoder(strings.NewReader(raw[0]))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&payload); err != nil {
			response.BadRequest(w, fmt.Sprintf("invalid payload json: %s", err.Error()))
			return
		}

		files, err = h.readFiles(form, "files", "files[]")
		if err != nil {
			response.FromError(r.Context(), w, err)
			return
		}
	} else if err := decodeJSON(w, r, &payload); err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	applyTracking(r, &payload.BookingRequest)

	in, err := payload.toIntake()
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	res, err := h.Intake.Submit(r.Context(), in, files, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, res)
}

// applyTracking fills attribution fields the payload left empty from the
// query string and request headers.
func applyTracking(r *http.Request, b *domain.IntakeBooking) {
	q := r.URL.Query()
	fill := func(dst **string, candidates ...string) {
		if *dst != nil && strings.TrimSpace(**dst) != "" {
			return
		}
		for _, c := range candidates {
			if c = strings.TrimSpace(c); c != "" {
				v := c
				*dst = &v
				return
			}
		}
	}

	fill(&b.UTMCampaign, q.Get("utm_campaign"))
	fill(&b.UTMAdset, q.Get("utm_adset"))
	fill(&b.UTMAd, q.Get("utm_ad"))
	fill(&b.Referrer, r.Header.Get("Referer"))
	fill(&b.LandingPath, q.Get("landingPath"), r.Header.Get("X-Landing-Path"))

	if b.Source == "" {
		if s := strings.TrimSpace(q.Get("source")); s != "" {
			b.Source = domain.IntakeSource(strings.ToUpper(s))
		}
	}
}

func (h *PublicHandler) viewBooking(w http.ResponseWriter, r *http.Request) {
	id := middleware.Identity(r)
	view, err := h.Bookings.PublicView(r.Context(), id.BookingRequestID)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	response.WriteJSON(w, http.StatusOK, view)
}

func (h *PublicHandler) addUploads(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		response.BadRequest(w, "expected multipart/form-data")
		return
	}
	form, err := h.parseMultipart(w, r)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	defer form.RemoveAll()

	files, err := h.readFiles(form, "files[]", "files")
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	uploads, err := h.Uploads.AddUploads(r.Context(), *middleware.Identity(r), files)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, map[string]any{"uploads": uploads})
}

func (h *PublicHandler) validate(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, middleware.Identity(r))
}

func (h *PublicHandler) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	limit := h.limits.MaxBytes*int64(h.limits.MaxFiles) + maxJSONBody
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		logger.WarnContext(r.Context(), "Multipart parse failed", "error", err)
		return nil, domain.Validationf("request body is not valid multipart or exceeds %d bytes", limit)
	}
	return r.MultipartForm, nil
}

// readFiles collects file parts from the first field name that has any.
func (h *PublicHandler) readFiles(form *multipart.Form, fields ...string) ([]media.File, error) {
	var headers []*multipart.FileHeader
	for _, f := range fields {
		if hs := form.File[f]; len(hs) > 0 {
			headers = hs
			break
		}
	}
	if len(headers) > h.limits.MaxFiles {
		return nil, domain.Validationf("at most %d files per request", h.limits.MaxFiles)
	}

	out := make([]media.File, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > h.limits.MaxBytes {
			return nil, domain.Validationf("%s exceeds %d bytes", fh.Filename, h.limits.MaxBytes)
		}
		data, err := readPart(fh, h.limits.MaxBytes)
		if err != nil {
			return nil, err
		}
		out = append(out, media.File{Name: fh.Filename, Data: data})
	}
	return out, nil
}

func readPart(fh *multipart.FileHeader, max int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	if int64(len(data)) > max {
		return nil, domain.Validationf("%s exceeds %d bytes", fh.Filename, max)
	}
	return data, nil
}
