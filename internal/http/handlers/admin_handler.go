package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/diagnosis/inkstudio-bookings/internal/http/middleware"
	"github.com/diagnosis/inkstudio-bookings/internal/http/response"
	"github.com/diagnosis/inkstudio-bookings/internal/service"
	"github.com/go-chi/chi/v5"
)

type AdminHandler struct {
	Auth      service.AuthService
	Bookings  service.BookingService
	Links     service.LinkService
	jwtSecret string
}

func NewAdminHandler(auth service.AuthService, bookings service.BookingService, links service.LinkService, jwtSecret string) *AdminHandler {
	return &AdminHandler{Auth: auth, Bookings: bookings, Links: links, jwtSecret: jwtSecret}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/auth/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.jwtSecret))
		r.Get("/bookings", h.listBookings)
		r.Get("/bookings/{id}", h.getBooking)
		r.Patch("/bookings/{id}/status", h.updateStatus)
		r.Get("/bookings/{id}/links", h.listLinks)
		r.Post("/bookings/{id}/links", h.createLink)
		r.Post("/booking-links/{tokenId}/revoke", h.revokeLink)
	})
	return r
}

func (h *AdminHandler) login(w http.ResponseWriter, r *http.Request) {
	var in domain.LoginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	out, err := h.Auth.Login(r.Context(), &in)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, out)
}

func parseBookingFilter(r *http.Request) (domain.BookingFilter, error) {
	q := r.URL.Query()
	f := domain.BookingFilter{Query: strings.TrimSpace(q.Get("q"))}

	if s := q.Get("status"); s != "" {
		st, err := domain.ParseBookingStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}
	for name, dst := range map[string]*int{"page": &f.Page, "limit": &f.Limit} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, domain.Validationf("%s must be an integer", name)
		}
		*dst = n
	}
	f.Normalize()
	return f, nil
}

func (h *AdminHandler) listBookings(w http.ResponseWriter, r *http.Request) {
	f, err := parseBookingFilter(r)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	page, err := h.Bookings.List(r.Context(), f)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, page)
}

func (h *AdminHandler) getBooking(w http.ResponseWriter, r *http.Request) {
	d, err := h.Bookings.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, d)
}

func (h *AdminHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status             string  `json:"status"`
		AdminNotes         *string `json:"adminNotes"`
		InternalStatusNote *string `json:"internalStatusNote"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	st, err := domain.ParseBookingStatus(in.Status)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	claims := middleware.Claims(r)
	b, err := h.Bookings.UpdateStatus(r.Context(), chi.URLParam(r, "id"), claims.Sub, domain.StatusUpdate{
		Status:             st,
		AdminNotes:         in.AdminNotes,
		InternalStatusNote: in.InternalStatusNote,
	})
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, b)
}

func (h *AdminHandler) createLink(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ExpiresAt string   `json:"expiresAt"`
		Scopes    []string `json:"scopes"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	expiresAt, err := time.Parse(time.RFC3339, in.ExpiresAt)
	if err != nil {
		response.BadRequest(w, "expiresAt must be an RFC 3339 timestamp")
		return
	}
	scopes, err := domain.ParseScopes(in.Scopes)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	adminID := middleware.Claims(r).Sub
	link, err := h.Links.CreateToken(r.Context(), domain.CreateLinkRequest{
		BookingRequestID: chi.URLParam(r, "id"),
		Scopes:           scopes,
		ExpiresAt:        expiresAt,
		CreatedByAdminID: &adminID,
	})
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	response.WriteJSON(w, http.StatusCreated, link)
}

func (h *AdminHandler) listLinks(w http.ResponseWriter, r *http.Request) {
	toks, err := h.Links.ListTokens(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"items": toks})
}

func (h *AdminHandler) revokeLink(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Reason *string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &in); err != nil {
			response.FromError(r.Context(), w, err)
			return
		}
	}
	tok, err := h.Links.RevokeToken(r.Context(), chi.URLParam(r, "tokenId"), in.Reason)
	if errors.Is(err, domain.ErrTokenInactive) {
		response.Conflict(w, "link is already revoked or consumed")
		return
	}
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, tok)
}
