package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/diagnosis/inkstudio-bookings/internal/http/response"
	"github.com/diagnosis/inkstudio-bookings/pkg/auth"
	"github.com/diagnosis/inkstudio-bookings/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type ctxKey string

const (
	CtxClaims   ctxKey = "claims"
	CtxIdentity ctxKey = "link_identity"
)

// RequireAdmin accepts only a valid admin bearer token.
func RequireAdmin(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				response.Unauthorized(w, "invalid authorization header")
				return
			}
			claims, err := auth.Parse(strings.TrimPrefix(authz, "Bearer "), secret)
			if err != nil || claims.Role != auth.RoleAdmin {
				response.Unauthorized(w, "invalid authorization token")
				return
			}
			ctx := context.WithValue(r.Context(), CtxClaims, claims)
			ctx = context.WithValue(ctx, logger.AdminIDKey, claims.Sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func Claims(r *http.Request) *auth.Claims {
	if c, ok := r.Context().Value(CtxClaims).(*auth.Claims); ok {
		return c
	}
	return nil
}

// TokenValidator is satisfied by service.LinkService.
type TokenValidator interface {
	ValidateToken(ctx context.Context, compound string) (*domain.LinkIdentity, error)
}

// RequireLinkScope validates the compound token in the {token} URL parameter
// and requires scope on it. An empty scope accepts any valid token. Unknown
// tokens get the same answer as revoked, expired or wrong-secret ones.
func RequireLinkScope(v TokenValidator, scope domain.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := v.ValidateToken(r.Context(), chi.URLParam(r, "token"))
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrNotFound) || domain.IsAccessDenied(err):
				response.AccessDenied(w)
				return
			default:
				response.FromError(r.Context(), w, err)
				return
			}

			if scope != "" && !id.Allows(scope) {
				logger.WarnContext(r.Context(), "Booking link lacks scope", "token_id", id.TokenID, "scope", scope)
				response.AccessDenied(w)
				return
			}

			ctx := context.WithValue(r.Context(), CtxIdentity, id)
			ctx = context.WithValue(ctx, logger.TokenIDKey, id.TokenID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func Identity(r *http.Request) *domain.LinkIdentity {
	if id, ok := r.Context().Value(CtxIdentity).(*domain.LinkIdentity); ok {
		return id
	}
	return nil
}
