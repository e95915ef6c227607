package domain

import (
	"strings"
	"time"
)

type Scope string

const (
	ScopeIntakeContinue Scope = "INTAKE_CONTINUE"
	ScopeUpload         Scope = "UPLOAD"
	ScopeView           Scope = "VIEW"
)

func ParseScope(s string) (Scope, error) {
	switch sc := Scope(s); sc {
	case ScopeIntakeContinue, ScopeUpload, ScopeView:
		return sc, nil
	default:
		return "", Validationf("unknown scope %q", s)
	}
}

// ParseScopes parses a non-empty scope list, dropping duplicates and keeping
// the first-seen order.
func ParseScopes(raw []string) ([]Scope, error) {
	if len(raw) == 0 {
		return nil, Validationf("scopes must not be empty")
	}
	out := make([]Scope, 0, len(raw))
	seen := make(map[Scope]bool, len(raw))
	for _, r := range raw {
		sc, err := ParseScope(r)
		if err != nil {
			return nil, err
		}
		if !seen[sc] {
			seen[sc] = true
			out = append(out, sc)
		}
	}
	return out, nil
}

func HasScope(scopes []Scope, want Scope) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

func ScopeStrings(scopes []Scope) []string {
	out := make([]string, len(scopes))
	for i, s := range scopes {
		out[i] = string(s)
	}
	return out
}

type TokenStatus string

const (
	TokenActive   TokenStatus = "ACTIVE"
	TokenRevoked  TokenStatus = "REVOKED"
	TokenConsumed TokenStatus = "CONSUMED"
)

func ParseTokenStatus(s string) (TokenStatus, error) {
	switch st := TokenStatus(s); st {
	case TokenActive, TokenRevoked, TokenConsumed:
		return st, nil
	default:
		return "", Validationf("unknown token status %q", s)
	}
}

// BookingLinkToken grants scoped access to one booking request. Rows are never
// deleted; revocation flips Status.
type BookingLinkToken struct {
	ID               string      `json:"id"`
	BookingRequestID string      `json:"bookingRequestId"`
	SecretHash       string      `json:"-"`
	Scopes           []Scope     `json:"scopes"`
	Status           TokenStatus `json:"status"`
	ExpiresAt        time.Time   `json:"expiresAt"`
	LastUsedAt       *time.Time  `json:"lastUsedAt,omitempty"`
	UseCount         int         `json:"useCount"`
	CreatedByAdminID *string     `json:"createdByAdminId,omitempty"`
	RevokedAt        *time.Time  `json:"revokedAt,omitempty"`
	RevokeReason     *string     `json:"revokeReason,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// IsExpired treats expiresAt == now as expired.
func (t *BookingLinkToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

func (t *BookingLinkToken) IsActive() bool {
	return t.Status == TokenActive
}

// NewLinkToken is the row written at issuance.
type NewLinkToken struct {
	BookingRequestID string
	SecretHash       string
	Scopes           []Scope
	ExpiresAt        time.Time
	CreatedByAdminID *string
}

type TokenUsage struct {
	LastUsedAt        time.Time
	UseCountIncrement int
}

type TokenRevocation struct {
	RevokedAt time.Time
	Reason    *string
}

const compoundSeparator = "."

// CompoundToken is the "<tokenId>.<secret>" string handed to a bearer.
type CompoundToken struct {
	TokenID string
	Secret  string
}

// ParseCompoundToken splits raw on the first '.'; both halves must be non-empty.
func ParseCompoundToken(raw string) (CompoundToken, error) {
	id, sec, ok := strings.Cut(raw, compoundSeparator)
	if !ok || id == "" || sec == "" {
		return CompoundToken{}, Validationf("invalid token format")
	}
	return CompoundToken{TokenID: id, Secret: sec}, nil
}

func (c CompoundToken) String() string {
	return c.TokenID + compoundSeparator + c.Secret
}

type CreateLinkRequest struct {
	BookingRequestID string
	Scopes           []Scope
	ExpiresAt        time.Time
	CreatedByAdminID *string
}

// IssuedLink is returned once, at issuance. URL embeds the raw secret.
type IssuedLink struct {
	BookingRequestID string    `json:"bookingRequestId"`
	URL              string    `json:"url"`
	TokenID          string    `json:"tokenId"`
	ExpiresAt        time.Time `json:"expiresAt"`
	Scopes           []Scope   `json:"scopes"`
}

// LinkIdentity is what a validated bearer may act as.
type LinkIdentity struct {
	TokenID          string  `json:"tokenId"`
	BookingRequestID string  `json:"bookingRequestId"`
	Scopes           []Scope `json:"scopes"`
}

func (i LinkIdentity) Allows(s Scope) bool {
	return HasScope(i.Scopes, s)
}
