package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
)

const maxJSONBody = 1 << 20

// decodeJSON reads a single JSON object from the body. Unknown fields are
// rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Validationf("request body is empty")
		}
		return domain.Validationf("invalid json: %s", err.Error())
	}
	return nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, domain.Validationf("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", field)
	}
	return &t, nil
}
