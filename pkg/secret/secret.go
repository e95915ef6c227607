// Package secret generates opaque bearer secrets and stores them as
// peppered argon2id hashes.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/alexedwards/argon2id"
)

const (
	// DefaultLength is the number of random bytes in a generated secret (256 bits).
	DefaultLength = 32

	MinPepperLength = 32
)

var ErrPepperTooShort = fmt.Errorf("pepper must be at least %d characters", MinPepperLength)

// DefaultParams: ~19 MiB memory, 2 passes, single lane.
var DefaultParams = &argon2id.Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Generate returns n random bytes encoded with the unpadded URL-safe base64
// alphabet, so the result never contains '+', '/', '=' or '.'.
func Generate(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("secret length must be positive")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hasher hashes and verifies secrets with a process-wide pepper. It holds no
// mutable state and is safe for concurrent use.
type Hasher struct {
	pepper string
	params *argon2id.Params
	decoy  string
}

func NewHasher(pepper string, params *argon2id.Params) (*Hasher, error) {
	if utf8.RuneCountInString(pepper) < MinPepperLength {
		return nil, ErrPepperTooShort
	}
	if params == nil {
		params = DefaultParams
	}

	h := &Hasher{pepper: pepper, params: params}

	filler, err := Generate(DefaultLength)
	if err != nil {
		return nil, err
	}
	if h.decoy, err = h.Hash(filler); err != nil {
		return nil, fmt.Errorf("prepare decoy hash: %w", err)
	}
	return h, nil
}

// Hash returns a self-describing argon2id hash of secret+pepper.
func (h *Hasher) Hash(secret string) (string, error) {
	return argon2id.CreateHash(h.peppered(secret), h.params)
}

// Verify reports whether secret matches hash. Comparison is constant time.
func (h *Hasher) Verify(secret, hash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(h.peppered(secret), hash)
}

// Burn performs a verification against a throwaway hash and discards the
// result. Rejection paths that never reach Verify call it so they take
// roughly as long as a real secret check.
func (h *Hasher) Burn(secret string) {
	_, _ = argon2id.ComparePasswordAndHash(h.peppered(secret), h.decoy)
}

func (h *Hasher) peppered(secret string) string {
	return secret + ":" + h.pepper
}
