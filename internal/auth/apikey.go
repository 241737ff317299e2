package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt work factor used by HashAPIKey.
const DefaultHashCost = 12

var ErrInvalidAPIKey = errors.New("auth: invalid API key")

// APIKeyVerifier checks the shared API key presented to the token endpoint.
// The key is configured either as a bcrypt hash (preferred) or in plain
// text; with neither set every key is accepted.
type APIKeyVerifier struct {
	plain []byte
	hash  []byte
}

func NewAPIKeyVerifier(plain, hash string) *APIKeyVerifier {
	v := &APIKeyVerifier{}
	if hash != "" {
		v.hash = []byte(hash)
	} else if plain != "" {
		v.plain = []byte(plain)
	}
	return v
}

// Required reports whether callers must present a key.
func (v *APIKeyVerifier) Required() bool {
	return len(v.hash) > 0 || len(v.plain) > 0
}

// Verify returns nil when candidate matches the configured key. Both
// comparisons run in constant time.
func (v *APIKeyVerifier) Verify(candidate string) error {
	switch {
	case len(v.hash) > 0:
		err := bcrypt.CompareHashAndPassword(v.hash, []byte(candidate))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidAPIKey
		}
		if err != nil {
			return fmt.Errorf("auth: comparing API key hash: %w", err)
		}
		return nil
	case len(v.plain) > 0:
		if subtle.ConstantTimeCompare(v.plain, []byte(candidate)) != 1 {
			return ErrInvalidAPIKey
		}
		return nil
	default:
		return nil
	}
}

// HashAPIKey produces the value for AUTH_API_KEY_HASH. Keys longer than 72
// bytes are rejected because bcrypt would silently truncate them.
func HashAPIKey(key string, cost int) (string, error) {
	if key == "" {
		return "", errors.New("auth: API key must not be empty")
	}
	if len(key) > 72 {
		return "", errors.New("auth: API key must be 72 bytes or fewer")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing API key: %w", err)
	}
	return string(hashed), nil
}
