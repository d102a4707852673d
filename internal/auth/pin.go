// Package auth implements the portal's single-identity gate: a shared PIN
// exchanged for a signed, expiring session cookie.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidPIN is returned when a submitted PIN does not match.
var ErrInvalidPIN = errors.New("invalid PIN")

// PINVerifier checks submitted PINs against the configured value, which is
// either the PIN itself or a bcrypt hash of it.
type PINVerifier struct {
	configured []byte
	hashed     bool
}

// NewPINVerifier creates a verifier for configured.
func NewPINVerifier(configured string) *PINVerifier {
	return &PINVerifier{
		configured: []byte(configured),
		hashed:     isBcryptHash(configured),
	}
}

// Verify returns nil when pin matches, ErrInvalidPIN otherwise.
func (v *PINVerifier) Verify(pin string) error {
	if pin == "" || len(v.configured) == 0 {
		return ErrInvalidPIN
	}
	if v.hashed {
		if err := bcrypt.CompareHashAndPassword(v.configured, []byte(pin)); err != nil {
			return ErrInvalidPIN
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(pin), v.configured) != 1 {
		return ErrInvalidPIN
	}
	return nil
}

// HashPIN returns a bcrypt hash suitable for AUTH_PIN.
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func isBcryptHash(s string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
