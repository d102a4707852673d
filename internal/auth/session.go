package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// CookieName is the session cookie set after a successful login.
	CookieName = "uw_auth"

	// DefaultTTL is how long a session stays valid.
	DefaultTTL = 7 * 24 * time.Hour

	subject = "neil"
	issuer  = "uw-onboarding"
)

// ErrInvalidSession is returned for missing, malformed, forged or expired sessions.
var ErrInvalidSession = errors.New("invalid session")

// Sessions issues and verifies HS256-signed session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// SessionOption configures Sessions.
type SessionOption func(*Sessions)

// WithClock overrides the time source used to issue and verify tokens.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Sessions) { s.now = now }
}

// NewSessions creates a Sessions signer. A non-positive ttl uses DefaultTTL.
func NewSessions(secret string, ttl time.Duration, opts ...SessionOption) (*Sessions, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the session lifetime.
func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// Issue signs a new session token and returns it with its expiry.
func (s *Sessions) Issue() (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expires, nil
}

// Verify checks signature, expiry and subject of token.
func (s *Sessions) Verify(token string) error {
	if token == "" {
		return ErrInvalidSession
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(subject),
		jwt.WithTimeFunc(s.now),
	)
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !parsed.Valid {
		return ErrInvalidSession
	}
	return nil
}

// VerifyRequest checks the session cookie on r.
func (s *Sessions) VerifyRequest(r *http.Request) error {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ErrInvalidSession
	}
	return s.Verify(c.Value)
}

// Cookie builds the HTTP-only session cookie for token.
func (s *Sessions) Cookie(token string, expires time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(s.ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie returns a cookie that removes the session.
func ClearCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
