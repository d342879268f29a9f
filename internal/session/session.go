// Package session carries the identity of the connected user in a signed
// cookie.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the cookie holding the session token
const CookieName = "billed_session"

const (
	TypeEmployee = "Employee"
	TypeAdmin    = "Admin"
)

// ErrNoSession is returned when a request carries no usable session
var ErrNoSession = errors.New("no session")

// Session identifies the connected user
type Session struct {
	Type  string `json:"type"`
	Email string `json:"email"`
}

type claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 session tokens
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	secure bool
}

// NewTokens creates a Tokens signing with secret. Tokens expire after ttl.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session lifetime must be positive")
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock returns a copy of t using now as its clock
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	c := *t
	c.now = now
	return &c
}

// TTL returns the lifetime of issued tokens
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

// SecureCookies marks issued cookies Secure (HTTPS deployments)
func (t *Tokens) SecureCookies(secure bool) {
	t.secure = secure
}

// Issue signs a token for s
func (t *Tokens) Issue(s Session) (string, error) {
	if strings.TrimSpace(s.Email) == "" {
		return "", fmt.Errorf("issuing session: email is required")
	}
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Type: s.Type,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing session: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its session
func (t *Tokens) Parse(token string) (Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return Session{}, fmt.Errorf("parsing session: %w", err)
	}
	if c.Subject == "" {
		return Session{}, fmt.Errorf("parsing session: %w", ErrNoSession)
	}
	return Session{Type: c.Type, Email: c.Subject}, nil
}

// SetCookie writes the session cookie
func (t *Tokens) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(t.ttl.Seconds()),
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie
func (t *Tokens) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest reads the session of a request
func (t *Tokens) FromRequest(r *http.Request) (Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return Session{}, ErrNoSession
	}
	return t.Parse(cookie.Value)
}
