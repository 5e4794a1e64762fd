// Package csrf issues the CSRF cookie that browser clients echo back in a header.
//
// The cookie is readable by scripts on purpose, unlike the token cookies.
package csrf

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"
)

const (
	CookieName = "csrftoken"

	tokenBytes    = 32
	defaultMaxAge = 365 * 24 * time.Hour
	defaultPath   = "/"
)

type Config struct {
	// Debug disables Secure flag so cookie works over plain http
	Debug bool

	MaxAge time.Duration
	Path   string
	Domain string
}

type Issuer struct {
	secure bool
	maxAge time.Duration
	path   string
	domain string
}

func New(cfg Config) *Issuer {
	if cfg.MaxAge == 0 {
		cfg.MaxAge = defaultMaxAge
	}
	if cfg.Path == "" {
		cfg.Path = defaultPath
	}

	return &Issuer{
		secure: !cfg.Debug,
		maxAge: cfg.MaxAge,
		path:   cfg.Path,
		domain: cfg.Domain,
	}
}

// Ensure sets CSRF cookie on response and returns its value
// Well-formed token from request cookie is reused, otherwise a new one generated.
func (i *Issuer) Ensure(w http.ResponseWriter, r *http.Request) (string, error) {
	token := ""
	if c, err := r.Cookie(CookieName); err == nil && wellFormed(c.Value) {
		token = c.Value
	}

	if token == "" {
		var err error
		token, err = generate()
		if err != nil {
			return "", err
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     i.path,
		Domain:   i.domain,
		MaxAge:   int(i.maxAge.Seconds()),
		Secure:   i.secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})

	return token, nil
}

func generate() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("can't generate csrf token. Err: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func wellFormed(token string) bool {
	if len(token) != hex.EncodedLen(tokenBytes) {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
