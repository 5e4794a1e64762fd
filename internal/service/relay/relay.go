// Package relay moves JWT tokens between response bodies and httpOnly cookies.
//
// It wraps token issuer operations: on the way in, tokens found in cookies
// are injected into the payload; on the way out, tokens in a successful
// response body are replaced with cookies and a status message. Responses
// other than 200 OK pass through untouched and never set cookies.
package relay

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"time"

	"github.com/nkiryanov/embla/internal/service/issuer"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
)

const (
	defaultAccessMaxAge  = 60 * time.Minute
	defaultRefreshMaxAge = 24 * time.Hour
	defaultCookiePath    = "/"
)

const (
	msgLoginSuccessful = "Login successful"
	msgTokenRefreshed  = "Token refreshed"
	msgLoggedOut       = "Logged out"
)

type Config struct {
	// Debug mode drops 'Secure' cookie flag so cookies work over plain http
	Debug bool

	// Cookie lifetimes, defaults are used if not set
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration

	// Cookie scope, path defaults to '/'
	Path   string
	Domain string
}

type tokenIssuer interface {
	Obtain(ctx context.Context, p issuer.Payload) (issuer.Response, error)
	Refresh(ctx context.Context, p issuer.Payload) (issuer.Response, error)
	Verify(ctx context.Context, p issuer.Payload) (issuer.Response, error)
}

// Issuer response after relay processing
// Cookies have to be set to http response before body is written
type Result struct {
	Status  int
	Data    map[string]any
	Cookies []*http.Cookie
}

type Relay struct {
	issuer tokenIssuer

	debug         bool
	accessMaxAge  time.Duration
	refreshMaxAge time.Duration
	path          string
	domain        string
}

func New(tokens tokenIssuer, cfg Config) (*Relay, error) {
	if tokens == nil {
		return nil, errors.New("token issuer must not be nil")
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessMaxAge, defaultAccessMaxAge)
	setDefaultDuration(&cfg.RefreshMaxAge, defaultRefreshMaxAge)

	if cfg.Path == "" {
		cfg.Path = defaultCookiePath
	}

	return &Relay{
		issuer:        tokens,
		debug:         cfg.Debug,
		accessMaxAge:  cfg.AccessMaxAge,
		refreshMaxAge: cfg.RefreshMaxAge,
		path:          cfg.Path,
		domain:        cfg.Domain,
	}, nil
}

// Obtain token pair and move both tokens to cookies
func (r *Relay) Obtain(ctx context.Context, p issuer.Payload) (Result, error) {
	resp, err := r.issuer.Obtain(ctx, p)
	if err != nil {
		return Result{}, err
	}

	res := passThrough(resp)
	if res.Status != http.StatusOK {
		return res, nil
	}

	r.moveToCookie(&res, issuer.KeyAccess, AccessCookieName, r.accessMaxAge)
	r.moveToCookie(&res, issuer.KeyRefresh, RefreshCookieName, r.refreshMaxAge)
	res.Data[issuer.KeyDetail] = msgLoginSuccessful

	return res, nil
}

// Refresh access token using refresh cookie if present
// Cookie value overrides the one from payload
func (r *Relay) Refresh(ctx context.Context, req *http.Request, p issuer.Payload) (Result, error) {
	p = withCookie(req, p, RefreshCookieName, issuer.KeyRefresh)

	resp, err := r.issuer.Refresh(ctx, p)
	if err != nil {
		return Result{}, err
	}

	res := passThrough(resp)
	if res.Status != http.StatusOK {
		return res, nil
	}

	r.moveToCookie(&res, issuer.KeyAccess, AccessCookieName, r.accessMaxAge)
	res.Data[issuer.KeyDetail] = msgTokenRefreshed

	return res, nil
}

// Verify access cookie if present, otherwise the token from payload
// Issuer response is returned as is
func (r *Relay) Verify(ctx context.Context, req *http.Request, p issuer.Payload) (Result, error) {
	p = withCookie(req, p, AccessCookieName, issuer.KeyToken)

	resp, err := r.issuer.Verify(ctx, p)
	if err != nil {
		return Result{}, err
	}

	return passThrough(resp), nil
}

// Delete both token cookies, present or not
// Tokens themselves stay valid until they expire
func (r *Relay) Logout() Result {
	return Result{
		Status: http.StatusOK,
		Data:   map[string]any{issuer.KeyDetail: msgLoggedOut},
		Cookies: []*http.Cookie{
			r.expiredCookie(AccessCookieName),
			r.expiredCookie(RefreshCookieName),
		},
	}
}

// Take token from response body and set it as cookie
// The key is removed from body even if it is empty
func (r *Relay) moveToCookie(res *Result, key string, cookieName string, maxAge time.Duration) {
	value, _ := res.Data[key].(string)
	delete(res.Data, key)

	if value == "" {
		return
	}

	res.Cookies = append(res.Cookies, r.cookie(cookieName, value, maxAge))
}

func (r *Relay) cookie(name string, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     r.path,
		Domain:   r.domain,
		MaxAge:   int(maxAge.Seconds()),
		Secure:   !r.debug,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (r *Relay) expiredCookie(name string) *http.Cookie {
	c := r.cookie(name, "", 0)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}

// Copy response so issuer data is never modified
func passThrough(resp issuer.Response) Result {
	data := maps.Clone(resp.Data)
	if data == nil {
		data = make(map[string]any)
	}

	return Result{Status: resp.Status, Data: data}
}

// Return payload copy with cookie value set under the key
// Payload is returned unchanged if there is no such cookie
func withCookie(req *http.Request, p issuer.Payload, cookieName string, key string) issuer.Payload {
	cookie, err := req.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return p
	}

	out := make(issuer.Payload, len(p)+1)
	maps.Copy(out, p)
	out[key] = cookie.Value

	return out
}
