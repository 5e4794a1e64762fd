package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/embla/internal/apperrors"
	"github.com/nkiryanov/embla/internal/models"
)

const (
	defaultAccessTokenTTL  = 60 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 24 * time.Hour
)

// JWT payload for both access and refresh tokens
// 'token_type' keeps one kind from being accepted in place of the other
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
	UserID    int64  `json:"user_id"`
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	// Secret key to sign tokens
	key string

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	// Clock, replaced in tests
	now func() time.Time
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	// Only MAC algorithms make sense with a shared secret key
	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing method %q", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		key:        cfg.SecretKey,
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

// Issue access and refresh tokens for the user
func (m *TokenManager) GeneratePair(user models.User) (models.TokenPair, error) {
	var pair models.TokenPair

	access, err := m.issue(user.ID, models.TokenTypeAccess, m.accessTTL)
	if err != nil {
		return pair, err
	}

	refresh, err := m.issue(user.ID, models.TokenTypeRefresh, m.refreshTTL)
	if err != nil {
		return pair, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Validate refresh token and issue new access token for the same user
// The refresh token itself stays valid until it expires
func (m *TokenManager) RefreshAccess(refresh string) (models.IssuedToken, error) {
	claims, err := m.Parse(refresh, models.TokenTypeRefresh)
	if err != nil {
		return models.IssuedToken{}, err
	}

	return m.issue(claims.UserID, models.TokenTypeAccess, m.accessTTL)
}

// Parse and validate access token
func (m *TokenManager) ParseAccess(access string) (*Claims, error) {
	return m.Parse(access, models.TokenTypeAccess)
}

// Validate token of any known type
func (m *TokenManager) Verify(value string) (*Claims, error) {
	return m.Parse(value, "")
}

// Parse and validate token of the expected type, empty tokenType accepts both
// Any failure is reported as apperrors.ErrInvalidToken
func (m *TokenManager) Parse(value string, tokenType string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		value,
		claims,
		func(t *jwt.Token) (any, error) {
			return []byte(m.key), nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidToken, err)
	}

	switch {
	case tokenType == "" && (claims.TokenType == models.TokenTypeAccess || claims.TokenType == models.TokenTypeRefresh):
	case tokenType != "" && claims.TokenType == tokenType:
	default:
		return nil, fmt.Errorf("%w: unexpected token type %q", apperrors.ErrInvalidToken, claims.TokenType)
	}

	return claims, nil
}

func (m *TokenManager) issue(userID int64, tokenType string, ttl time.Duration) (models.IssuedToken, error) {
	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(
		m.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			TokenType: tokenType,
			UserID:    userID,
		},
	)

	value, err := token.SignedString([]byte(m.key))
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing %s token. Err: %w", tokenType, err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}
