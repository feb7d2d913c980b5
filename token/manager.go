// Package token mints and validates the signed access/refresh token pairs
// that carry a campus identity between requests. Access and refresh tokens
// are signed with independent secrets and discriminated by an embedded
// tokenType claim, so neither kind can ever validate where the other is
// expected.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

var (
	// ErrInvalid is the single validation outcome for malformed, forged,
	// wrong-type, and unknown-role tokens. Callers must not learn which.
	ErrInvalid = errors.New("invalid token")
	// ErrExpired reports a token that verified but is past its expiry. It is
	// distinguished from ErrInvalid only to enable client-side silent refresh.
	ErrExpired = errors.New("token expired")
)

// Config holds the signing material and lifetimes for a [Manager]. Secrets
// are mandatory: a Manager refuses construction without both, making missing
// configuration a startup fault rather than a per-request one.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration // default 40 minutes
	RefreshTTL    time.Duration // default 15 days
	Issuer        string
	Leeway        time.Duration
	// AllowedRoles is the closed set of role claims accepted at validation.
	AllowedRoles []string
}

// Claims is the self-contained assertion embedded in both token kinds.
type Claims struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"tokenType"`
	jwt.RegisteredClaims
}

// Pair is the derived access/refresh value object. It is never persisted.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Manager signs and verifies token pairs. It is immutable after construction
// and safe for concurrent use.
type Manager struct {
	config Config
	roles  map[string]struct{}
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token secrets are not configured")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 40 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 15 * 24 * time.Hour
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.AllowedRoles) == 0 {
		cfg.AllowedRoles = []string{"student", "alumni"}
	}

	roles := make(map[string]struct{}, len(cfg.AllowedRoles))
	for _, r := range cfg.AllowedRoles {
		if r == "" {
			return nil, errors.New("allowed roles contain an empty role")
		}
		roles[r] = struct{}{}
	}

	return &Manager{config: cfg, roles: roles}, nil
}

// IssuePair mints an access token and a refresh token for the identity.
// Each carries the same id/email/role payload; they differ in tokenType,
// lifetime, and signing secret.
func (m *Manager) IssuePair(id, email, role string) (Pair, error) {
	if _, ok := m.roles[role]; !ok {
		return Pair{}, errors.New("unknown role")
	}

	access, err := m.sign(id, email, role, typeAccess, m.config.AccessTTL, m.config.AccessSecret)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := m.sign(id, email, role, typeRefresh, m.config.RefreshTTL, m.config.RefreshSecret)
	if err != nil {
		return Pair{}, err
	}

	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// ParseAccess verifies an access token: signature, expiry, tokenType, role.
func (m *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, typeAccess, m.config.AccessSecret)
}

// ParseRefresh verifies a refresh token: signature, expiry, tokenType, role.
func (m *Manager) ParseRefresh(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, typeRefresh, m.config.RefreshSecret)
}

// AccessTTL returns the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

func (m *Manager) sign(id, email, role, tokenType string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	claims := Claims{
		ID:        id,
		Email:     email,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *Manager) parse(tokenStr, wantType string, secret []byte) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.TokenType != wantType {
		return nil, ErrInvalid
	}
	if _, ok := m.roles[claims.Role]; !ok {
		return nil, ErrInvalid
	}

	return claims, nil
}
