// Package token issues and verifies the HS256 bearer tokens handed out at
// login. Tokens are self-contained: the server keeps no session state and a
// token is valid exactly when its signature checks out and it has not expired.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/99minutos/account-service/internal/core/domain"
)

// DefaultTTL is the lifetime of a token when none is configured.
const DefaultTTL = 2 * time.Hour

var ErrEmptySecret = errors.New("token: signing secret must not be empty")

// Identity is the set of facts about a user embedded in a token.
type Identity struct {
	ID               string
	Name             string
	Role             string
	PermittedSystems []string
}

// Claims is the decoded content of a verified token.
type Claims struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Role             string   `json:"role"`
	PermittedSystems []string `json:"permitted_systems"`
	jwt.RegisteredClaims
}

// IssuedAtTime returns the iat claim, zero when absent.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiresAtTime returns the exp claim, zero when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Manager signs and verifies tokens with a shared secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager returns a Manager signing with secret. A non-positive ttl
// selects DefaultTTL.
func NewManager(secret string, ttl time.Duration, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the lifetime given to issued tokens.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a token for id valid from now until now+TTL.
func (m *Manager) Issue(id Identity) (string, error) {
	now := m.now().UTC().Truncate(time.Second)
	systems := id.PermittedSystems
	if systems == nil {
		systems = []string{}
	}
	claims := &Claims{
		ID:               id.ID,
		Name:             id.Name,
		Role:             id.Role,
		PermittedSystems: systems,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of raw and returns its claims.
// The signature is validated before any claim is read.
func (m *Manager) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, domain.ErrTokenMissing
	}

	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if !tkn.Valid {
		return nil, domain.ErrTokenInvalid
	}
	if claims.PermittedSystems == nil {
		claims.PermittedSystems = []string{}
	}
	return claims, nil
}

// FromHeader extracts the token from an Authorization header value. Both the
// bare token and the "Bearer <token>" form are accepted.
func FromHeader(header string) string {
	header = strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	if strings.EqualFold(header, "bearer") {
		return ""
	}
	return header
}
