package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuerName = "supportnotes"

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrRevokedToken = errors.New("session token has been revoked")
)

// Claims are the JWT claims of a session token.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Session returns the identity carried by the claims.
func (c *Claims) Session() *Session {
	return &Session{Email: c.Email, DisplayName: c.Name}
}

// Tokens issues and verifies HS256 session tokens.
//
// Revoked token ids are remembered until the token would have expired anyway;
// revocations do not survive a restart.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewTokens returns a token service signing with secret. ttl must be positive.
func NewTokens(secret []byte, ttl time.Duration) (*Tokens, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return &Tokens{
		secret:  secret,
		ttl:     ttl,
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}, nil
}

// Issue signs a token for s and returns it with its expiry.
func (t *Tokens) Issue(s *Session) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := Claims{
		Email: s.Email,
		Name:  s.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuerName,
			Subject:   s.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses token and checks its signature, expiry and revocation.
func (t *Tokens) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email", ErrInvalidToken)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.revoked[claims.ID]; ok {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// Revoke invalidates the token with the given claims.
func (t *Tokens) Revoke(c *Claims) {
	if c == nil || c.ID == "" {
		return
	}
	var expires time.Time
	if c.ExpiresAt != nil {
		expires = c.ExpiresAt.Time
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for id, exp := range t.revoked {
		if exp.Before(now) {
			delete(t.revoked, id)
		}
	}
	t.revoked[c.ID] = expires
}
