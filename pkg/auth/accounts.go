package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/supportnotes/supportnotes/pkg/store"
)

// DefaultEmailDomain is appended to bare usernames at sign-in.
const DefaultEmailDomain = "gmail.com"

// ErrInvalidCredentials is returned for an unknown account or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Accounts checks and manages sign-in credentials kept in a store.
type Accounts struct {
	store  store.Store
	domain string
	now    func() time.Time
}

// NewAccounts returns an account service. An empty domain means DefaultEmailDomain.
func NewAccounts(st store.Store, domain string) *Accounts {
	if domain == "" {
		domain = DefaultEmailDomain
	}
	return &Accounts{store: st, domain: domain, now: time.Now}
}

// Email maps a sign-in name to an address. Names without '@' get the configured domain.
func (a *Accounts) Email(username string) string {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.Contains(username, "@") {
		return username
	}
	return username + "@" + a.domain
}

// Authenticate returns the session for username and password.
func (a *Accounts) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	email := a.Email(username)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	acc, err := a.store.GetAccount(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if acc == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &Session{Email: acc.Email, DisplayName: acc.DisplayName}, nil
}

// Register creates the account for username, or resets its password and display name
// when it exists.
func (a *Accounts) Register(ctx context.Context, username, displayName, password string) (*Session, error) {
	email := a.Email(username)
	if email == "" {
		return nil, errors.New("username is required")
	}
	if len(password) < 6 {
		return nil, errors.New("password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := a.now()
	doc := store.AccountDocument{
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	existing, err := a.store.GetAccount(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if existing != nil {
		doc.CreatedAt = existing.CreatedAt
		if doc.DisplayName == "" {
			doc.DisplayName = existing.DisplayName
		}
	}
	if err := a.store.PutAccount(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}
	return &Session{Email: doc.Email, DisplayName: doc.DisplayName}, nil
}
