package supportnotes

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/supportnotes/supportnotes/pkg/auth"
	"github.com/supportnotes/supportnotes/pkg/models"
)

// SignInRequest accepts either a bare username or a full email address.
type SignInRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// AuthResponse is returned by sign-in and refresh.
type AuthResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      *auth.Session `json:"user"`
}

type claimsKey struct{}

func withClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func claimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return c
}

func getTokenFromHeader(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const bearerPrefix = "Bearer "
	if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return header[len(bearerPrefix):]
	}
	return ""
}

func (a *App) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !decodeBody(w, r, &req) {
		return
	}
	username := req.Username
	if username == "" {
		username = req.Email
	}

	session, err := a.accounts.Authenticate(r.Context(), username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			requestLogger(r).Info().Str("email", a.accounts.Email(username)).Msg("Sign-in rejected")
			respondError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		respondServiceError(w, r, err)
		return
	}
	a.respondToken(w, r, session)
}

func (a *App) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if c := claimsFrom(r.Context()); c != nil {
		a.tokens.Revoke(c)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleGetCurrentUser returns the stored account of the session, or the session itself
// when the account record is gone.
func (a *App) handleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.FromContext(r.Context())
	acc, err := a.store.GetAccount(r.Context(), session.Email)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if acc == nil {
		respondJSON(w, http.StatusOK, models.Account{Email: session.Email, DisplayName: session.DisplayName})
		return
	}
	respondJSON(w, http.StatusOK, models.Account{
		Email:       acc.Email,
		DisplayName: acc.DisplayName,
		CreatedAt:   acc.CreatedAt,
		UpdatedAt:   acc.UpdatedAt,
	})
}

// handleRefreshToken swaps the presented token for a fresh one.
func (a *App) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r.Context())
	a.tokens.Revoke(c)
	a.respondToken(w, r, c.Session())
}

func (a *App) respondToken(w http.ResponseWriter, r *http.Request, session *auth.Session) {
	token, expires, err := a.tokens.Issue(session)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, AuthResponse{Token: token, ExpiresAt: expires, User: session})
}
