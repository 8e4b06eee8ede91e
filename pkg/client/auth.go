package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/supportnotes/supportnotes/pkg/models"
)

// SignInRequest represents a sign-in request
type SignInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is the signed-in identity returned with a token.
type User struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

// SignIn authenticates with a username or email address and keeps the returned token
// for later requests.
func (c *Client) SignIn(ctx context.Context, username, password string) (*AuthResponse, error) {
	req := SignInRequest{
		Username: username,
		Password: password,
	}

	var result AuthResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/signin", req, &result); err != nil {
		return nil, fmt.Errorf("signin failed: %w", err)
	}

	c.SetAuthToken(result.Token)
	return &result, nil
}

// SignOut revokes the current token and forgets it.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.call(ctx, http.MethodPost, "/api/auth/signout", nil, nil); err != nil {
		return fmt.Errorf("signout failed: %w", err)
	}

	c.SetAuthToken("")
	return nil
}

// GetCurrentUser returns the account of the signed-in user.
func (c *Client) GetCurrentUser(ctx context.Context) (*models.Account, error) {
	var result models.Account
	if err := c.call(ctx, http.MethodGet, "/api/auth/me", nil, &result); err != nil {
		return nil, fmt.Errorf("get current user failed: %w", err)
	}
	return &result, nil
}

// RefreshToken swaps the current token for a fresh one.
func (c *Client) RefreshToken(ctx context.Context) (*AuthResponse, error) {
	var result AuthResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/refresh", nil, &result); err != nil {
		return nil, fmt.Errorf("refresh token failed: %w", err)
	}

	c.SetAuthToken(result.Token)
	return &result, nil
}
