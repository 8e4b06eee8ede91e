// Package client is a Go client for the supportnotes JSON API.
//
// It mirrors the server's routes and decodes responses into the same
// [github.com/supportnotes/supportnotes/pkg/models] types the server encodes.
//
//	c := client.NewClient("http://localhost:8080")
//	if _, err := c.SignIn(ctx, "sara", "secret1"); err != nil {
//		return err
//	}
//	note, err := c.SaveNote(ctx, models.CollectionNormal, models.NoteInput{
//		StudentName: "Ali",
//		TeacherName: "Sara",
//		Content:     "Needs extra reading time",
//	})
//
// The token returned by SignIn is sent with every later request until SignOut.
// Failed requests return an *[APIError] carrying the status code and the server's
// error message.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/supportnotes/supportnotes/pkg/models"
)

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	authToken string
}

// NewClient creates a client for the server at baseURL, e.g. "http://localhost:8080",
// without a trailing slash or API prefix.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// SetAuthToken sets the bearer token sent with each request. An empty token sends none.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.authToken = token
	c.mu.Unlock()
}

// AuthToken returns the current bearer token.
func (c *Client) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

// APIError is a response with a 4xx or 5xx status.
type APIError struct {
	StatusCode int
	Message    string
	Fields     []FieldError
}

// FieldError is a rejected input field of a validation failure.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status=%d, message=%s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// doRequest performs an HTTP request with proper headers
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token := c.AuthToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.httpClient.Do(req)
}

// decodeResponse decodes the JSON response into target, or the error body into an *APIError.
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		var payload struct {
			Error  string       `json:"error"`
			Fields []FieldError `json:"fields"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Fields = payload.Fields
		}
		return apiErr
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (c *Client) call(ctx context.Context, method, path string, body, target any) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decodeResponse(resp, target)
}

// Health checks the health status of the server
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var result map[string]any
	if err := c.call(ctx, http.MethodGet, "/health", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CollectionsResponse lists the collections the server accepts.
type CollectionsResponse struct {
	Collections []CollectionInfo  `json:"collections"`
	Default     models.Collection `json:"default"`
}

// CollectionInfo names one collection and its heading.
type CollectionInfo struct {
	Name  models.Collection `json:"name"`
	Title string            `json:"title"`
}

// ListCollections returns the known collections and the server's default.
func (c *Client) ListCollections(ctx context.Context) (*CollectionsResponse, error) {
	var result CollectionsResponse
	if err := c.call(ctx, http.MethodGet, "/api/collections", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Notes

func notesPath(collection models.Collection) string {
	return "/api/collections/" + url.PathEscape(collection.String()) + "/notes"
}

func notePath(collection models.Collection, id string) string {
	return notesPath(collection) + "/" + url.PathEscape(id)
}

// ListNotes returns the notes of collection, most recently updated first.
func (c *Client) ListNotes(ctx context.Context, collection models.Collection) ([]models.Note, error) {
	var result struct {
		Notes []models.Note `json:"notes"`
	}
	if err := c.call(ctx, http.MethodGet, notesPath(collection), nil, &result); err != nil {
		return nil, err
	}
	return result.Notes, nil
}

// SaveNote creates a note when in.ID is empty and edits note in.ID otherwise.
func (c *Client) SaveNote(ctx context.Context, collection models.Collection, in models.NoteInput) (*models.Note, error) {
	method, path := http.MethodPost, notesPath(collection)
	if in.ID != "" {
		method, path = http.MethodPut, notePath(collection, in.ID)
	}
	body := in
	body.ID = ""

	var result models.Note
	if err := c.call(ctx, method, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteNote deletes a note and its replies.
func (c *Client) DeleteNote(ctx context.Context, collection models.Collection, id string) error {
	return c.call(ctx, http.MethodDelete, notePath(collection, id), nil, nil)
}

// Replies

// ReplyResponse is a created reply. Warning is set when the reply was stored but the
// note's timestamp could not be advanced.
type ReplyResponse struct {
	Reply   models.Reply `json:"reply"`
	Warning string       `json:"warning,omitempty"`
}

// ListReplies returns the replies of a note, oldest first.
func (c *Client) ListReplies(ctx context.Context, collection models.Collection, noteID string) ([]models.Reply, error) {
	var result struct {
		Replies []models.Reply `json:"replies"`
	}
	if err := c.call(ctx, http.MethodGet, notePath(collection, noteID)+"/replies", nil, &result); err != nil {
		return nil, err
	}
	return result.Replies, nil
}

// AddReply adds a reply to a note. It needs a signed-in client.
func (c *Client) AddReply(ctx context.Context, collection models.Collection, noteID, content string) (*ReplyResponse, error) {
	var result ReplyResponse
	body := models.ReplyInput{Content: content}
	if err := c.call(ctx, http.MethodPost, notePath(collection, noteID)+"/replies", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteReply deletes one reply of a note.
func (c *Client) DeleteReply(ctx context.Context, collection models.Collection, noteID, replyID string) error {
	path := notePath(collection, noteID) + "/replies/" + url.PathEscape(replyID)
	return c.call(ctx, http.MethodDelete, path, nil, nil)
}
