// Package client implements the MedTrack client core: an HTTP API client,
// the session manager that owns the bearer token, and the record reconciler
// that turns sparse stored records into dense per-day windows.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("record already exists for this date")
)

// User mirrors the server's user representation.
type User struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"is_admin"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Record mirrors the server's medication record representation.
type Record struct {
	ID             uint      `json:"id"`
	UserID         uint      `json:"user_id"`
	Date           string    `json:"date"`
	MorningTaken   bool      `json:"morning_taken"`
	AfternoonTaken bool      `json:"afternoon_taken"`
	EveningTaken   bool      `json:"evening_taken"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RecordPayload is the body of create and update calls.
type RecordPayload struct {
	Date           string `json:"date"`
	MorningTaken   bool   `json:"morning_taken"`
	AfternoonTaken bool   `json:"afternoon_taken"`
	EveningTaken   bool   `json:"evening_taken"`
	Notes          string `json:"notes"`
}

// APIError carries the server's error message for non-2xx responses that are
// not covered by a sentinel error.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// Client talks to the MedTrack REST API. The bearer token is supplied by the
// session manager via SetToken; a zero token sends unauthenticated requests.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken sets the bearer token attached to subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewBuffer(data)
	} else {
		buf = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return ErrUnauthorized
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusConflict:
			return ErrConflict
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// IssueToken exchanges credentials for a bearer token.
func (c *Client) IssueToken(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// ResolveToken resolves the given token to the user profile it belongs to.
func (c *Client) ResolveToken(ctx context.Context, token string) (*User, error) {
	prev := c.token
	c.token = token
	defer func() { c.token = prev }()

	var user User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Register creates a new account. The server always registers a regular user.
func (c *Client) Register(ctx context.Context, username, password string) (*User, error) {
	var user User
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout revokes the session server-side. Best effort; the session manager
// clears local state regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// ListRecords returns all records owned by the authenticated user.
func (c *Client) ListRecords(ctx context.Context) ([]Record, error) {
	var resp struct {
		Records []Record `json:"records"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/records", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// ListRecent returns the server-defined recent window of records.
func (c *Client) ListRecent(ctx context.Context) ([]Record, error) {
	var resp struct {
		Records []Record `json:"records"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/records/recent", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// CreateRecord persists a new record for the authenticated user.
func (c *Client) CreateRecord(ctx context.Context, payload RecordPayload) (Record, error) {
	var record Record
	if err := c.do(ctx, http.MethodPost, "/api/records", payload, &record); err != nil {
		return Record{}, err
	}
	return record, nil
}

// UpdateRecord updates an existing record addressed by id.
func (c *Client) UpdateRecord(ctx context.Context, id uint, payload RecordPayload) (Record, error) {
	var record Record
	path := fmt.Sprintf("/api/records/%d", id)
	if err := c.do(ctx, http.MethodPut, path, payload, &record); err != nil {
		return Record{}, err
	}
	return record, nil
}

// ListAllUsers returns every user account (admin only).
func (c *Client) ListAllUsers(ctx context.Context) ([]User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// ListAllRecords returns every record in the system (admin only).
func (c *Client) ListAllRecords(ctx context.Context) ([]Record, error) {
	var resp struct {
		Records []Record `json:"records"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/records", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// UpdateUserFlags updates a user's admin/active flags (admin only). Nil
// fields are left unchanged.
func (c *Client) UpdateUserFlags(ctx context.Context, id uint, isAdmin, isActive *bool) (*User, error) {
	var user User
	body := map[string]any{}
	if isAdmin != nil {
		body["is_admin"] = *isAdmin
	}
	if isActive != nil {
		body["is_active"] = *isActive
	}
	path := fmt.Sprintf("/api/admin/users/%d", id)
	if err := c.do(ctx, http.MethodPut, path, body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
