package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/noah-isme/kitstore/internal/checkout"
	"github.com/noah-isme/kitstore/internal/localstore"
)

// Credentials is the login input.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up input.
type Registration struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// AuthResult is the outcome of Login or Register. Error is set when the API
// refused the request; the session is only stored when it is empty.
type AuthResult struct {
	Message string
	Token   string
	User    *checkout.User
	Error   string
}

// Login authenticates and stores the session on success.
func (c *Client) Login(ctx context.Context, creds Credentials) (AuthResult, error) {
	return c.authenticate(ctx, "/api/login", creds)
}

// Register creates an account and stores the session on success.
func (c *Client) Register(ctx context.Context, in Registration) (AuthResult, error) {
	return c.authenticate(ctx, "/api/register", in)
}

func (c *Client) authenticate(ctx context.Context, path string, payload any) (AuthResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return AuthResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return AuthResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return AuthResult{}, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr *APIError
		if errors.As(decodeAPIError(resp), &apiErr) {
			return AuthResult{Error: apiErr.Message}, nil
		}
		return AuthResult{Error: http.StatusText(resp.StatusCode)}, nil
	}

	var out struct {
		Message string         `json:"message"`
		Token   string         `json:"token"`
		User    *checkout.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return AuthResult{}, fmt.Errorf("decode %s: %w", path, err)
	}
	result := AuthResult{Message: out.Message, Token: out.Token, User: out.User}
	if err := c.saveSession(ctx, out.Token, out.User); err != nil {
		return result, err
	}
	return result, nil
}

func (c *Client) saveSession(ctx context.Context, token string, user *checkout.User) error {
	if c.storage == nil {
		return nil
	}
	if err := c.storage.Set(ctx, localstore.KeyToken, []byte(token)); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if user != nil {
		if err := localstore.SetJSON(ctx, c.storage, localstore.KeyUser, user); err != nil {
			return fmt.Errorf("store user: %w", err)
		}
	}
	return nil
}

// Logout forgets the stored session.
func (c *Client) Logout(ctx context.Context) error {
	if c.storage == nil {
		return nil
	}
	for _, key := range []string{localstore.KeyToken, localstore.KeyUser} {
		if err := c.storage.Delete(ctx, key); err != nil && !errors.Is(err, localstore.ErrNotFound) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

// CurrentUser returns the stored user, or nil when nobody is logged in or the
// stored blob cannot be read.
func (c *Client) CurrentUser(ctx context.Context) *checkout.User {
	var u checkout.User
	found, err := localstore.GetJSON(ctx, c.storage, localstore.KeyUser, &u)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", localstore.KeyUser).Msg("user_restore_failed")
		return nil
	}
	if !found {
		return nil
	}
	return &u
}
