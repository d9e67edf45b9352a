// Package accountclient calls the account service's login and signup endpoints.
package accountclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"unileap/cmd/internal/websession"
)

const (
	defaultTimeout  = 15 * time.Second
	maxResponseBody = 1 << 20
)

// ErrBadResponse is returned when the service answers with something that is
// not the expected JSON envelope.
var ErrBadResponse = errors.New("accountclient: bad response")

// AuthResponse is the body of both /login and /signup.
type AuthResponse struct {
	Success bool             `json:"success"`
	Token   string           `json:"token,omitempty"`
	User    *websession.User `json:"user,omitempty"`
	Message string           `json:"message,omitempty"`
	Code    string           `json:"code,omitempty"`

	// Status is the HTTP status code; not part of the body.
	Status int `json:"-"`
}

// Client talks to <base>/login and <base>/signup.
type Client struct {
	base string
	hc   *http.Client
	ua   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.ua = ua }
}

// New returns a client for base, e.g. "http://localhost:3000/api/auth".
func New(base string, opts ...Option) (*Client, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil, errors.New("accountclient: empty base url")
	}
	c := &Client{
		base: base,
		hc:   &http.Client{Timeout: defaultTimeout},
		ua:   "unileapctl",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login posts credentials to <base>/login.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	return c.post(ctx, "/login", loginRequest{Email: email, Password: password})
}

// Signup posts a new account to <base>/signup.
func (c *Client) Signup(ctx context.Context, name, email, password string) (AuthResponse, error) {
	return c.post(ctx, "/signup", signupRequest{Name: name, Email: email, Password: password})
}

// Logout revokes the server session behind token. It is best effort: the
// local session is cleared regardless of the result.
func (c *Client) Logout(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.ua)

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxResponseBody))

	if res.StatusCode >= 300 && res.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("logout: status %d", res.StatusCode)
	}
	return nil
}

// Me returns the user behind token.
func (c *Client) Me(ctx context.Context, token string) (AuthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/me", nil)
	if err != nil {
		return AuthResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.ua)
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, body any) (AuthResponse, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return AuthResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return AuthResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.ua)
	return c.do(req)
}

// do decodes the envelope for every status. A non-2xx answer is never a
// success, whatever its body claims.
func (c *Client) do(req *http.Request) (AuthResponse, error) {
	res, err := c.hc.Do(req)
	if err != nil {
		return AuthResponse{}, err
	}
	defer res.Body.Close()

	var out AuthResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBody)).Decode(&out); err != nil {
		return AuthResponse{}, fmt.Errorf("%w: status %d: %v", ErrBadResponse, res.StatusCode, err)
	}
	out.Status = res.StatusCode
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		out.Success = false
	}
	return out, nil
}
