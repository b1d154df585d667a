package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/pawlink/pawlink-core/internal/infrastructure/config"
)

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client talks to the vendor cloud API.
//
// It owns the bearer token: the token is acquired lazily on first use,
// attached to every request, and invalidated on HTTP 401 so the next
// request re-authenticates. Non-streaming requests retry once after a
// 401-triggered refresh.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	baseURL  string
	email    string
	password string
	http     *http.Client

	// token is the cached bearer token; empty means "must authenticate".
	token   string
	tokenMu sync.Mutex

	logger Logger
}

// New creates a vendor API client from configuration.
// No network I/O happens until the first request.
func New(cfg config.CloudConfig) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		email:    cfg.Email,
		password: cfg.Password,
		http:     &http.Client{},
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// ensureToken returns the cached bearer token, authenticating if necessary.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" {
		return c.token, nil
	}

	if c.email == "" || c.password == "" {
		return "", ErrNoToken
	}

	body, err := json.Marshal(map[string]string{
		"platform_email": c.email,
		"platform_token": c.password,
		"grant_type":     "tracker_user_credentials",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: authentication failed (status %d)", ErrNoToken, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: auth endpoint returned status %d", ErrTransport, resp.StatusCode)
	}

	var auth struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", fmt.Errorf("%w: decoding auth response: %w", ErrTransport, err)
	}
	if auth.AccessToken == "" {
		return "", ErrNoToken
	}

	c.token = auth.AccessToken
	c.logger.Debug("access token acquired")
	return c.token, nil
}

// InvalidateToken discards the cached token so the next request re-authenticates.
// Called by the stream supervisor after a 401 on the push channel.
func (c *Client) InvalidateToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenMu.Unlock()
}

// getJSON performs an authenticated GET and decodes the JSON response into out.
//
// A 401 response invalidates the token and retries once with a fresh one;
// a second 401 surfaces as ErrUnauthorized.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// postJSON performs an authenticated POST with a JSON body.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	retried := false
	for {
		resp, err := c.doAuthed(ctx, method, path, payload)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			c.InvalidateToken()
			if retried {
				return fmt.Errorf("%w: %s %s", ErrUnauthorized, method, path)
			}
			retried = true
			c.logger.Debug("token rejected, refreshing", "path", path)
			continue

		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)

		case resp.StatusCode < 200 || resp.StatusCode > 299:
			resp.Body.Close()
			return fmt.Errorf("%w: %s %s returned status %d", ErrTransport, method, path, resp.StatusCode)
		}

		if out == nil {
			resp.Body.Close()
			return nil
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: decoding %s: %w", ErrTransport, path, err)
		}
		return nil
	}
}

// doAuthed builds and executes a single request with the bearer token attached.
func (c *Client) doAuthed(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	return resp, nil
}
