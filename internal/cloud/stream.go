package cloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// OpenChannel opens the long-lived push channel.
//
// The vendor exposes it as a POST endpoint that keeps the response body
// open and emits newline-delimited JSON objects. The returned body stays
// open until the server closes it or ctx is cancelled; the caller owns
// closing it.
//
// A 401 invalidates the cached token and returns ErrUnauthorized without
// retrying — the stream supervisor decides when the next registration
// attempt happens.
func (c *Client) OpenChannel(ctx context.Context) (io.ReadCloser, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/channel", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: opening channel: %w", ErrTransport, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		c.InvalidateToken()
		return nil, fmt.Errorf("%w: channel registration", ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: channel returned status %d", ErrTransport, resp.StatusCode)
	}

	return resp.Body, nil
}
