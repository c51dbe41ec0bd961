// Package ctl is the client side of the control API: it talks to a
// running bwfs daemon over its unix socket and maps HTTP failures back
// onto the error taxonomy the CLI turns into exit codes.
package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/jeffas/bwfs/internal/server"
)

var (
	// ErrInvalidCredential mirrors a 401 from the daemon.
	ErrInvalidCredential = errors.New("invalid master password")
	// ErrAlreadyInProgress mirrors a 409 from the daemon.
	ErrAlreadyInProgress = errors.New("another operation is in progress")
	// ErrVaultLocked mirrors a 423 from the daemon.
	ErrVaultLocked = errors.New("vault is locked")
	// ErrBackendUnavailable mirrors a 502 from the daemon.
	ErrBackendUnavailable = errors.New("vault backend unavailable")
)

// The host is ignored; the transport always dials the unix socket.
const baseURL = "http://bwfs/api"

// Client calls the daemon's control API.
type Client struct {
	httpc *http.Client
}

// New returns a Client for the daemon on socketPath ("" for the default).
// No request timeout is set: unlock blocks on the external backend.
func New(socketPath string) *Client {
	if socketPath == "" {
		socketPath = server.DefaultSocketPath()
	}
	return &Client{
		httpc: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

// Status fetches the daemon's status.
func (c *Client) Status(ctx context.Context) (*server.StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bwfs daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var status server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding status: %w", err)
	}
	return &status, nil
}

// Unlock submits the master password.
func (c *Client) Unlock(ctx context.Context, password string) error {
	return c.post(ctx, "/unlock", server.UnlockRequest{Password: password})
}

// Refresh asks the daemon to re-fetch the vault.
func (c *Client) Refresh(ctx context.Context) error {
	return c.post(ctx, "/refresh", nil)
}

// Lock asks the daemon to clear its cache and lock the backend.
func (c *Client) Lock(ctx context.Context) error {
	return c.post(ctx, "/lock", nil)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	var (
		buf         bytes.Buffer
		contentType string
	)
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, &buf)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("bwfs daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	return nil
}

// apiError maps a non-2xx reply onto the package sentinels, carrying the
// daemon's message alongside.
func apiError(resp *http.Response) error {
	var body server.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = resp.Status
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		sentinel = ErrInvalidCredential
	case http.StatusConflict:
		sentinel = ErrAlreadyInProgress
	case http.StatusLocked:
		sentinel = ErrVaultLocked
	case http.StatusBadGateway:
		sentinel = ErrBackendUnavailable
	default:
		if len(body.Failed) > 0 {
			return fmt.Errorf("%s (failed items: %v)", msg, body.Failed)
		}
		return errors.New(msg)
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}
