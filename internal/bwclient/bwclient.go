// Package bwclient talks to the external Bitwarden CLI (`bw`). Each call
// spawns one bw process and parses its JSON output; the binary performs
// all authentication and decryption. No retries happen here; retry
// policy belongs to the caller.
package bwclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// passwordEnv carries the master password into `bw unlock` so it never
// appears in process argument lists.
const passwordEnv = "BWFS_PASSWORD"

// Client is the capability boundary to the vault backend. A test double
// implementing it enables deterministic testing without a real backend.
type Client interface {
	// CheckStatus queries the backend's own lock state.
	CheckStatus(ctx context.Context) (BackendStatus, error)
	// Unlock submits the master password and returns a session token.
	Unlock(ctx context.Context, password string) (SessionToken, error)
	// Lock tells the backend to discard its session state.
	Lock(ctx context.Context) error
	// ListFolders returns the vault's folders under a valid token.
	ListFolders(ctx context.Context, token SessionToken) ([]Folder, error)
	// ListItems returns summaries of all vault items under a valid token.
	ListItems(ctx context.Context, token SessionToken) ([]ItemSummary, error)
	// FetchItemContent returns the full decrypted item document.
	FetchItemContent(ctx context.Context, token SessionToken, id string) ([]byte, error)
}

// CLI runs the bw binary. It is stateless: the session token is passed in
// per call and handed to the child process as BW_SESSION.
type CLI struct {
	path string
	log  *zap.Logger
}

// New returns a CLI that invokes the bw binary at path.
func New(path string, log *zap.Logger) *CLI {
	return &CLI{path: path, log: log}
}

var _ Client = (*CLI)(nil)

// run executes one bw invocation and returns its stdout. Errors are mapped
// onto the package taxonomy via the child's stderr.
func (c *CLI) run(ctx context.Context, token SessionToken, extraEnv []string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Env = append(os.Environ(), extraEnv...)
	if token != "" {
		cmd.Env = append(cmd.Env, "BW_SESSION="+string(token))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.log.Debug("executing bw", zap.Strings("args", args))

	if err := cmd.Run(); err != nil {
		if classified := classifyExitError(stderr.String()); classified != nil {
			return nil, classified
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// Could not even start the process.
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return nil, fmt.Errorf("bw %s: %s: %w", args[0], strings.TrimSpace(stderr.String()), err)
	}
	return stdout.Bytes(), nil
}

// CheckStatus implements Client.
func (c *CLI) CheckStatus(ctx context.Context) (BackendStatus, error) {
	out, err := c.run(ctx, "", nil, "status")
	if err != nil {
		return StatusUnknown, err
	}
	var st Status
	if err := json.Unmarshal(out, &st); err != nil {
		return StatusUnknown, fmt.Errorf("%w: parsing status: %v", ErrBackendUnavailable, err)
	}
	switch st.Status {
	case "unlocked":
		return StatusUnlocked, nil
	case "locked", "unauthenticated":
		return StatusLocked, nil
	default:
		return StatusUnknown, nil
	}
}

// Unlock implements Client. The password travels via an environment
// variable of the child process only.
func (c *CLI) Unlock(ctx context.Context, password string) (SessionToken, error) {
	out, err := c.run(ctx, "", []string{passwordEnv + "=" + password},
		"unlock", "--raw", "--passwordenv", passwordEnv)
	if err != nil {
		return "", err
	}
	token := SessionToken(strings.TrimSpace(string(out)))
	if token == "" {
		return "", fmt.Errorf("%w: unlock produced no session token", ErrBackendUnavailable)
	}
	return token, nil
}

// Lock implements Client.
func (c *CLI) Lock(ctx context.Context) error {
	_, err := c.run(ctx, "", nil, "lock")
	return err
}

// ListFolders implements Client.
func (c *CLI) ListFolders(ctx context.Context, token SessionToken) ([]Folder, error) {
	out, err := c.run(ctx, token, nil, "list", "folders")
	if err != nil {
		return nil, err
	}
	var folders []Folder
	if err := json.Unmarshal(out, &folders); err != nil {
		return nil, fmt.Errorf("%w: parsing folder list: %v", ErrBackendUnavailable, err)
	}
	return folders, nil
}

// ListItems implements Client. Entries whose id is not a UUID are dropped:
// the id doubles as the stable path identity and must be well formed.
func (c *CLI) ListItems(ctx context.Context, token SessionToken) ([]ItemSummary, error) {
	out, err := c.run(ctx, token, nil, "list", "items")
	if err != nil {
		return nil, err
	}
	var items []ItemSummary
	if err := json.Unmarshal(out, &items); err != nil {
		return nil, fmt.Errorf("%w: parsing item list: %v", ErrBackendUnavailable, err)
	}
	valid := items[:0]
	for _, it := range items {
		if _, err := uuid.Parse(it.ID); err != nil {
			c.log.Warn("skipping item with malformed id", zap.String("id", it.ID))
			continue
		}
		valid = append(valid, it)
	}
	return valid, nil
}

// FetchItemContent implements Client.
func (c *CLI) FetchItemContent(ctx context.Context, token SessionToken, id string) ([]byte, error) {
	out, err := c.run(ctx, token, nil, "get", "item", id)
	if err != nil {
		return nil, err
	}
	return out, nil
}
