package bwclient

import (
	"errors"
	"strings"
)

// Failure modes of the backend boundary. The sync engine translates these
// into state transitions; they never surface as filesystem faults.
var (
	// ErrBackendUnavailable means the bw binary could not be run or its
	// output could not be parsed.
	ErrBackendUnavailable = errors.New("vault backend unavailable")

	// ErrInvalidCredential means the master password was rejected. The
	// user may retry; nothing retries automatically.
	ErrInvalidCredential = errors.New("invalid master password")

	// ErrSessionExpired means the session token is no longer valid and
	// the vault must be treated as locked.
	ErrSessionExpired = errors.New("vault session expired")

	// ErrItemNotFound means the item disappeared upstream since it was
	// listed.
	ErrItemNotFound = errors.New("vault item not found")
)

// classifyExitError maps bw's stderr text onto the error taxonomy. The CLI
// has no machine-readable error channel, so this matches on the stable
// phrases it prints.
func classifyExitError(stderr string) error {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "invalid master password"):
		return ErrInvalidCredential
	case strings.Contains(msg, "session"),
		strings.Contains(msg, "mac failed"),
		strings.Contains(msg, "vault is locked"),
		strings.Contains(msg, "unlock your vault"):
		return ErrSessionExpired
	case strings.Contains(msg, "not found"):
		return ErrItemNotFound
	default:
		return nil
	}
}
