// Package server exposes the sync engine's operations over a unix-socket
// HTTP API consumed by the bwfs CLI. Decrypted content is never served
// here; the control surface only moves the state machine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/jeffas/bwfs/internal/bwclient"
	"github.com/jeffas/bwfs/internal/vault"
)

// VaultService defines the engine operations the handlers rely on.
type VaultService interface {
	// Status returns the current state without blocking.
	Status() vault.Snapshot
	// BackendStatus queries the backend's own lock state.
	BackendStatus(ctx context.Context) (bwclient.BackendStatus, error)
	// Unlock submits the master password and refreshes on success.
	Unlock(ctx context.Context, password string) error
	// Refresh re-fetches the vault into the cache.
	Refresh(ctx context.Context) error
	// Lock clears the cache and discards the session.
	Lock(ctx context.Context) error
}

// VaultHandler handles the control API requests.
type VaultHandler struct {
	Vault VaultService
	Log   *zap.Logger
}

// Status handles GET /api/status.
func (h *VaultHandler) Status(w http.ResponseWriter, r *http.Request) {
	backend, err := h.Vault.BackendStatus(r.Context())
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err, nil)
		return
	}
	snap := h.Vault.Status()
	writeJSON(w, http.StatusOK, StatusResponse{
		State:   snap.State.String(),
		Backend: backend.String(),
		Items:   snap.Items,
		Failed:  snap.FailedItems,
	})
}

// Unlock handles POST /api/unlock.
func (h *VaultHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Password == "" {
		http.Error(w, "password must not be empty", http.StatusBadRequest)
		return
	}

	err := h.Vault.Unlock(r.Context(), req.Password)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, bwclient.ErrInvalidCredential):
		h.writeError(w, http.StatusUnauthorized, err, nil)
	case errors.Is(err, vault.ErrAlreadyInProgress):
		h.writeError(w, http.StatusConflict, err, nil)
	case errors.Is(err, bwclient.ErrBackendUnavailable):
		h.writeError(w, http.StatusBadGateway, err, nil)
	default:
		h.writeError(w, http.StatusInternalServerError, err, nil)
	}
}

// Refresh handles POST /api/refresh.
func (h *VaultHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	err := h.Vault.Refresh(r.Context())
	var partial *vault.PartialRefreshError
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.As(err, &partial):
		h.writeError(w, http.StatusInternalServerError, err, partial.FailedIDs)
	case errors.Is(err, vault.ErrAlreadyInProgress):
		h.writeError(w, http.StatusConflict, err, nil)
	case errors.Is(err, vault.ErrLocked), errors.Is(err, bwclient.ErrSessionExpired):
		h.writeError(w, http.StatusLocked, err, nil)
	case errors.Is(err, bwclient.ErrBackendUnavailable):
		h.writeError(w, http.StatusBadGateway, err, nil)
	default:
		h.writeError(w, http.StatusInternalServerError, err, nil)
	}
}

// Lock handles POST /api/lock. The cache is cleared before the engine
// returns, so a 2xx here means no decrypted data remains in memory.
func (h *VaultHandler) Lock(w http.ResponseWriter, r *http.Request) {
	err := h.Vault.Lock(r.Context())
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, bwclient.ErrBackendUnavailable):
		h.writeError(w, http.StatusBadGateway, err, nil)
	default:
		h.writeError(w, http.StatusInternalServerError, err, nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError logs the failure with its mapped status and replies with the
// error body.
func (h *VaultHandler) writeError(w http.ResponseWriter, status int, err error, failed []string) {
	h.Log.Warn("request failed", zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Failed: failed})
}
