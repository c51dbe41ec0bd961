// Package vault implements the sync engine: the state machine between the
// filesystem layer and the external vault backend. It owns the session
// token, orchestrates refreshes, and populates or clears the secret store.
// Filesystem requests never reach this package; they read the store only.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeffas/bwfs/internal/bwclient"
	"github.com/jeffas/bwfs/internal/store"
)

var (
	// ErrAlreadyInProgress is returned when an unlock or refresh is
	// requested while another transition is running. Callers retry;
	// nothing queues.
	ErrAlreadyInProgress = errors.New("vault transition already in progress")

	// ErrLocked is returned when an operation needs an unlocked vault.
	ErrLocked = errors.New("vault is locked")
)

// PartialRefreshError reports a refresh that installed only a subset of
// the vault: the listed items could not be fetched. The rest are being
// served; a single bad item never blocks visibility of the others.
type PartialRefreshError struct {
	FailedIDs []string
}

func (e *PartialRefreshError) Error() string {
	return fmt.Sprintf("refresh left %d items unfetched", len(e.FailedIDs))
}

// fetchLimit bounds concurrent content fetches within one refresh so the
// external backend is not overwhelmed.
const fetchLimit = 4

// Engine drives the vault state machine.
type Engine struct {
	client bwclient.Client
	store  *store.Store
	log    *zap.Logger

	// opMu serializes unlock/refresh transitions. Acquired with TryLock
	// so concurrent requests are rejected, never queued indefinitely.
	opMu sync.Mutex

	// mu guards the fields below. Never held across backend calls, so
	// Status stays non-blocking.
	mu     sync.Mutex
	state  State
	token  bwclient.SessionToken
	gen    uint64
	failed []string
}

// New returns an Engine in StateLocked. Any pre-existing backend session
// is treated as opaque: the engine only trusts tokens it obtained itself.
func New(client bwclient.Client, st *store.Store, log *zap.Logger) *Engine {
	return &Engine{client: client, store: st, log: log, state: StateLocked}
}

// Status returns the current state without blocking on any transition.
func (e *Engine) Status() Snapshot {
	e.mu.Lock()
	snap := Snapshot{State: e.state, FailedItems: append([]string(nil), e.failed...)}
	e.mu.Unlock()
	snap.Items = e.store.Len()
	return snap
}

// BackendStatus asks the backend for its own view of the lock state.
func (e *Engine) BackendStatus(ctx context.Context) (bwclient.BackendStatus, error) {
	return e.client.CheckStatus(ctx)
}

// Unlock submits the credential to the backend and, on success, runs the
// initial refresh. Only meaningful from StateLocked; an unlock while
// another transition runs returns ErrAlreadyInProgress, and an unlock of
// an already-unlocked vault is a no-op.
func (e *Engine) Unlock(ctx context.Context, password string) error {
	if !e.opMu.TryLock() {
		return ErrAlreadyInProgress
	}
	defer e.opMu.Unlock()

	e.mu.Lock()
	if e.state == StateUnlocked || e.state == StateRefreshFailed {
		e.mu.Unlock()
		return nil
	}
	e.state = StateUnlocking
	gen := e.gen
	e.mu.Unlock()

	token, err := e.client.Unlock(ctx, password)

	e.mu.Lock()
	if e.gen != gen {
		// A lock intervened; the token must not be trusted.
		e.mu.Unlock()
		return ErrLocked
	}
	if err != nil {
		e.state = StateLocked
		e.mu.Unlock()
		return err
	}
	e.state = StateUnlocked
	e.token = token
	e.failed = nil
	e.mu.Unlock()

	e.log.Info("vault unlocked")

	// Populate the cache. Refresh outcomes are reflected in the state
	// machine; the unlock itself has succeeded either way.
	if err := e.refresh(ctx); err != nil {
		e.log.Warn("initial refresh failed", zap.Error(err))
	}
	return nil
}

// Refresh re-fetches the item list and contents into the store.
func (e *Engine) Refresh(ctx context.Context) error {
	if !e.opMu.TryLock() {
		return ErrAlreadyInProgress
	}
	defer e.opMu.Unlock()
	return e.refresh(ctx)
}

// Lock clears the cache, discards the session token, and asks the backend
// to lock itself. Valid from any state and idempotent. The cache is
// cleared before this returns; a refresh that overlapped this lock will
// find its generation stale and discard its results.
func (e *Engine) Lock(ctx context.Context) error {
	e.mu.Lock()
	e.store.Clear()
	e.token = ""
	e.state = StateLocked
	e.failed = nil
	e.gen++
	e.mu.Unlock()

	e.log.Info("vault locked")

	if err := e.client.Lock(ctx); err != nil {
		e.log.Warn("backend lock failed", zap.Error(err))
		return err
	}
	return nil
}

// refresh does the actual work; the caller holds opMu.
func (e *Engine) refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateUnlocked && e.state != StateRefreshFailed {
		e.mu.Unlock()
		return ErrLocked
	}
	token := e.token
	gen := e.gen
	e.mu.Unlock()

	folders, err := e.client.ListFolders(ctx, token)
	if err != nil {
		return e.failRefresh(gen, err)
	}
	items, err := e.client.ListItems(ctx, token)
	if err != nil {
		return e.failRefresh(gen, err)
	}
	dirFor := folderDirs(folders)

	// Fetch contents with bounded parallelism; all results are collected
	// before the single atomic ReplaceAll below.
	records := make([]store.ItemRecord, len(items))
	now := time.Now()

	var (
		failedMu sync.Mutex
		failed   []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for i, it := range items {
		g.Go(func() error {
			content, err := e.client.FetchItemContent(gctx, token, it.ID)
			if err != nil {
				if errors.Is(err, bwclient.ErrSessionExpired) {
					return err
				}
				e.log.Warn("item fetch failed", zap.String("id", it.ID), zap.Error(err))
				failedMu.Lock()
				failed = append(failed, it.ID)
				failedMu.Unlock()
				return nil
			}
			records[i] = store.ItemRecord{
				ID:          it.ID,
				Name:        it.Name,
				Dir:         dirFor[it.FolderID],
				Content:     content,
				RefreshedAt: now,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Nothing fetched by this aborted refresh may linger.
		for i := range records {
			store.Zero(records[i].Content)
		}
		return e.failRefresh(gen, err)
	}

	fetched := make([]store.ItemRecord, 0, len(records))
	for _, r := range records {
		if r.ID != "" {
			fetched = append(fetched, r)
		}
	}
	sort.Strings(failed)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		// A lock overlapped this refresh; nothing fetched here may be
		// installed or retained.
		for i := range fetched {
			store.Zero(fetched[i].Content)
		}
		e.log.Info("discarded refresh results from a superseded generation")
		return nil
	}

	e.store.ReplaceAll(fetched)
	if len(failed) > 0 {
		e.state = StateRefreshFailed
		e.failed = failed
		e.log.Warn("refresh partially failed",
			zap.Int("installed", len(fetched)), zap.Int("failed", len(failed)))
		return &PartialRefreshError{FailedIDs: failed}
	}
	e.state = StateUnlocked
	e.failed = nil
	e.log.Info("refresh complete", zap.Int("items", len(fetched)))
	return nil
}

// failRefresh records the outcome of a refresh that did not reach commit.
// Session expiry re-locks and clears; anything else degrades to
// StateRefreshFailed with the previous cache left in place.
func (e *Engine) failRefresh(gen uint64, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return err
	}
	if errors.Is(err, bwclient.ErrSessionExpired) {
		e.store.Clear()
		e.token = ""
		e.state = StateLocked
		e.failed = nil
		e.gen++
		e.log.Info("session expired, vault re-locked")
		return err
	}
	e.state = StateRefreshFailed
	return err
}

// folderDirs maps backend folder ids to directory names, sanitizing and
// disambiguating deterministically the same way item names are handled.
func folderDirs(folders []bwclient.Folder) map[string]string {
	sorted := append([]bwclient.Folder(nil), folders...)
	sort.Slice(sorted, func(i, j int) bool {
		ni, nj := store.SanitizeName(sorted[i].Name), store.SanitizeName(sorted[j].Name)
		if ni != nj {
			return ni < nj
		}
		return sorted[i].ID < sorted[j].ID
	})

	taken := make(map[string]bool, len(sorted))
	out := make(map[string]string, len(sorted))
	for _, f := range sorted {
		if f.ID == "" {
			continue // the backend's implicit "No Folder" is the root
		}
		base := store.SanitizeName(f.Name)
		if base == "" {
			base = "folder-" + short(f.ID)
		}
		name := base
		if taken[name] {
			name = base + "-" + short(f.ID)
		}
		if taken[name] {
			name = base + "-" + f.ID
		}
		taken[name] = true
		out[f.ID] = name
	}
	return out
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
