// Package store holds the decrypted vault contents in memory. It is the
// single owner of decrypted data: records are installed atomically on
// refresh, served to the filesystem layer by reference, and scrubbed on
// clear. Nothing here ever touches disk.
package store

import (
	"sort"
	"sync"
	"time"
)

// ItemRecord is one decrypted vault entry.
type ItemRecord struct {
	// ID is the stable opaque identity assigned by the backend.
	ID string
	// Name is the display name as the backend reports it, unsanitized.
	Name string
	// Dir is the directory the entry lives in, "" for the root. Callers
	// pass a sanitized, collision-free directory name (see SanitizeName).
	Dir string
	// Content is the decrypted item document.
	Content []byte
	// RefreshedAt is when this record was fetched.
	RefreshedAt time.Time
}

// PathKey identifies one file in the projected namespace.
type PathKey struct {
	Dir  string // "" for the root
	Name string
}

// Store maps PathKeys to ItemRecords under a read-write lock. ReplaceAll
// and Clear are mutually exclusive with Get, so readers never observe a
// partially-updated set.
type Store struct {
	mu    sync.RWMutex
	items map[PathKey]*ItemRecord
	dirs  []string            // sorted directory names
	names map[string][]string // dir -> sorted file names
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		items: make(map[PathKey]*ItemRecord),
		names: make(map[string][]string),
	}
}

// ReplaceAll atomically swaps the entire mapping for the given records,
// taking ownership of them. Path names are derived deterministically:
// records are keyed by sanitized display name, and name collisions get a
// suffix from the item id, assigned in sorted (name, id) order so the same
// collision always resolves the same way across refreshes.
func (s *Store) ReplaceAll(records []ItemRecord) {
	recs := make([]ItemRecord, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if seen[r.ID] {
			continue // one record per identity
		}
		seen[r.ID] = true
		recs = append(recs, r)
	}

	sort.Slice(recs, func(i, j int) bool {
		ni, nj := SanitizeName(recs[i].Name), SanitizeName(recs[j].Name)
		if ni != nj {
			return ni < nj
		}
		return recs[i].ID < recs[j].ID
	})

	items := make(map[PathKey]*ItemRecord, len(recs))
	names := make(map[string][]string)
	taken := make(map[PathKey]bool, len(recs))

	var dirs []string
	for _, r := range recs {
		if r.Dir == "" {
			continue
		}
		if _, ok := names[r.Dir]; !ok {
			dirs = append(dirs, r.Dir)
			names[r.Dir] = nil
			// A root file must not shadow a directory.
			taken[PathKey{Dir: "", Name: r.Dir}] = true
		}
	}

	for i := range recs {
		r := &recs[i]
		key := PathKey{Dir: r.Dir, Name: fileName(r, taken)}
		taken[key] = true
		items[key] = r
		names[r.Dir] = append(names[r.Dir], key.Name)
	}

	sort.Strings(dirs)
	for dir := range names {
		sort.Strings(names[dir])
	}

	s.mu.Lock()
	s.items = items
	s.dirs = dirs
	s.names = names
	s.mu.Unlock()
}

// fileName picks the first free name for r: the sanitized display name,
// then with a short id suffix, then with the full id.
func fileName(r *ItemRecord, taken map[PathKey]bool) string {
	base := SanitizeName(r.Name)
	if base == "" {
		base = "item-" + shortID(r.ID)
	}
	for _, name := range []string{base, base + "-" + shortID(r.ID), base + "-" + r.ID} {
		if !taken[PathKey{Dir: r.Dir, Name: name}] {
			return name
		}
	}
	return base + "-" + r.ID
}

// Get returns the record for key, or false if the path does not resolve.
// The record's Content must not be read outside the store: Clear scrubs
// buffers in place, so concurrent readers go through ReadAt instead.
func (s *Store) Get(key PathKey) (*ItemRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[key]
	return rec, ok
}

// Stat returns the content length and refresh time for key.
func (s *Store) Stat(key PathKey) (size int, mtime time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[key]
	if !ok {
		return 0, time.Time{}, false
	}
	return len(rec.Content), rec.RefreshedAt, true
}

// ReadAt copies the requested range of key's content into a fresh reply
// buffer, still under the lock so a concurrent Clear cannot scrub the
// bytes mid-read. The store's buffer stays the only long-lived copy; the
// reply is transient. Reads past end-of-file return an empty slice.
func (s *Store) ReadAt(key PathKey, offset int64, size int) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[key]
	if !ok {
		return nil, false
	}
	if offset < 0 || offset >= int64(len(rec.Content)) {
		return nil, true
	}
	end := offset + int64(size)
	if end > int64(len(rec.Content)) {
		end = int64(len(rec.Content))
	}
	out := make([]byte, end-offset)
	copy(out, rec.Content[offset:end])
	return out, true
}

// HasDir reports whether dir exists in the current namespace.
func (s *Store) HasDir(dir string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.names[dir]
	return ok
}

// Dirs returns the sorted directory names under the root.
func (s *Store) Dirs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.dirs))
	copy(out, s.dirs)
	return out
}

// Names returns the sorted file names in dir ("" for the root).
func (s *Store) Names(dir string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.names[dir]))
	copy(out, s.names[dir])
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear removes all entries, overwriting their content buffers before
// releasing them. Best effort: the OS may still have paged copies.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.items {
		Zero(rec.Content)
		rec.Content = nil
	}
	s.items = make(map[PathKey]*ItemRecord)
	s.dirs = nil
	s.names = make(map[string][]string)
}

// Zero overwrites b in place.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
