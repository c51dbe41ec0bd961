// Package mapfs projects the secret store into a read-only filesystem
// served over FUSE. The tree is derived, never authoritative: every
// lookup, listing, and read consults the store, so a refresh or lock is
// visible atomically and no request ever reaches the vault backend.
package mapfs

import (
	"context"
	"os"
	"sort"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"go.uber.org/zap"

	"github.com/jeffas/bwfs/internal/store"
)

const (
	fileMode = 0o440
	dirMode  = os.ModeDir | 0o550
)

// FS is the filesystem root. It serves whatever the store currently
// holds; when the vault is locked the root exists but is empty, so the
// mount point stays valid across lock cycles.
type FS struct {
	store *store.Store
	log   *zap.Logger
}

// New returns a filesystem over st.
func New(st *store.Store, log *zap.Logger) *FS {
	return &FS{store: st, log: log}
}

// Root implements fs.FS.
func (f *FS) Root() (fusefs.Node, error) {
	return &Dir{fs: f}, nil
}

// Dir is the root (name "") or one vault-folder directory.
type Dir struct {
	fs   *FS
	name string
}

var (
	_ fusefs.Node               = (*Dir)(nil)
	_ fusefs.NodeStringLookuper = (*Dir)(nil)
	_ fusefs.HandleReadDirAller = (*Dir)(nil)
)

func (d *Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	if d.name == "" {
		a.Inode = 1
	} else {
		if !d.fs.store.HasDir(d.name) {
			return fuse.ENOENT
		}
		a.Inode = fusefs.GenerateDynamicInode(1, d.name)
	}
	a.Mode = dirMode
	return nil
}

func (d *Dir) Lookup(ctx context.Context, name string) (fusefs.Node, error) {
	if d.name == "" && d.fs.store.HasDir(name) {
		return &Dir{fs: d.fs, name: name}, nil
	}
	key := store.PathKey{Dir: d.name, Name: name}
	if _, ok := d.fs.store.Get(key); ok {
		return &File{fs: d.fs, key: key}, nil
	}
	return nil, fuse.ENOENT
}

func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	if d.name != "" && !d.fs.store.HasDir(d.name) {
		return nil, fuse.ENOENT
	}
	var ents []fuse.Dirent
	if d.name == "" {
		for _, dir := range d.fs.store.Dirs() {
			ents = append(ents, fuse.Dirent{Type: fuse.DT_Dir, Name: dir})
		}
	}
	for _, name := range d.fs.store.Names(d.name) {
		ents = append(ents, fuse.Dirent{Type: fuse.DT_File, Name: name})
	}
	// One name-sorted list so repeated listings are stable.
	sort.Slice(ents, func(i, j int) bool { return ents[i].Name < ents[j].Name })
	return ents, nil
}

// File serves one item's decrypted content. It holds only the PathKey;
// the bytes stay in the store and are copied out under its lock per
// request, so a lock scrubs the single long-lived copy at any moment.
type File struct {
	fs  *FS
	key store.PathKey
}

var (
	_ fusefs.Node         = (*File)(nil)
	_ fusefs.HandleReader = (*File)(nil)
)

func (f *File) Attr(ctx context.Context, a *fuse.Attr) error {
	size, mtime, ok := f.fs.store.Stat(f.key)
	if !ok {
		return fuse.ENOENT
	}
	// Inodes are hashed from the path, so a name keeps its inode across
	// refreshes even though the nodes are rebuilt.
	parent := uint64(1)
	if f.key.Dir != "" {
		parent = fusefs.GenerateDynamicInode(1, f.key.Dir)
	}
	a.Inode = fusefs.GenerateDynamicInode(parent, f.key.Name)
	a.Mode = fileMode
	a.Size = uint64(size)
	a.Mtime = mtime
	a.Ctime = mtime
	return nil
}

func (f *File) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	// Reads past end-of-file yield zero bytes, not a fault.
	data, ok := f.fs.store.ReadAt(f.key, req.Offset, req.Size)
	if !ok {
		// Removed by a concurrent refresh.
		return fuse.ENOENT
	}
	resp.Data = data
	return nil
}
