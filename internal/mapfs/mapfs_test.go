package mapfs

import (
	"context"
	"testing"
	"time"

	"bazil.org/fuse"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeffas/bwfs/internal/store"
)

func newFS(t *testing.T, records ...store.ItemRecord) (*FS, *store.Store) {
	t.Helper()
	st := store.New()
	if len(records) > 0 {
		st.ReplaceAll(records)
	}
	return New(st, zap.NewNop()), st
}

func record(id, name, dir, content string) store.ItemRecord {
	return store.ItemRecord{
		ID:          id,
		Name:        name,
		Dir:         dir,
		Content:     []byte(content),
		RefreshedAt: time.Unix(1700000000, 0),
	}
}

func lookupFile(t *testing.T, d *Dir, name string) *File {
	t.Helper()
	node, err := d.Lookup(context.Background(), name)
	require.NoError(t, err)
	f, ok := node.(*File)
	require.True(t, ok, "lookup %q returned %T; want *File", name, node)
	return f
}

func TestRootListableWhenEmpty(t *testing.T) {
	fsys, _ := newFS(t)
	root, err := fsys.Root()
	require.NoError(t, err)
	d := root.(*Dir)

	var attr fuse.Attr
	require.NoError(t, d.Attr(context.Background(), &attr))
	require.True(t, attr.Mode.IsDir())

	ents, err := d.ReadDirAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, ents)
}

func TestReadDirAllSortedByName(t *testing.T) {
	fsys, _ := newFS(t,
		record("a1", "zulu", "", "z"),
		record("a2", "alpha", "", "a"),
		record("a3", "creds", "personal", "c"),
	)
	root, _ := fsys.Root()

	ents, err := root.(*Dir).ReadDirAll(context.Background())
	require.NoError(t, err)

	names := make([]string, len(ents))
	for i, e := range ents {
		names[i] = e.Name
	}
	require.Equal(t, []string{"alpha", "personal", "zulu"}, names)
	require.Equal(t, fuse.DT_Dir, ents[1].Type)
	require.Equal(t, fuse.DT_File, ents[0].Type)
}

func TestLookupAndAttr(t *testing.T) {
	fsys, _ := newFS(t, record("a1", "github", "", "hunter2"))
	root, _ := fsys.Root()
	d := root.(*Dir)

	f := lookupFile(t, d, "github")
	var attr fuse.Attr
	require.NoError(t, f.Attr(context.Background(), &attr))
	require.EqualValues(t, len("hunter2"), attr.Size)
	require.False(t, attr.Mode.IsDir())
	require.Equal(t, time.Unix(1700000000, 0), attr.Mtime)

	_, err := d.Lookup(context.Background(), "missing")
	require.ErrorIs(t, err, fuse.ENOENT)
}

func TestInodesStableAcrossRefresh(t *testing.T) {
	fsys, st := newFS(t, record("a1", "github", "", "v1"))
	root, _ := fsys.Root()
	d := root.(*Dir)

	var before fuse.Attr
	require.NoError(t, lookupFile(t, d, "github").Attr(context.Background(), &before))

	st.ReplaceAll([]store.ItemRecord{record("a1", "github", "", "v2")})

	var after fuse.Attr
	require.NoError(t, lookupFile(t, d, "github").Attr(context.Background(), &after))
	require.Equal(t, before.Inode, after.Inode)
	require.NotZero(t, after.Inode)

	var rootAttr fuse.Attr
	require.NoError(t, d.Attr(context.Background(), &rootAttr))
	require.EqualValues(t, 1, rootAttr.Inode)
}

func TestLookupFolderAndNestedFile(t *testing.T) {
	fsys, _ := newFS(t, record("a1", "vpn", "work", "secret"))
	root, _ := fsys.Root()

	node, err := root.(*Dir).Lookup(context.Background(), "work")
	require.NoError(t, err)
	sub, ok := node.(*Dir)
	require.True(t, ok, "lookup work returned %T; want *Dir", node)

	f := lookupFile(t, sub, "vpn")
	var attr fuse.Attr
	require.NoError(t, f.Attr(context.Background(), &attr))
	require.EqualValues(t, len("secret"), attr.Size)

	ents, err := sub.ReadDirAll(context.Background())
	require.NoError(t, err)
	require.Len(t, ents, 1)
	require.Equal(t, "vpn", ents[0].Name)
}

func TestReadRanges(t *testing.T) {
	fsys, _ := newFS(t, record("a1", "github", "", "hunter2"))
	root, _ := fsys.Root()
	f := lookupFile(t, root.(*Dir), "github")

	cases := []struct {
		name   string
		offset int64
		size   int
		want   string
	}{
		{"full", 0, 7, "hunter2"},
		{"over-read", 0, 100, "hunter2"},
		{"middle", 3, 3, "ter"},
		{"tail", 6, 10, "2"},
		{"at end", 7, 10, ""},
		{"past end", 42, 10, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var resp fuse.ReadResponse
			err := f.Read(context.Background(), &fuse.ReadRequest{Offset: tc.offset, Size: tc.size}, &resp)
			require.NoError(t, err)
			require.Equal(t, tc.want, string(resp.Data))
		})
	}
}

func TestReadDuringLockAndRefresh(t *testing.T) {
	fsys, st := newFS(t, record("a1", "github", "", "hunter2"))
	root, _ := fsys.Root()
	f := lookupFile(t, root.(*Dir), "github")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			st.Clear()
			st.ReplaceAll([]store.ItemRecord{record("a1", "github", "", "hunter2")})
		}
	}()

	// Reads racing the scrub/install cycle must see either the full
	// content or ENOENT, never scrubbed or torn bytes.
	for {
		select {
		case <-done:
			return
		default:
		}
		var resp fuse.ReadResponse
		err := f.Read(context.Background(), &fuse.ReadRequest{Offset: 0, Size: 16}, &resp)
		if err == nil && len(resp.Data) > 0 {
			require.Equal(t, "hunter2", string(resp.Data))
		} else if err != nil {
			require.ErrorIs(t, err, fuse.ENOENT)
		}

		var attr fuse.Attr
		if err := f.Attr(context.Background(), &attr); err == nil && attr.Size > 0 {
			require.EqualValues(t, len("hunter2"), attr.Size)
		}
	}
}

func TestStaleNodesAfterReplace(t *testing.T) {
	fsys, st := newFS(t, record("a1", "github", "", "hunter2"))
	root, _ := fsys.Root()
	d := root.(*Dir)
	f := lookupFile(t, d, "github")

	// The item disappears in the next refresh.
	st.ReplaceAll([]store.ItemRecord{record("b1", "other", "", "x")})

	var resp fuse.ReadResponse
	err := f.Read(context.Background(), &fuse.ReadRequest{Offset: 0, Size: 10}, &resp)
	require.ErrorIs(t, err, fuse.ENOENT)

	var attr fuse.Attr
	require.ErrorIs(t, f.Attr(context.Background(), &attr), fuse.ENOENT)
}

func TestStaleDirAfterClear(t *testing.T) {
	fsys, st := newFS(t, record("a1", "vpn", "work", "secret"))
	root, _ := fsys.Root()
	node, err := root.(*Dir).Lookup(context.Background(), "work")
	require.NoError(t, err)
	sub := node.(*Dir)

	st.Clear()

	_, err = sub.ReadDirAll(context.Background())
	require.ErrorIs(t, err, fuse.ENOENT)

	// The root survives a clear; it is just empty.
	ents, err := root.(*Dir).ReadDirAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, ents)
}
