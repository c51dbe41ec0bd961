package mapfs

import (
	"fmt"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"go.uber.org/zap"
)

// Mount is a mounted filesystem being served.
type Mount struct {
	conn       *fuse.Conn
	mountpoint string
	log        *zap.Logger
	served     chan error
}

// MountAndServe mounts fsys read-only at mountpoint and starts serving
// kernel requests in the background.
func MountAndServe(mountpoint string, fsys *FS, allowOther bool, log *zap.Logger) (*Mount, error) {
	opts := []fuse.MountOption{
		fuse.ReadOnly(),
		fuse.FSName("bwfs"),
		fuse.Subtype("bwfs"),
	}
	if allowOther {
		opts = append(opts, fuse.AllowOther())
	}

	conn, err := fuse.Mount(mountpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", mountpoint, err)
	}
	log.Info("filesystem mounted", zap.String("mountpoint", mountpoint))

	m := &Mount{conn: conn, mountpoint: mountpoint, log: log, served: make(chan error, 1)}
	go func() {
		m.served <- fusefs.Serve(conn, fsys)
	}()
	return m, nil
}

// Wait blocks until serving stops (unmount or fatal error).
func (m *Mount) Wait() error {
	return <-m.served
}

// Close unmounts and releases the FUSE connection.
func (m *Mount) Close() error {
	if err := fuse.Unmount(m.mountpoint); err != nil {
		m.log.Warn("unmount failed", zap.String("mountpoint", m.mountpoint), zap.Error(err))
	}
	return m.conn.Close()
}
