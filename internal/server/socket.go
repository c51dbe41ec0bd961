package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultSocketPath returns where the control socket lives unless
// overridden: the user's runtime dir, or a uid-scoped file under /tmp.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "bwfs.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("bwfs-%d.sock", os.Getuid()))
}

// listenSocket binds the unix socket at path, restricted to the owning
// user. A leftover socket file is probed first: if something answers, a
// live instance owns it and we refuse to disturb it; if nothing does, the
// stale file is removed and the bind retried.
func listenSocket(path string, log *zap.Logger) (net.Listener, error) {
	ln, err := net.Listen("unix", path)
	if err != nil {
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, err
		}
		conn, dialErr := net.DialTimeout("unix", path, time.Second)
		if dialErr == nil {
			conn.Close()
			return nil, fmt.Errorf("socket %s is in use by a running instance", path)
		}
		log.Debug("removing stale control socket", zap.String("path", path))
		if rmErr := os.Remove(path); rmErr != nil {
			return nil, fmt.Errorf("remove stale socket: %w", rmErr)
		}
		ln, err = net.Listen("unix", path)
		if err != nil {
			return nil, err
		}
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}
	return ln, nil
}

// Server serves the control API on a unix socket.
type Server struct {
	http *http.Server
	path string
	log  *zap.Logger
}

// New returns a Server for the given handler and socket path.
func New(handler http.Handler, socketPath string, log *zap.Logger) *Server {
	return &Server{
		http: &http.Server{Handler: handler},
		path: socketPath,
		log:  log,
	}
}

// ListenAndServe binds the socket and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := listenSocket(s.path, s.log)
	if err != nil {
		return err
	}
	s.log.Info("control server listening", zap.String("socket", s.path))
	return s.http.Serve(ln)
}

// Shutdown stops the server and removes the socket file.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	if rmErr := os.Remove(s.path); rmErr != nil && !os.IsNotExist(rmErr) {
		s.log.Warn("failed to remove control socket", zap.Error(rmErr))
	}
	return err
}
