package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeffas/bwfs/internal/bwclient"
	"github.com/jeffas/bwfs/internal/config"
	"github.com/jeffas/bwfs/internal/logger"
	"github.com/jeffas/bwfs/internal/mapfs"
	"github.com/jeffas/bwfs/internal/server"
	"github.com/jeffas/bwfs/internal/store"
	"github.com/jeffas/bwfs/internal/vault"
)

var (
	serveBWBin      string
	serveAllowOther bool
	serveConfigPath string
	serveLogLevel   string
)

var serveCmd = &cobra.Command{
	Use:   "serve <mountpoint>",
	Short: "Mount the vault filesystem and run the control server",
	Args:  cobra.ExactArgs(1),
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveBWBin, "bw-bin", "", `path to the bw binary (default "bw")`)
	serveCmd.Flags().BoolVar(&serveAllowOther, "allow-other", false, "allow other users to access the mount")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "path to a JSON config file")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", `log level (default "info")`)
}

func runServe(cmd *cobra.Command, args []string) error {
	mountpoint := args[0]

	opts, err := config.Load(serveConfigPath)
	if err != nil {
		return err
	}
	if serveBWBin != "" {
		opts.BWBin = serveBWBin
	}
	if socketPath != "" {
		opts.Socket = socketPath
	}
	if serveAllowOther {
		opts.AllowOther = true
	}
	if serveLogLevel != "" {
		opts.LogLevel = serveLogLevel
	}
	if opts.Socket == "" {
		opts.Socket = server.DefaultSocketPath()
	}

	log := logger.New()
	if err := log.Init(opts.LogLevel); err != nil {
		return err
	}
	defer func() { _ = log.Log.Sync() }()
	zl := log.Log

	// Wire the core: backend client → engine → store → filesystem.
	st := store.New()
	client := bwclient.New(opts.BWBin, zl)
	engine := vault.New(client, st, zl)

	mnt, err := mapfs.MountAndServe(mountpoint, mapfs.New(st, zl), opts.AllowOther, zl)
	if err != nil {
		return err
	}

	handler := &server.VaultHandler{Vault: engine, Log: zl}
	srv := server.New(server.NewRouter(handler, zl), opts.Socket, zl)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()
	mountErr := make(chan error, 1)
	go func() { mountErr <- mnt.Wait() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		zl.Info("shutting down")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("control server failed", zap.Error(err))
		}
	case err := <-mountErr:
		if err != nil {
			zl.Error("filesystem serving stopped", zap.Error(err))
		}
	}

	// Scrub secrets before the process goes away; backend lock failures
	// are logged by the engine and must not block shutdown.
	_ = engine.Lock(context.Background())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return mnt.Close()
}
