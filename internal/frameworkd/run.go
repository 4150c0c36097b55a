package frameworkd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"wellbeing/internal/binder"
	"wellbeing/internal/config"
	"wellbeing/internal/logging"
)

// ErrAlreadyRunning reports another instance holding the socket lock.
var ErrAlreadyRunning = errors.New("another framework service instance is already running")

// Instance is a running framework service.
type Instance struct {
	socket string
	lock   *flock.Flock
	store  *Store
	server *binder.Server
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// LockPath returns the lock file guarding socket.
func LockPath(socket string) string {
	return socket + ".lock"
}

// Start acquires the lock, opens the store and begins serving.
func Start(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Instance, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	logger = logging.NewComponentLogger(logger, "frameworkd")
	socket := cfg.Framework.SocketPath
	if err := os.MkdirAll(filepath.Dir(socket), 0o755); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}

	lock := flock.New(LockPath(socket))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}

	store, err := OpenStore(cfg.Service.Database)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	svc := NewService(store, cfg.Service.Enabled, cfg.Service.Version, logger)
	server, err := binder.NewServer(ctx, socket, svc, logger)
	if err != nil {
		_ = store.Close()
		_ = lock.Unlock()
		return nil, err
	}
	server.Serve()

	logger.Info("framework service started",
		logging.String("socket", socket),
		logging.Int(logging.FieldVersion, cfg.Service.Version),
		logging.Bool("enabled", cfg.Service.Enabled),
		logging.String("database", store.Path()))
	return &Instance{socket: socket, lock: lock, store: store, server: server, logger: logger}, nil
}

// Socket returns the socket the instance serves on.
func (i *Instance) Socket() string {
	return i.socket
}

// Close stops serving and releases the store and lock. It is idempotent.
func (i *Instance) Close() error {
	i.closeOnce.Do(func() {
		i.server.Close()
		var errs []error
		if err := i.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		if err := i.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("release lock: %w", err))
		}
		i.closeErr = errors.Join(errs...)
		i.logger.Info("framework service stopped")
	})
	return i.closeErr
}

// Run serves until ctx is done.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	inst, err := Start(ctx, cfg, logger)
	if err != nil {
		return err
	}
	<-ctx.Done()
	return inst.Close()
}
