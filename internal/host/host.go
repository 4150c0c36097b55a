package host

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"wellbeing/internal/binder"
	"wellbeing/internal/config"
	"wellbeing/internal/framework"
	"wellbeing/internal/logging"
	"wellbeing/internal/looper"
)

// Option customizes a Host.
type Option func(*Host)

// WithConfigPath passes the config file to a framework service started on
// demand.
func WithConfigPath(path string) Option {
	return func(h *Host) {
		h.configPath = path
	}
}

// WithLauncher replaces how the framework service is started on demand.
func WithLauncher(launch func(binder.Target) error) Option {
	return func(h *Host) {
		h.launch = launch
	}
}

// Host owns the framework connection for one process.
type Host struct {
	cfg        *config.Config
	logger     *slog.Logger
	sessionID  string
	configPath string
	launch     func(binder.Target) error

	looper    *looper.Looper
	substrate *binder.Substrate
	manager   *framework.Manager

	resolved    chan struct{}
	resolveOnce sync.Once
	mu          sync.Mutex
	available   bool

	startOnce sync.Once
	closeOnce sync.Once
}

// New wires the looper, substrate and manager for cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Host, error) {
	if cfg == nil {
		return nil, errors.New("host requires config")
	}
	sessionID := uuid.NewString()
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldSessionID, sessionID))

	h := &Host{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "host"),
		sessionID: sessionID,
		resolved:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	subOpts := SubstrateOptions(cfg)
	if h.launch != nil {
		subOpts.Launch = h.launch
	}
	h.looper = looper.New(logger)
	h.substrate = binder.NewSubstrate(h.looper, subOpts, logger)
	h.manager = framework.NewManager(Target(cfg, h.configPath), h.substrate, h.looper, h, logger,
		framework.WithBindFlags(BindFlags(cfg)))
	return h, nil
}

// Target describes the configured framework service.
func Target(cfg *config.Config, configPath string) binder.Target {
	args := []string{"framework", "serve", "--socket", cfg.Framework.SocketPath}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return binder.Target{
		Name:       cfg.Framework.Target,
		SocketPath: cfg.Framework.SocketPath,
		Executable: cfg.Framework.Executable,
		Args:       args,
		PeerUID:    cfg.Framework.PeerUID,
	}
}

// BindFlags maps the framework section onto substrate flags.
func BindFlags(cfg *config.Config) binder.Flags {
	var flags binder.Flags
	if cfg.Framework.AutoCreate {
		flags |= binder.FlagAutoCreate
	}
	if cfg.Framework.IncludeCapabilities {
		flags |= binder.FlagIncludeCapabilities
	}
	return flags
}

// SubstrateOptions maps timeouts and backoff from cfg.
func SubstrateOptions(cfg *config.Config) binder.Options {
	initial, maxDelay := cfg.ReconnectBackoff()
	return binder.Options{
		PingTimeout:   cfg.PingTimeout(),
		CallTimeout:   cfg.CallTimeout(),
		LaunchTimeout: cfg.LaunchTimeout(),
		Backoff: binder.BackoffConfig{
			InitialDelay:        initial,
			Multiplier:          2.0,
			MaxDelay:            maxDelay,
			RandomizationFactor: 0.5,
		},
	}
}

// SessionID identifies this host run in logs.
func (h *Host) SessionID() string {
	return h.sessionID
}

// Start runs the looper until ctx ends and requests the first connection.
func (h *Host) Start(ctx context.Context) {
	h.startOnce.Do(func() {
		h.looper.Start(ctx)
		h.logger.Info("host started",
			logging.String("socket", h.cfg.Framework.SocketPath),
			logging.String(logging.FieldTarget, h.cfg.Framework.Target))
		h.looper.Post(h.manager.TryConnect)
	})
}

// OnFrameworkConnected records the first resolution of the framework
// connection.
func (h *Host) OnFrameworkConnected(success bool) {
	h.mu.Lock()
	h.available = success
	h.mu.Unlock()

	if success {
		h.logger.Info("framework available", logging.Int(logging.FieldVersion, h.manager.VersionCode()))
	} else {
		logging.WarnWithContext(h.logger, "framework unavailable", "framework_unavailable",
			logging.String(logging.FieldImpact, "advanced features unavailable"),
			logging.String(logging.FieldErrorHint, "install or enable the wellbeing framework service, then run the host again"))
	}
	h.resolveOnce.Do(func() { close(h.resolved) })
}

// OnFrameworkReconnected logs connections made after the first resolution.
func (h *Host) OnFrameworkReconnected(version int) {
	h.logger.Info("framework reconnected", logging.Int(logging.FieldVersion, version))
}

// Resolved is closed once the first connection attempt has resolved.
func (h *Host) Resolved() <-chan struct{} {
	return h.resolved
}

// WaitResolved blocks until the first resolution and reports whether the
// framework became available.
func (h *Host) WaitResolved(ctx context.Context) (bool, error) {
	select {
	case <-h.resolved:
		return h.FrameworkAvailable(), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// FrameworkAvailable reports the outcome of the first resolution.
func (h *Host) FrameworkAvailable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.available
}

// VersionCode returns the negotiated framework version.
func (h *Host) VersionCode() int {
	return h.manager.VersionCode()
}

// Status reports the connection manager state.
func (h *Host) Status() framework.Status {
	return h.manager.Status()
}

// SetAirplaneMode forwards to the framework; it is skipped below version 1.
func (h *Host) SetAirplaneMode(enabled bool) error {
	return h.manager.SetAirplaneMode(enabled)
}

// AirplaneMode reads the framework's airplane mode.
func (h *Host) AirplaneMode() (bool, error) {
	return h.manager.AirplaneMode()
}

// Reconnect schedules a new connection attempt, e.g. after the binding died.
func (h *Host) Reconnect() bool {
	return h.looper.Post(h.manager.TryConnect)
}

// Close releases the binding and stops the looper. It must not be called
// from the looper.
func (h *Host) Close() {
	h.closeOnce.Do(func() {
		h.manager.Close()
		h.substrate.Close()
		h.looper.Stop()
		h.logger.Info("host stopped")
	})
}
