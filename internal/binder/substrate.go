package binder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"wellbeing/internal/logging"
)

// Options configures a Substrate.
type Options struct {
	PingTimeout   time.Duration
	CallTimeout   time.Duration
	DialTimeout   time.Duration
	LaunchTimeout time.Duration
	Backoff       BackoffConfig
	// Launch starts the service for a target. Defaults to running
	// target.Executable with target.Args detached.
	Launch func(Target) error
}

func (o Options) withDefaults() Options {
	if o.PingTimeout <= 0 {
		o.PingTimeout = 500 * time.Millisecond
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 5 * time.Second
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 2 * time.Second
	}
	if o.LaunchTimeout <= 0 {
		o.LaunchTimeout = 10 * time.Second
	}
	if o.Backoff.InitialDelay <= 0 {
		o.Backoff = DefaultBackoff()
	}
	if o.Launch == nil {
		o.Launch = func(t Target) error { return Launch(t.Executable, t.Args) }
	}
	return o
}

// Substrate owns the bindings of one client process.
type Substrate struct {
	poster   Poster
	opts     Options
	logger   *slog.Logger
	clientID string

	mu       sync.Mutex
	bindings map[Connection]*binding
	closed   bool
	wg       sync.WaitGroup
}

// NewSubstrate builds a substrate that delivers events through poster.
func NewSubstrate(poster Poster, opts Options, logger *slog.Logger) *Substrate {
	return &Substrate{
		poster:   poster,
		opts:     opts.withDefaults(),
		logger:   logging.NewComponentLogger(logger, "binder"),
		clientID: uuid.NewString(),
		bindings: make(map[Connection]*binding),
	}
}

// ClientID identifies this substrate to services.
func (s *Substrate) ClientID() string {
	return s.clientID
}

// Bind requests a binding of conn to target. It fails synchronously with
// ErrNotInstalled when the service socket is absent and the service cannot be
// started. An existing binding for conn is reused; its next event answers
// this request.
func (s *Substrate) Bind(target Target, conn Connection, flags Flags) error {
	if conn == nil {
		return errors.New("binder: bind requires a connection")
	}
	if target.SocketPath == "" {
		return fmt.Errorf("bind %s: socket path is empty", target.Name)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("bind %s: %w", target.Name, ErrClosed)
	}

	if existing, ok := s.bindings[conn]; ok && !existing.finished() {
		s.mu.Unlock()
		existing.rebind()
		return nil
	}

	if _, err := os.Stat(target.SocketPath); err != nil && !target.canLaunch(flags) {
		s.mu.Unlock()
		return fmt.Errorf("bind %s at %s: %w", target.Name, target.SocketPath, ErrNotInstalled)
	}

	ctx, cancel := context.WithCancel(logging.WithCorrelationID(context.Background(), uuid.NewString()))
	b := &binding{
		substrate: s,
		target:    target,
		conn:      conn,
		flags:     flags,
		cancel:    cancel,
		done:      make(chan struct{}),
		logger:    logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldTarget, target.Name)),
	}
	if previous, ok := s.bindings[conn]; ok {
		previous.stop()
	}
	s.bindings[conn] = b
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		b.run(ctx)
	}()
	b.logger.Debug("bind requested",
		logging.String("socket", target.SocketPath),
		logging.String("flags", flags.String()))
	return nil
}

// Unbind releases the binding of conn and closes its channel. No further
// events are delivered to conn for it. Unbind is idempotent.
func (s *Substrate) Unbind(conn Connection) {
	s.mu.Lock()
	b, ok := s.bindings[conn]
	if ok {
		delete(s.bindings, conn)
	}
	s.mu.Unlock()
	if ok {
		b.stop()
		b.logger.Debug("binding released")
	}
}

// Close releases every binding and waits for their goroutines to exit.
func (s *Substrate) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.closed = true
	bindings := make([]*binding, 0, len(s.bindings))
	for conn, b := range s.bindings {
		bindings = append(bindings, b)
		delete(s.bindings, conn)
	}
	s.mu.Unlock()

	for _, b := range bindings {
		b.stop()
	}
	s.wg.Wait()
}

func (s *Substrate) current(b *binding) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.bindings[b.conn] == b
}

type eventKind int

const (
	eventConnected eventKind = iota
	eventDisconnected
	eventBindingDied
	eventNullBinding
)

func (k eventKind) String() string {
	switch k {
	case eventConnected:
		return "connected"
	case eventDisconnected:
		return "disconnected"
	case eventBindingDied:
		return "binding_died"
	case eventNullBinding:
		return "null_binding"
	default:
		return "unknown"
	}
}

// binding is one persistent bind of a connection to a target.
type binding struct {
	substrate *Substrate
	target    Target
	conn      Connection
	flags     Flags
	cancel    context.CancelFunc
	done      chan struct{}
	logger    *slog.Logger

	mu     sync.Mutex
	handle *rpcHandle
}

func (b *binding) finished() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// rebind answers a repeated bind request. A live channel is redelivered;
// otherwise the dial loop is already working on the next connected event.
func (b *binding) rebind() {
	b.mu.Lock()
	h := b.handle
	b.mu.Unlock()
	if h != nil && h.IsAlive() {
		b.post(eventConnected, h)
	}
}

func (b *binding) stop() {
	b.cancel()
	b.mu.Lock()
	h := b.handle
	b.handle = nil
	b.mu.Unlock()
	if h != nil {
		_ = h.Close()
	}
}

func (b *binding) setHandle(h *rpcHandle) {
	b.mu.Lock()
	b.handle = h
	b.mu.Unlock()
}

func (b *binding) clearHandle(h *rpcHandle) {
	b.mu.Lock()
	if b.handle == h {
		b.handle = nil
	}
	b.mu.Unlock()
	_ = h.Close()
}

// post delivers an event on the looper unless the binding was released in
// the meantime. A connected event whose channel already closed is dropped;
// the disconnected event queued behind it supersedes it.
func (b *binding) post(kind eventKind, h *rpcHandle) {
	s := b.substrate
	posted := s.poster.Post(func() {
		if !s.current(b) {
			return
		}
		switch kind {
		case eventConnected:
			if !h.IsAlive() {
				return
			}
			b.conn.OnConnected(b.target, h)
		case eventDisconnected:
			b.conn.OnDisconnected(b.target)
		case eventBindingDied:
			b.conn.OnBindingDied(b.target)
		case eventNullBinding:
			b.conn.OnNullBinding(b.target)
		}
	})
	if !posted {
		b.logger.Debug("event dropped; looper stopped", logging.String("event", kind.String()))
	}
}

func (b *binding) run(ctx context.Context) {
	defer close(b.done)

	opts := b.substrate.opts
	// Until the first connect the schedule gives up after the launch timeout.
	schedule := opts.Backoff.NewSchedule(opts.LaunchTimeout)
	attempt := 0

	for {
		h, available, err := b.establish(ctx)
		if ctx.Err() != nil {
			if h != nil {
				_ = h.Close()
			}
			return
		}

		switch {
		case err == nil && !available:
			b.logger.Info("service declined binding")
			b.post(eventNullBinding, nil)
			return

		case err == nil:
			attempt = 0
			schedule = opts.Backoff.NewSchedule(0)
			b.setHandle(h)
			b.logger.Debug("channel connected")
			b.post(eventConnected, h)

			select {
			case <-h.Lost():
			case <-ctx.Done():
				b.clearHandle(h)
				return
			}
			b.clearHandle(h)
			if ctx.Err() != nil {
				return
			}
			b.logger.Info("service connection lost; binding persists")
			b.post(eventDisconnected, nil)
			continue

		case errors.Is(err, ErrBindingDead) || errors.Is(err, ErrPeerRejected):
			b.die(err)
			return
		}

		delay := schedule.NextBackOff()
		if delay == backoff.Stop {
			b.die(fmt.Errorf("%w: %w", ErrBindingDead, err))
			return
		}
		attempt++
		b.logger.Debug("service unreachable; retrying",
			logging.Error(err),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (b *binding) die(err error) {
	logging.WarnWithContext(b.logger, "binding died", "binder_binding_died",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the framework service installation and socket ownership"),
		logging.String(logging.FieldImpact, "framework stays disconnected until the host rebinds"))
	b.post(eventBindingDied, nil)
}

// establish makes one attempt at a bound channel. available false with a nil
// error is a null binding.
func (b *binding) establish(ctx context.Context) (*rpcHandle, bool, error) {
	opts := b.substrate.opts

	if _, err := os.Stat(b.target.SocketPath); err != nil {
		if !b.target.canLaunch(b.flags) {
			return nil, false, err
		}
		b.logger.Info("starting framework service", logging.String("executable", b.target.Executable))
		if err := opts.Launch(b.target); err != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrBindingDead, err)
		}
		if err := WaitForSocket(ctx, b.target.SocketPath, opts.LaunchTimeout); err != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			return nil, false, fmt.Errorf("%w: %w", ErrBindingDead, err)
		}
	}

	dialer := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", b.target.SocketPath)
	if err != nil {
		return nil, false, err
	}
	if err := checkPeer(conn, b.target.PeerUID); err != nil {
		_ = conn.Close()
		return nil, false, err
	}

	h := newHandle(conn, opts.PingTimeout, opts.CallTimeout)
	req := BindRequest{
		ClientID:            b.substrate.clientID,
		Target:              b.target.Name,
		IncludeCapabilities: b.flags.Has(FlagIncludeCapabilities),
	}
	var resp BindResponse
	if err := h.Call(MethodBind, req, &resp); err != nil {
		_ = h.Close()
		return nil, false, err
	}
	if !resp.Available {
		_ = h.Close()
		if resp.Reason != "" {
			b.logger.Debug("bind declined", logging.String("reason", resp.Reason))
		}
		return nil, false, nil
	}
	return h, true, nil
}
