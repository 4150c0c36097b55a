package framework

import (
	"log/slog"
	"sync"

	"wellbeing/internal/binder"
	"wellbeing/internal/logging"
)

// DefaultTarget is the well-known name of the framework service.
const DefaultTarget = "org.eu.droid_ng.wellbeing.framework.FRAMEWORK_SERVICE"

// BindFlags are requested on every bind of the framework service.
const BindFlags = binder.FlagAutoCreate | binder.FlagIncludeCapabilities

// Substrate establishes and releases bindings.
type Substrate interface {
	Bind(target binder.Target, conn binder.Connection, flags binder.Flags) error
	Unbind(conn binder.Connection)
}

// Subscriber is told whether the first connection attempt succeeded.
type Subscriber interface {
	OnFrameworkConnected(success bool)
}

// ReconnectSubscriber is optionally implemented by subscribers interested in
// connections established after the first resolution.
type ReconnectSubscriber interface {
	OnFrameworkReconnected(version int)
}

// Status is a point-in-time view of the manager.
type Status struct {
	Target     string
	Version    int
	Connected  bool
	Connecting bool
	Resolved   bool
}

// Manager owns the connection to one framework service target.
//
// Substrate events arrive serialized on the looper. TryConnect, VersionCode
// and the gated calls may be used from any goroutine; the mutex guards the
// state tuple and is never held across substrate, channel or subscriber
// calls.
type Manager struct {
	target     binder.Target
	substrate  Substrate
	poster     binder.Poster
	subscriber Subscriber
	flags      binder.Flags
	logger     *slog.Logger

	mu       sync.Mutex
	state    state
	attempts int
}

// Option customizes a Manager.
type Option func(*Manager)

// WithBindFlags overrides BindFlags.
func WithBindFlags(flags binder.Flags) Option {
	return func(m *Manager) {
		m.flags = flags
	}
}

// NewManager builds a manager. Nothing happens until TryConnect.
func NewManager(target binder.Target, substrate Substrate, poster binder.Poster, subscriber Subscriber, logger *slog.Logger, opts ...Option) *Manager {
	if target.Name == "" {
		target.Name = DefaultTarget
	}
	m := &Manager{
		target:     target,
		substrate:  substrate,
		poster:     poster,
		subscriber: subscriber,
		flags:      BindFlags,
		logger: logging.NewComponentLogger(logger, "framework").
			With(logging.String(logging.FieldTarget, target.Name)),
		state: initialState(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TryConnect binds the framework service unless an attempt is outstanding or
// the current channel answers a ping.
func (m *Manager) TryConnect() {
	m.mu.Lock()
	if m.state.connecting() {
		m.mu.Unlock()
		return
	}
	handle := m.state.handle
	m.mu.Unlock()

	if handle != nil && handle.IsAlive() && handle.Ping() {
		return
	}

	m.mu.Lock()
	if m.state.handle != nil && m.state.handle != handle {
		m.mu.Unlock()
		return
	}
	next, ok := m.state.connectRequested()
	if !ok {
		m.mu.Unlock()
		return
	}
	m.state = next
	m.attempts++
	attempt := m.attempts
	m.mu.Unlock()

	m.logger.Debug("binding framework service",
		logging.Int("attempt", attempt),
		logging.String("flags", m.flags.String()))
	if err := m.substrate.Bind(m.target, m, m.flags); err != nil {
		m.logger.Info("framework bind rejected", logging.Error(err), logging.Int("attempt", attempt))
		m.transition(func(s state) (state, effects) { return s.bindRejected() })
	}
}

// VersionCode returns the negotiated protocol version: 0 when absent, -1
// while an attempt is outstanding. A dead channel is invalidated first.
func (m *Manager) VersionCode() int {
	m.mu.Lock()
	handle := m.state.handle
	m.mu.Unlock()
	if handle == nil {
		return m.version()
	}

	alive := handle.IsAlive()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.handle == handle {
		m.state = m.state.probed(alive)
	}
	return m.state.version
}

// SetAirplaneMode forwards to the framework when the negotiated version
// allows it and is a no-op otherwise. Failures on the channel match
// ErrCommunication.
func (m *Manager) SetAirplaneMode(enabled bool) error {
	remote, ok := m.gate(MinVersionSetAirplaneMode)
	if !ok {
		m.logger.Debug("set airplane mode skipped", logging.Int(logging.FieldVersion, m.version()))
		return nil
	}
	return remote.SetAirplaneMode(enabled)
}

// AirplaneMode reads the framework's airplane mode. It returns
// ErrUnavailable below the minimum version.
func (m *Manager) AirplaneMode() (bool, error) {
	remote, ok := m.gate(MinVersionAirplaneMode)
	if !ok {
		return false, ErrUnavailable
	}
	return remote.AirplaneMode()
}

// Status reports the current connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Target:     m.target.Name,
		Version:    m.state.version,
		Connected:  m.state.handle != nil,
		Connecting: m.state.connecting(),
		Resolved:   m.state.notified,
	}
}

// Close releases the binding. The manager may be connected again afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.state = m.state.invalidated()
	m.mu.Unlock()
	m.substrate.Unbind(m)
}

// OnConnected wraps the channel and negotiates the version.
func (m *Manager) OnConnected(_ binder.Target, handle binder.Handle) {
	remote := NewRemote(handle)
	m.mu.Lock()
	m.state = m.state.channelDelivered(handle, remote)
	m.mu.Unlock()

	version, err := remote.VersionCode()
	if err != nil {
		logging.WarnWithContext(m.logger, "failed to get framework version", "framework_version_query_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the framework service logs and its protocol version"),
			logging.String(logging.FieldImpact, "framework features unavailable until the service is rebound"))
	} else {
		m.logger.Info("framework connected", logging.Int(logging.FieldVersion, version))
	}
	m.transition(func(s state) (state, effects) { return s.versionQueried(handle, version, err) })
}

// OnDisconnected invalidates the channel and schedules a reconnect on the
// looper.
func (m *Manager) OnDisconnected(binder.Target) {
	m.logger.Info("framework disconnected; scheduling reconnect")
	m.transition(func(s state) (state, effects) { return s.disconnected() })
}

// OnBindingDied invalidates the channel and releases the binding. No retry
// is scheduled.
func (m *Manager) OnBindingDied(binder.Target) {
	logging.WarnWithContext(m.logger, "framework binding died", "framework_binding_died",
		logging.String(logging.FieldErrorHint, "restart the host or reconnect once the framework service is reinstalled"),
		logging.String(logging.FieldImpact, "framework features unavailable"))
	m.transition(func(s state) (state, effects) { return s.bindingDied() })
}

// OnNullBinding handles a service that declined to expose its interface.
func (m *Manager) OnNullBinding(binder.Target) {
	m.logger.Info("framework service declined binding")
	m.transition(func(s state) (state, effects) { return s.nullBinding() })
}

func (m *Manager) version() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.version
}

func (m *Manager) gate(minVersion int) (Remote, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.version < minVersion {
		return nil, false
	}
	return m.state.remote, true
}

func (m *Manager) transition(fn func(state) (state, effects)) {
	m.mu.Lock()
	next, fx := fn(m.state)
	m.state = next
	m.mu.Unlock()
	m.apply(fx)
}

func (m *Manager) apply(fx effects) {
	if fx.unbind {
		m.substrate.Unbind(m)
	}
	if fx.retry && m.poster != nil {
		if !m.poster.Post(m.TryConnect) {
			m.logger.Debug("reconnect not scheduled; looper stopped")
		}
	}
	if fx.notify && m.subscriber != nil {
		m.subscriber.OnFrameworkConnected(fx.success)
	}
	if fx.reconnected {
		if rs, ok := m.subscriber.(ReconnectSubscriber); ok {
			rs.OnFrameworkReconnected(m.version())
		}
	}
}
