package framework_test

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"wellbeing/internal/binder"
	"wellbeing/internal/framework"
	"wellbeing/internal/logging"
)

type fakeHandle struct {
	mu        sync.Mutex
	alive     bool
	pingOK    bool
	version   int
	queryErr  error
	callErr   error
	airplane  []bool
	callCount int
	// duringQuery runs inside the version query, before it answers.
	duringQuery func()
}

func newHandle(version int) *fakeHandle {
	return &fakeHandle{alive: true, pingOK: true, version: version}
}

func (h *fakeHandle) IsAlive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alive
}

func (h *fakeHandle) Ping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alive && h.pingOK
}

func (h *fakeHandle) Call(method string, args any, reply any) error {
	h.mu.Lock()
	hook := h.duringQuery
	h.mu.Unlock()
	if method == binder.MethodVersionCode && hook != nil {
		hook()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.callCount++
	switch method {
	case binder.MethodVersionCode:
		if h.queryErr != nil {
			return h.queryErr
		}
		reply.(*binder.VersionCodeResponse).Version = h.version
	case binder.MethodSetAirplaneMode:
		if h.callErr != nil {
			return h.callErr
		}
		h.airplane = append(h.airplane, args.(binder.SetAirplaneModeRequest).Enabled)
	case binder.MethodAirplaneMode:
		if h.callErr != nil {
			return h.callErr
		}
		if n := len(h.airplane); n > 0 {
			reply.(*binder.AirplaneModeResponse).Enabled = h.airplane[n-1]
		}
	}
	return nil
}

func (h *fakeHandle) kill() {
	h.mu.Lock()
	h.alive = false
	h.mu.Unlock()
}

type fakeSubstrate struct {
	mu      sync.Mutex
	bindErr error
	binds   int
	unbinds int
	flags   binder.Flags
}

func (s *fakeSubstrate) Bind(_ binder.Target, _ binder.Connection, flags binder.Flags) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.binds++
	s.flags = flags
	return s.bindErr
}

func (s *fakeSubstrate) Unbind(binder.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unbinds++
}

func (s *fakeSubstrate) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binds, s.unbinds
}

// queue stands in for the looper; tests drain it explicitly.
type queue struct {
	tasks []func()
}

func (q *queue) Post(fn func()) bool {
	q.tasks = append(q.tasks, fn)
	return true
}

func (q *queue) drain() {
	for len(q.tasks) > 0 {
		fn := q.tasks[0]
		q.tasks = q.tasks[1:]
		fn()
	}
}

type subscriber struct {
	results     []bool
	reconnected []int
}

func (s *subscriber) OnFrameworkConnected(success bool) { s.results = append(s.results, success) }

func (s *subscriber) OnFrameworkReconnected(version int) {
	s.reconnected = append(s.reconnected, version)
}

type harness struct {
	manager   *framework.Manager
	substrate *fakeSubstrate
	queue     *queue
	sub       *subscriber
	target    binder.Target
}

func newHarness() *harness {
	h := &harness{
		substrate: &fakeSubstrate{},
		queue:     &queue{},
		sub:       &subscriber{},
		target:    binder.Target{Name: framework.DefaultTarget, SocketPath: "/run/framework.sock", PeerUID: -1},
	}
	h.manager = framework.NewManager(h.target, h.substrate, h.queue, h.sub, logging.NewNop())
	return h
}

func (h *harness) connect(t *testing.T, version int) *fakeHandle {
	t.Helper()
	h.manager.TryConnect()
	handle := newHandle(version)
	h.manager.OnConnected(h.target, handle)
	if got := h.manager.VersionCode(); got != version {
		t.Fatalf("expected version %d after connect, got %d", version, got)
	}
	return handle
}

func assertInvalidated(t *testing.T, m *framework.Manager) {
	t.Helper()
	st := m.Status()
	if st.Version != 0 || st.Connected || st.Connecting {
		t.Fatalf("expected invalidated state, got %+v", st)
	}
}

func TestConnectedNegotiatesVersion(t *testing.T) {
	h := newHarness()
	h.manager.TryConnect()

	if got := h.manager.VersionCode(); got != -1 {
		t.Fatalf("expected -1 while connecting, got %d", got)
	}
	if h.substrate.flags != binder.FlagAutoCreate|binder.FlagIncludeCapabilities {
		t.Fatalf("unexpected bind flags %s", h.substrate.flags)
	}

	h.manager.OnConnected(h.target, newHandle(3))
	if got := h.manager.VersionCode(); got != 3 {
		t.Fatalf("expected version 3, got %d", got)
	}
	if len(h.sub.results) != 1 || !h.sub.results[0] {
		t.Fatalf("expected single success notification, got %v", h.sub.results)
	}
	st := h.manager.Status()
	if !st.Connected || !st.Resolved || st.Connecting {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestTryConnectWhileOutstandingBindsOnce(t *testing.T) {
	h := newHarness()
	h.manager.TryConnect()
	h.manager.TryConnect()

	if binds, _ := h.substrate.counts(); binds != 1 {
		t.Fatalf("expected one bind request, got %d", binds)
	}
}

func TestTryConnectSkipsLiveChannel(t *testing.T) {
	h := newHarness()
	h.connect(t, 1)

	h.manager.TryConnect()
	if binds, _ := h.substrate.counts(); binds != 1 {
		t.Fatalf("expected no rebind of a live channel, got %d binds", binds)
	}
}

func TestTryConnectRebindsUnresponsiveChannel(t *testing.T) {
	h := newHarness()
	handle := h.connect(t, 1)
	handle.mu.Lock()
	handle.pingOK = false
	handle.mu.Unlock()

	h.manager.TryConnect()
	if binds, _ := h.substrate.counts(); binds != 2 {
		t.Fatalf("expected a rebind when ping fails, got %d binds", binds)
	}
	if got := h.manager.VersionCode(); got != -1 {
		t.Fatalf("expected -1 while rebinding, got %d", got)
	}
}

func TestNullBindingNotifiesFailure(t *testing.T) {
	h := newHarness()
	h.manager.TryConnect()
	h.manager.OnNullBinding(h.target)

	if got := h.manager.VersionCode(); got != 0 {
		t.Fatalf("expected version 0, got %d", got)
	}
	if len(h.sub.results) != 1 || h.sub.results[0] {
		t.Fatalf("expected single failure notification, got %v", h.sub.results)
	}
	if _, unbinds := h.substrate.counts(); unbinds != 1 {
		t.Fatalf("expected bind released, got %d unbinds", unbinds)
	}
	assertInvalidated(t, h.manager)
}

func TestDisconnectSchedulesRetryWithoutNotifying(t *testing.T) {
	h := newHarness()
	h.connect(t, 2)

	h.manager.OnDisconnected(h.target)
	assertInvalidated(t, h.manager)
	if len(h.queue.tasks) != 1 {
		t.Fatalf("expected one scheduled retry, got %d", len(h.queue.tasks))
	}
	if binds, _ := h.substrate.counts(); binds != 1 {
		t.Fatalf("retry must not run synchronously, got %d binds", binds)
	}

	h.queue.drain()
	if binds, _ := h.substrate.counts(); binds != 2 {
		t.Fatalf("expected retry to rebind, got %d binds", binds)
	}
	if len(h.sub.results) != 1 {
		t.Fatalf("expected no second notification, got %v", h.sub.results)
	}

	h.manager.OnConnected(h.target, newHandle(2))
	if len(h.sub.reconnected) != 1 || h.sub.reconnected[0] != 2 {
		t.Fatalf("expected reconnect callback with version 2, got %v", h.sub.reconnected)
	}
	if len(h.sub.results) != 1 {
		t.Fatalf("expected no second notification after reconnect, got %v", h.sub.results)
	}
}

func TestBindingDiedReleasesWithoutRetry(t *testing.T) {
	h := newHarness()
	h.connect(t, 1)

	h.manager.OnBindingDied(h.target)
	assertInvalidated(t, h.manager)
	if _, unbinds := h.substrate.counts(); unbinds != 1 {
		t.Fatalf("expected bind released, got %d unbinds", unbinds)
	}
	if len(h.queue.tasks) != 0 {
		t.Fatalf("expected no automatic retry, got %d tasks", len(h.queue.tasks))
	}
	if len(h.sub.results) != 1 {
		t.Fatalf("expected no additional notification, got %v", h.sub.results)
	}

	h.manager.TryConnect()
	if binds, _ := h.substrate.counts(); binds != 2 {
		t.Fatalf("expected host-initiated rebind, got %d binds", binds)
	}
}

func TestVersionQueryFailureInvalidates(t *testing.T) {
	h := newHarness()
	h.manager.TryConnect()
	handle := newHandle(1)
	handle.queryErr = errors.New("transaction failed")
	h.manager.OnConnected(h.target, handle)

	assertInvalidated(t, h.manager)
	if _, unbinds := h.substrate.counts(); unbinds != 1 {
		t.Fatalf("expected bind released, got %d unbinds", unbinds)
	}
	if len(h.sub.results) != 1 || h.sub.results[0] {
		t.Fatalf("expected failure notification, got %v", h.sub.results)
	}
}

func TestLivenessProbeDuringFirstQueryResolvesFailure(t *testing.T) {
	for _, tc := range []struct {
		name     string
		queryErr error
	}{
		{"query fails", errors.New("dead object")},
		{"query answers", nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.manager.TryConnect()
			handle := newHandle(2)
			handle.queryErr = tc.queryErr
			handle.duringQuery = func() {
				handle.kill()
				if got := h.manager.VersionCode(); got != 0 {
					t.Errorf("expected probe to invalidate, got version %d", got)
				}
			}
			h.manager.OnConnected(h.target, handle)

			assertInvalidated(t, h.manager)
			if !h.manager.Status().Resolved {
				t.Fatal("expected first resolution to be recorded")
			}
			if len(h.sub.results) != 1 || h.sub.results[0] {
				t.Fatalf("expected one failure notification, got %v", h.sub.results)
			}
			if _, unbinds := h.substrate.counts(); unbinds != 1 {
				t.Fatalf("expected one unbind, got %d", unbinds)
			}
		})
	}
}

func TestCloseDuringFirstQueryResolvesFailure(t *testing.T) {
	h := newHarness()
	h.manager.TryConnect()
	handle := newHandle(1)
	handle.duringQuery = h.manager.Close
	h.manager.OnConnected(h.target, handle)

	assertInvalidated(t, h.manager)
	if len(h.sub.results) != 1 || h.sub.results[0] {
		t.Fatalf("expected one failure notification, got %v", h.sub.results)
	}
	if _, unbinds := h.substrate.counts(); unbinds < 1 {
		t.Fatal("expected bind released")
	}
}

func TestQueryForReplacedChannelIsIgnored(t *testing.T) {
	h := newHarness()
	h.manager.TryConnect()
	first := newHandle(1)
	second := newHandle(5)
	first.duringQuery = func() {
		h.manager.OnConnected(h.target, second)
	}
	h.manager.OnConnected(h.target, first)

	if got := h.manager.VersionCode(); got != 5 {
		t.Fatalf("expected replacing channel version 5, got %d", got)
	}
	if len(h.sub.results) != 1 || !h.sub.results[0] {
		t.Fatalf("expected single success notification, got %v", h.sub.results)
	}
	if _, unbinds := h.substrate.counts(); unbinds != 0 {
		t.Fatalf("stale query must not release the bind, got %d unbinds", unbinds)
	}
}

func TestSynchronousBindFailure(t *testing.T) {
	h := newHarness()
	h.substrate.bindErr = binder.ErrNotInstalled
	h.manager.TryConnect()

	assertInvalidated(t, h.manager)
	if len(h.sub.results) != 1 || h.sub.results[0] {
		t.Fatalf("expected failure notification, got %v", h.sub.results)
	}

	h.manager.TryConnect()
	if binds, _ := h.substrate.counts(); binds != 2 {
		t.Fatalf("expected retry to be possible after failure, got %d binds", binds)
	}
	if len(h.sub.results) != 1 {
		t.Fatalf("late failures must not re-notify, got %v", h.sub.results)
	}
}

func TestVersionCodeInvalidatesDeadChannel(t *testing.T) {
	h := newHarness()
	handle := h.connect(t, 4)
	handle.kill()

	if got := h.manager.VersionCode(); got != 0 {
		t.Fatalf("expected 0 after liveness failure, got %d", got)
	}
	assertInvalidated(t, h.manager)
	if got := h.manager.VersionCode(); got != 0 {
		t.Fatalf("expected repeated VersionCode to stay 0, got %d", got)
	}
}

func TestSetAirplaneModeGatedByVersion(t *testing.T) {
	tests := []struct {
		name      string
		version   int
		forwarded bool
	}{
		{"version zero", 0, false},
		{"version one", 1, true},
		{"version three", 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			handle := h.connect(t, tt.version)
			calls := handle.callCount

			if err := h.manager.SetAirplaneMode(true); err != nil {
				t.Fatalf("SetAirplaneMode: %v", err)
			}
			handle.mu.Lock()
			defer handle.mu.Unlock()
			if forwarded := handle.callCount > calls; forwarded != tt.forwarded {
				t.Fatalf("forwarded=%v, want %v", forwarded, tt.forwarded)
			}
			if tt.forwarded && (len(handle.airplane) != 1 || !handle.airplane[0]) {
				t.Fatalf("expected airplane mode true forwarded, got %v", handle.airplane)
			}
		})
	}
}

func TestGatedCallsNoopWhileDisconnected(t *testing.T) {
	h := newHarness()
	if err := h.manager.SetAirplaneMode(true); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	h.manager.TryConnect()
	if err := h.manager.SetAirplaneMode(true); err != nil {
		t.Fatalf("expected silent no-op while connecting, got %v", err)
	}
	if _, err := h.manager.AirplaneMode(); !errors.Is(err, framework.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGatedCallFailureIsCommunicationError(t *testing.T) {
	h := newHarness()
	handle := h.connect(t, 1)
	handle.mu.Lock()
	handle.callErr = binder.ErrClosed
	handle.mu.Unlock()

	err := h.manager.SetAirplaneMode(false)
	if !errors.Is(err, framework.ErrCommunication) {
		t.Fatalf("expected ErrCommunication, got %v", err)
	}
	if !errors.Is(err, binder.ErrClosed) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
}

func TestAirplaneModeReadsRemote(t *testing.T) {
	h := newHarness()
	h.connect(t, 1)
	if err := h.manager.SetAirplaneMode(true); err != nil {
		t.Fatalf("SetAirplaneMode: %v", err)
	}
	enabled, err := h.manager.AirplaneMode()
	if err != nil {
		t.Fatalf("AirplaneMode: %v", err)
	}
	if !enabled {
		t.Fatal("expected airplane mode enabled")
	}
}

func TestInvalidationPathsAreIdempotent(t *testing.T) {
	h := newHarness()
	h.connect(t, 2)

	h.manager.OnBindingDied(h.target)
	h.manager.OnBindingDied(h.target)
	h.manager.OnNullBinding(h.target)
	h.manager.OnDisconnected(h.target)
	assertInvalidated(t, h.manager)
	if len(h.sub.results) != 1 {
		t.Fatalf("expected exactly one notification, got %v", h.sub.results)
	}
}

func TestRandomEventSequencesNotifyOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		h := newHarness()
		if rng.Intn(4) == 0 {
			h.substrate.bindErr = binder.ErrNotInstalled
		}
		for step := 0; step < 20; step++ {
			switch rng.Intn(7) {
			case 0:
				h.manager.TryConnect()
			case 1:
				handle := newHandle(rng.Intn(4))
				if rng.Intn(5) == 0 {
					handle.queryErr = errors.New("dead object")
				}
				h.manager.OnConnected(h.target, handle)
			case 2:
				h.manager.OnDisconnected(h.target)
				assertInvalidated(t, h.manager)
			case 3:
				h.manager.OnBindingDied(h.target)
				assertInvalidated(t, h.manager)
			case 4:
				h.manager.OnNullBinding(h.target)
				assertInvalidated(t, h.manager)
			case 5:
				h.queue.drain()
			case 6:
				_ = h.manager.VersionCode()
			}
		}
		if len(h.sub.results) > 1 {
			t.Fatalf("run %d: expected at most one notification, got %v", run, h.sub.results)
		}
		if h.manager.Status().Resolved != (len(h.sub.results) == 1) {
			t.Fatalf("run %d: resolved flag disagrees with notifications", run)
		}
	}
}

func TestNotifiesExactlyOnceAfterResolution(t *testing.T) {
	sequences := map[string]func(h *harness){
		"connect then churn": func(h *harness) {
			h.manager.TryConnect()
			h.manager.OnConnected(h.target, newHandle(1))
			h.manager.OnDisconnected(h.target)
			h.queue.drain()
			h.manager.OnConnected(h.target, newHandle(1))
			h.manager.OnNullBinding(h.target)
		},
		"null then connect": func(h *harness) {
			h.manager.TryConnect()
			h.manager.OnNullBinding(h.target)
			h.manager.TryConnect()
			h.manager.OnConnected(h.target, newHandle(2))
		},
		"died then null": func(h *harness) {
			h.manager.TryConnect()
			h.manager.OnBindingDied(h.target)
			h.manager.TryConnect()
			h.manager.OnNullBinding(h.target)
			h.manager.TryConnect()
			h.manager.OnNullBinding(h.target)
		},
	}
	for name, run := range sequences {
		t.Run(name, func(t *testing.T) {
			h := newHarness()
			run(h)
			if len(h.sub.results) != 1 {
				t.Fatalf("expected exactly one notification, got %v", h.sub.results)
			}
		})
	}
}
