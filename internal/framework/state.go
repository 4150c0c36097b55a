package framework

import "wellbeing/internal/binder"

const (
	versionAbsent     = 0
	versionConnecting = -1
)

// state is the manager's connection tuple. Transitions return a new tuple and
// the side effects the manager must carry out.
type state struct {
	handle   binder.Handle
	remote   Remote
	version  int
	notified bool
}

func initialState() state {
	return state{remote: Disconnected}
}

// effects lists the work a transition asks for.
type effects struct {
	unbind  bool
	retry   bool
	notify  bool
	success bool
	// reconnected marks a successful connection after the first resolution.
	reconnected bool
}

func (s state) connecting() bool {
	return s.version == versionConnecting
}

// invalidated drops the channel and stub. It is idempotent and never touches
// the notification latch.
func (s state) invalidated() state {
	return state{remote: Disconnected, version: versionAbsent, notified: s.notified}
}

// resolved latches the notification on the first call only.
func (s state) resolved(success bool, fx effects) (state, effects) {
	if !s.notified {
		s.notified = true
		fx.notify = true
		fx.success = success
	}
	return s, fx
}

// connectRequested starts an attempt. ok is false while one is outstanding.
func (s state) connectRequested() (state, bool) {
	if s.connecting() {
		return s, false
	}
	s.version = versionConnecting
	return s, true
}

// bindRejected handles a synchronous bind failure.
func (s state) bindRejected() (state, effects) {
	if !s.connecting() {
		return s, effects{}
	}
	return s.invalidated().resolved(false, effects{})
}

// channelDelivered installs a freshly connected channel ahead of the version
// query.
func (s state) channelDelivered(handle binder.Handle, remote Remote) state {
	s.handle = handle
	s.remote = remote
	return s
}

// versionQueried applies the outcome of the version query on handle. When
// the channel was invalidated while the query ran, the attempt has failed
// whatever the query returned. A query for a handle that another channel has
// since replaced is ignored.
func (s state) versionQueried(handle binder.Handle, version int, err error) (state, effects) {
	if s.handle == nil {
		return s.invalidated().resolved(false, effects{unbind: true})
	}
	if s.handle != handle {
		return s, effects{}
	}
	if err != nil || version < 0 {
		return s.invalidated().resolved(false, effects{unbind: true})
	}
	s.version = version
	wasNotified := s.notified
	s, fx := s.resolved(true, effects{})
	fx.reconnected = wasNotified
	return s, fx
}

func (s state) disconnected() (state, effects) {
	return s.invalidated(), effects{retry: true}
}

func (s state) bindingDied() (state, effects) {
	return s.invalidated(), effects{unbind: true}
}

func (s state) nullBinding() (state, effects) {
	return s.invalidated().resolved(false, effects{unbind: true})
}

// probed applies a lazy liveness check of the current channel.
func (s state) probed(alive bool) state {
	if s.handle != nil && !alive {
		return s.invalidated()
	}
	return s
}
