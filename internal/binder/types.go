package binder

import (
	"errors"
	"strings"
)

var (
	// ErrNotInstalled reports a bind rejected because the service socket is
	// absent and the substrate may not start the service.
	ErrNotInstalled = errors.New("binder: service not installed")
	// ErrClosed is returned by handle calls after the channel closed.
	ErrClosed = errors.New("binder: channel closed")
	// ErrBindingDead marks a binding that can no longer be re-established.
	ErrBindingDead = errors.New("binder: binding dead")
	// ErrPeerRejected reports a socket peer whose credentials do not match.
	ErrPeerRejected = errors.New("binder: peer credentials rejected")
	// ErrTimeout is returned when a call exceeds its deadline.
	ErrTimeout = errors.New("binder: call timed out")
)

// ServiceName is the RPC receiver name the framework service registers.
const ServiceName = "Framework"

const (
	MethodBind            = ServiceName + ".Bind"
	MethodPing            = ServiceName + ".Ping"
	MethodVersionCode     = ServiceName + ".VersionCode"
	MethodSetAirplaneMode = ServiceName + ".SetAirplaneMode"
	MethodAirplaneMode    = ServiceName + ".AirplaneMode"
)

// Flags modify how a binding is established.
type Flags uint32

const (
	// FlagAutoCreate starts the service executable when its socket is absent.
	FlagAutoCreate Flags = 1 << iota
	// FlagIncludeCapabilities asks the service to grant the capabilities of
	// the calling process to the binding.
	FlagIncludeCapabilities
)

// Has reports whether every bit of flag is set.
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

func (f Flags) String() string {
	var parts []string
	if f.Has(FlagAutoCreate) {
		parts = append(parts, "auto_create")
	}
	if f.Has(FlagIncludeCapabilities) {
		parts = append(parts, "include_capabilities")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Target names a remote service and where to reach it.
type Target struct {
	Name       string
	SocketPath string
	// Executable and Args start the service when FlagAutoCreate is set.
	Executable string
	Args       []string
	// PeerUID is the uid the socket peer must run as; -1 disables the check.
	PeerUID int
}

func (t Target) canLaunch(flags Flags) bool {
	return flags.Has(FlagAutoCreate) && strings.TrimSpace(t.Executable) != ""
}

// Handle is a live channel to a bound service.
type Handle interface {
	// IsAlive reports whether the underlying connection is still open.
	IsAlive() bool
	// Ping round-trips to the service within the ping timeout.
	Ping() bool
	// Call invokes method within the call timeout.
	Call(method string, args any, reply any) error
}

// Connection receives binding events. Every method runs on the looper.
type Connection interface {
	OnConnected(target Target, handle Handle)
	OnDisconnected(target Target)
	OnBindingDied(target Target)
	OnNullBinding(target Target)
}

// Poster queues work on the callback looper.
type Poster interface {
	Post(fn func()) bool
}

// BindRequest opens a binding on the service.
type BindRequest struct {
	ClientID            string `json:"client_id"`
	Target              string `json:"target"`
	IncludeCapabilities bool   `json:"include_capabilities"`
}

// BindResponse reports whether the service exposes its interface. Available
// false is a null binding.
type BindResponse struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type PingRequest struct{}

type PingResponse struct {
	OK bool `json:"ok"`
}

type VersionCodeRequest struct{}

type VersionCodeResponse struct {
	Version int `json:"version"`
}

type SetAirplaneModeRequest struct {
	Enabled bool `json:"enabled"`
}

type SetAirplaneModeResponse struct {
	Enabled bool `json:"enabled"`
}

type AirplaneModeRequest struct{}

type AirplaneModeResponse struct {
	Enabled bool `json:"enabled"`
}
