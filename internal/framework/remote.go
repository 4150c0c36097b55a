package framework

import (
	"errors"
	"fmt"

	"wellbeing/internal/binder"
)

var (
	// ErrCommunication wraps every failure of a call made on a live channel.
	ErrCommunication = errors.New("framework: communication error")
	// ErrUnavailable is returned by queries made below their minimum version.
	ErrUnavailable = errors.New("framework: not available at negotiated version")
)

// Minimum negotiated versions of the gated calls.
const (
	MinVersionSetAirplaneMode = 1
	MinVersionAirplaneMode    = 1
)

// Remote is the typed interface of the framework service.
type Remote interface {
	VersionCode() (int, error)
	SetAirplaneMode(enabled bool) error
	AirplaneMode() (bool, error)
}

// NewRemote wraps a bound channel.
func NewRemote(handle binder.Handle) Remote {
	if handle == nil {
		return Disconnected
	}
	return &stub{handle: handle}
}

type stub struct {
	handle binder.Handle
}

func (s *stub) VersionCode() (int, error) {
	var resp binder.VersionCodeResponse
	if err := s.call(binder.MethodVersionCode, binder.VersionCodeRequest{}, &resp); err != nil {
		return 0, err
	}
	return resp.Version, nil
}

func (s *stub) SetAirplaneMode(enabled bool) error {
	var resp binder.SetAirplaneModeResponse
	return s.call(binder.MethodSetAirplaneMode, binder.SetAirplaneModeRequest{Enabled: enabled}, &resp)
}

func (s *stub) AirplaneMode() (bool, error) {
	var resp binder.AirplaneModeResponse
	if err := s.call(binder.MethodAirplaneMode, binder.AirplaneModeRequest{}, &resp); err != nil {
		return false, err
	}
	return resp.Enabled, nil
}

func (s *stub) call(method string, args, reply any) error {
	if err := s.handle.Call(method, args, reply); err != nil {
		return fmt.Errorf("%w: %w", ErrCommunication, err)
	}
	return nil
}

// Disconnected is the Remote used while no channel exists. Every call is a
// no-op.
var Disconnected Remote = disconnected{}

type disconnected struct{}

func (disconnected) VersionCode() (int, error) { return 0, nil }

func (disconnected) SetAirplaneMode(bool) error { return nil }

func (disconnected) AirplaneMode() (bool, error) { return false, nil }
