// Package binder is the IPC substrate between the wellbeing host and the
// framework service.
//
// A Substrate binds a Connection to a Target: the framework socket is dialed,
// the peer credentials are checked, a Framework.Bind handshake runs, and the
// outcome is posted to the callback looper as exactly one of connected,
// disconnected, binding died or null binding. Bindings persist across service
// restarts; the substrate re-dials with exponential backoff and delivers
// connected again once the service returns.
//
// The wire protocol is JSON-RPC over a Unix domain socket. Server implements
// the service side on top of a Provider.
package binder
