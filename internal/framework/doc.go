// Package framework keeps the host connected to the privileged wellbeing
// framework service.
//
// Manager owns one logical connection: it binds through the substrate,
// negotiates the protocol version, forwards version-gated calls and tells its
// Subscriber once, on the first resolution, whether the framework is
// available. Process deaths are healed by rebinding automatically; a dead
// binding waits for the host to call TryConnect again.
package framework
