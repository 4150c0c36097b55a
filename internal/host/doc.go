// Package host runs the wellbeing process host: it owns the callback looper,
// the binder substrate and the framework connection manager, and degrades to
// basic features when the framework is unavailable.
package host
