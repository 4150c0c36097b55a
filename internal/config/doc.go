// Package config loads, normalizes, and validates wellbeing configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// WELLBEING_FRAMEWORK_SOCKET. The Config type centralizes every knob the host,
// the framework service, and the CLI need.
package config
