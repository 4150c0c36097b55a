// Package frameworkd is the reference wellbeing framework service.
//
// It serves the binder protocol on the framework socket, keeps its settings
// in SQLite and holds a flock lock beside the socket so only one instance
// runs per socket. When disabled in configuration it answers every bind with
// a null binding.
package frameworkd
