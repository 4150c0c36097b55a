// Command wellbeing runs the wellbeing process host, the reference framework
// service, and the tools to inspect and drive the framework connection.
package main
