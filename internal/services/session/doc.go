// Package session groups the session persistence adapter, the HTTP session
// middleware that consumes it, and the counter app that wires both together.
package session
