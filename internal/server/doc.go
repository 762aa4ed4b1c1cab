// Package server implements the transport glue of the chat relay: the
// raw TCP and WebSocket listeners, the shared line protocol, and the
// per-connection plumbing that feeds the routing engine in internal/chat.
//
// The implementation is organized into specialized files for
// configuration, protocol parsing, the two transports, and HTTP wiring to
// keep the codebase maintainable and testable as the project grows.
package server
