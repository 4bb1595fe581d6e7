// Package errs defines the sentinel error kinds the engine dispatches on.
// Call sites wrap one of these with fmt.Errorf("...: %w", ...) so errors.Is
// can recover the kind without string matching, the way forwarder.go and
// the tunnel strategies wrap dial/handshake failures in the teacher pack.
package errs

import "errors"

var (
	// ErrClientProtocol marks a malformed inbound SOCKS4/SOCKS5 message.
	ErrClientProtocol = errors.New("client protocol error")
	// ErrUpstreamConnect marks a failed TCP connect to an upstream proxy.
	ErrUpstreamConnect = errors.New("upstream connect error")
	// ErrUpstreamHandshake marks a rejected or malformed upstream handshake.
	ErrUpstreamHandshake = errors.New("upstream handshake error")
	// ErrUpstreamTarget marks an upstream-reported target failure (REP 04/05/06).
	ErrUpstreamTarget = errors.New("upstream target error")
	// ErrDirectConnect marks a failed direct TCP connect to the bypass target.
	ErrDirectConnect = errors.New("direct connect error")
	// ErrTransport marks an I/O error once a tunnel is established.
	ErrTransport = errors.New("transport error")
	// ErrResource marks a buffer overflow or other resource exhaustion.
	ErrResource = errors.New("resource error")
)
