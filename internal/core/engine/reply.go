package engine

import (
	"net"

	"socksrotate/internal/core/codec"
)

// writeSuccessReply sends the zero-BND success reply in the client's
// own dialect (spec.md §4.3 "Reply emitters").
func (e *Engine) writeSuccessReply(conn net.Conn, version socksVersion) error {
	if version == version4 {
		return codec.WriteSOCKS4Reply(conn, codec.Rep4Granted)
	}
	return codec.WriteSOCKS5Reply(conn, codec.Rep5Succeeded)
}

// writeFailureReply sends a generic failure reply: SOCKS5 general
// failure (01) or SOCKS4 rejected (5B).
func (e *Engine) writeFailureReply(conn net.Conn, version socksVersion) {
	if version == version4 {
		_ = codec.WriteSOCKS4Reply(conn, codec.Rep4Rejected)
		return
	}
	_ = codec.WriteSOCKS5Reply(conn, codec.Rep5GeneralFailure)
}

// writeTargetFailureReply surfaces the upstream's own REP code to a
// SOCKS5 client verbatim; a SOCKS4 client only has a binary
// granted/rejected reply, so it collapses to rejected.
func (e *Engine) writeTargetFailureReply(conn net.Conn, version socksVersion, rep5 byte) {
	if version == version4 {
		_ = codec.WriteSOCKS4Reply(conn, codec.Rep4Rejected)
		return
	}
	_ = codec.WriteSOCKS5Reply(conn, rep5)
}

// rejectUnsupportedCommand replies command-not-supported (SOCKS5) or
// rejected (SOCKS4) for anything other than CONNECT (spec.md §4.3:
// the core never implements BIND or UDP ASSOCIATE).
func (e *Engine) rejectUnsupportedCommand(conn net.Conn, version socksVersion) {
	if version == version4 {
		_ = codec.WriteSOCKS4Reply(conn, codec.Rep4Rejected)
		return
	}
	_ = codec.WriteSOCKS5Reply(conn, codec.Rep5CommandNotSupported)
}
