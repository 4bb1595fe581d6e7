package engine

import (
	"bufio"
	"errors"
	"fmt"
	"net"

	"socksrotate/internal/core/codec"
	"socksrotate/internal/core/registry"
	"socksrotate/internal/shared/errs"
)

// performUpstreamHandshake runs the outbound handshake for entry's
// protocol and returns any bytes the upstream already queued past the
// handshake terminator, to be forwarded as the tunnel's first chunk
// (spec.md §4.3/§5).
func performUpstreamHandshake(conn net.Conn, entry *registry.ProxyEntry, target codec.Target) ([]byte, error) {
	switch entry.Protocol {
	case registry.ProtocolSOCKS5:
		return connectSOCKS5(conn, entry, target)
	case registry.ProtocolSOCKS4:
		return connectSOCKS4(conn, target)
	case registry.ProtocolHTTP:
		return connectHTTP(conn, entry, target)
	default:
		return nil, fmt.Errorf("%w: unsupported upstream protocol %q", errs.ErrUpstreamHandshake, entry.Protocol)
	}
}

func connectSOCKS5(conn net.Conn, entry *registry.ProxyEntry, target codec.Target) ([]byte, error) {
	br := bufio.NewReader(conn)
	hasCreds := entry.HasCredentials()

	if err := codec.WriteSOCKS5UpstreamGreeting(conn, hasCreds); err != nil {
		return nil, fmt.Errorf("%w: write greeting: %v", errs.ErrUpstreamConnect, err)
	}
	needsAuth, err := codec.ReadSOCKS5UpstreamGreetingReply(br, hasCreds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUpstreamHandshake, err)
	}
	if needsAuth {
		if err := codec.WriteSOCKS5UpstreamAuth(conn, entry.Username, entry.Password); err != nil {
			return nil, fmt.Errorf("%w: write auth: %v", errs.ErrUpstreamHandshake, err)
		}
		if err := codec.ReadSOCKS5UpstreamAuthReply(br); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrUpstreamHandshake, err)
		}
	}

	if err := codec.WriteSOCKS5UpstreamRequest(conn, target); err != nil {
		return nil, fmt.Errorf("%w: write request: %v", errs.ErrUpstreamHandshake, err)
	}
	rep, trailing, err := codec.ReadSOCKS5UpstreamReply(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUpstreamHandshake, err)
	}
	if rep != codec.Rep5Succeeded {
		if isTargetFailureRep(rep) {
			return nil, &targetError{rep5: rep}
		}
		return nil, fmt.Errorf("%w: upstream rejected CONNECT (rep=%d)", errs.ErrUpstreamHandshake, rep)
	}
	return trailing, nil
}

func connectSOCKS4(conn net.Conn, target codec.Target) ([]byte, error) {
	br := bufio.NewReader(conn)

	if err := codec.WriteSOCKS4UpstreamRequest(conn, target); err != nil {
		return nil, fmt.Errorf("%w: write request: %v", errs.ErrUpstreamHandshake, err)
	}
	rep, trailing, err := codec.ReadSOCKS4UpstreamReply(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUpstreamHandshake, err)
	}
	if rep != codec.Rep4Granted {
		return nil, fmt.Errorf("%w: upstream rejected CONNECT (rep=%d)", errs.ErrUpstreamHandshake, rep)
	}
	return trailing, nil
}

func connectHTTP(conn net.Conn, entry *registry.ProxyEntry, target codec.Target) ([]byte, error) {
	br := bufio.NewReader(conn)

	if err := codec.WriteHTTPConnectRequest(conn, target, entry.Username, entry.Password); err != nil {
		return nil, fmt.Errorf("%w: write CONNECT: %v", errs.ErrUpstreamHandshake, err)
	}
	trailing, err := codec.ReadHTTPConnectResponse(br)
	if err != nil {
		if errors.Is(err, codec.ErrHTTPUpstreamAuthFailed) {
			return nil, err // surfaced as-is so dispatch's errors.Is(err, ...) check matches
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrUpstreamHandshake, err)
	}
	return trailing, nil
}
