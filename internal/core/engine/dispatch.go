package engine

import (
	"bufio"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"

	"socksrotate/internal/core/codec"
	"socksrotate/internal/core/registry"
	"socksrotate/internal/shared/errs"
	"socksrotate/internal/shared/sockopt"
)

// socksVersion identifies which inbound dialect a client spoke, so the
// right reply shape can be chosen at every failure point.
type socksVersion int

const (
	version5 socksVersion = 5
	version4 socksVersion = 4
)

// targetError marks a successful upstream handshake that reported the
// target itself unreachable (SOCKS5 REP 04/05/06): it must be surfaced
// to the client verbatim without penalizing the upstream (spec.md §7).
type targetError struct {
	rep5 byte
}

func (e *targetError) Error() string {
	return fmt.Sprintf("upstream reported target error (rep=%d)", e.rep5)
}

func (e *targetError) Unwrap() error { return errs.ErrUpstreamTarget }

func isTargetFailureRep(rep byte) bool {
	switch rep {
	case codec.Rep5HostUnreachable, codec.Rep5ConnectionRefused, codec.Rep5TTLExpired:
		return true
	default:
		return false
	}
}

// handleConnection owns one client socket end to end: parse the
// inbound greeting/request, dispatch to a direct or proxied upstream
// with the retry budget spec.md §7 describes, then relay until either
// side closes. It is the single per-connection goroutine that plays
// the role of C6's reactor thread for this one connection.
func (e *Engine) handleConnection(clientConn net.Conn, stopCh chan struct{}) {
	id := uuid.NewString()
	cs := NewConnectionState(id, clientConn)
	e.conns.Store(id, cs)
	defer func() {
		e.conns.Delete(id)
		if proxy := cs.Proxy(); proxy != nil {
			e.registry.RemoveConnection(proxy)
		}
		cs.Close()
	}()

	br := bufio.NewReader(clientConn)
	cs.SetStage(StageClientHandshake)

	version, cmd, target, err := readClientRequest(br, clientConn)
	if err != nil {
		e.log.Debug().Str("conn", id).Err(err).Msg("client handshake failed")
		return
	}
	if cmd != 0x01 {
		e.rejectUnsupportedCommand(clientConn, version)
		return
	}

	cs.SetTarget(target)
	e.log.Info().Str("conn", id).Str("target", target.String()).Msg("dispatching connection")

	e.dispatch(cs, br, clientConn, version)
}

// dispatch drives C4 from DISPATCHING through either the direct-bypass
// path or a rotation-selected upstream, honoring the retry budget and
// fallback rules in spec.md §7.
func (e *Engine) dispatch(cs *ConnectionState, clientReader *bufio.Reader, clientConn net.Conn, version socksVersion) {
	target := cs.Target()
	settings := e.Settings()

	tryDirect := settings.BypassCollaboratorEnabled && e.bypassResolver.ShouldBypass(target.Host)
	directFallbackUsed := false
	excluded := make(map[string]bool)
	attemptsLeft := retryBudget

	for {
		var entry *registry.ProxyEntry
		var upstream net.Conn
		var trailing []byte
		var err error

		if tryDirect {
			cs.SetStage(StageUpstreamConnecting)
			entry = registry.NewDirect(target.Host, int(target.Port))
			upstream, err = e.dialDirect(target)
			if err != nil {
				e.log.Debug().Str("conn", cs.ID).Err(err).Msg("direct connect failed")
				tryDirect = false
				if !directFallbackUsed {
					directFallbackUsed = true
					continue
				}
				e.writeFailureReply(clientConn, version)
				return
			}
		} else {
			entry = e.registry.Select()
			if entry == nil {
				e.writeFailureReply(clientConn, version)
				return
			}
			if excluded[entry.Key()] {
				attemptsLeft--
				if attemptsLeft < 0 {
					e.writeFailureReply(clientConn, version)
					return
				}
				continue
			}

			cs.SetStage(StageUpstreamConnecting)
			upstream, err = e.dialUpstream(entry)
			if err != nil {
				e.log.Debug().Str("conn", cs.ID).Str("proxy", entry.Key()).Err(err).Msg("upstream connect failed")
				e.registry.IncrementFailure(entry)
				excluded[entry.Key()] = true
				attemptsLeft--
				if attemptsLeft < 0 {
					e.writeFailureReply(clientConn, version)
					return
				}
				continue
			}

			cs.SetStage(StageUpstreamHandshake)
			trailing, err = performUpstreamHandshake(upstream, entry, target)
			if err != nil {
				_ = upstream.Close()

				var te *targetError
				if errors.As(err, &te) {
					e.writeTargetFailureReply(clientConn, version, te.rep5)
					return
				}
				if errors.Is(err, codec.ErrHTTPUpstreamAuthFailed) {
					e.log.Debug().Str("conn", cs.ID).Str("proxy", entry.Key()).Msg("upstream rejected credentials (407)")
					e.writeFailureReply(clientConn, version)
					return
				}

				e.log.Debug().Str("conn", cs.ID).Str("proxy", entry.Key()).Err(err).Msg("upstream handshake failed")
				e.registry.IncrementFailure(entry)
				excluded[entry.Key()] = true
				attemptsLeft--
				if attemptsLeft < 0 {
					e.writeFailureReply(clientConn, version)
					return
				}
				continue
			}
		}

		cs.SetUpstream(upstream, entry)
		e.registry.AddConnection(entry)
		cs.SetStage(StageProxyConnected)

		if entry.Protocol == registry.ProtocolDirect || entry.Protocol == registry.ProtocolHTTP {
			cs.Buffers = NewBufferPair(true)
		}

		if err := e.writeSuccessReply(clientConn, version); err != nil {
			return
		}
		if len(trailing) > 0 {
			if _, werr := clientConn.Write(trailing); werr != nil {
				return
			}
		}

		e.relay(cs, clientReader, clientConn, upstream)
		return
	}
}

func (e *Engine) dialDirect(target codec.Target) (net.Conn, error) {
	dialer := net.Dialer{Timeout: upstreamDialTimeout, Control: sockopt.ControlDialLargeBuffers}
	conn, err := dialer.Dial("tcp", target.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDirectConnect, err)
	}
	return conn, nil
}

func (e *Engine) dialUpstream(entry *registry.ProxyEntry) (net.Conn, error) {
	control := sockopt.ControlDial
	if entry.Protocol == registry.ProtocolHTTP {
		control = sockopt.ControlDialLargeBuffers
	}
	dialer := net.Dialer{Timeout: upstreamDialTimeout, Control: control}
	conn, err := dialer.Dial("tcp", entry.Key())
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", errs.ErrUpstreamConnect, entry.Key(), err)
	}
	return conn, nil
}

// readClientRequest peeks the first byte to tell SOCKS4 apart from
// SOCKS5, then fully decodes the greeting (SOCKS5 only, replying
// no-auth immediately per spec.md §4.3) and the CONNECT request.
func readClientRequest(br *bufio.Reader, clientConn net.Conn) (socksVersion, byte, codec.Target, error) {
	first, err := br.Peek(1)
	if err != nil {
		return 0, 0, codec.Target{}, fmt.Errorf("%w: read version byte: %v", errs.ErrClientProtocol, err)
	}

	switch first[0] {
	case 0x05:
		if err := codec.ReadSOCKS5Greeting(br); err != nil {
			return version5, 0, codec.Target{}, fmt.Errorf("%w: %v", errs.ErrClientProtocol, err)
		}
		if err := codec.WriteSOCKS5GreetingReply(clientConn); err != nil {
			return version5, 0, codec.Target{}, fmt.Errorf("%w: write greeting reply: %v", errs.ErrClientProtocol, err)
		}
		cmd, target, err := codec.ReadSOCKS5Request(br)
		if err != nil {
			return version5, cmd, codec.Target{}, fmt.Errorf("%w: %v", errs.ErrClientProtocol, err)
		}
		return version5, cmd, target, nil
	case 0x04:
		cmd, target, err := codec.ReadSOCKS4Request(br)
		if err != nil {
			return version4, cmd, codec.Target{}, fmt.Errorf("%w: %v", errs.ErrClientProtocol, err)
		}
		return version4, cmd, target, nil
	default:
		return 0, 0, codec.Target{}, fmt.Errorf("%w: unsupported SOCKS version byte 0x%02x", errs.ErrClientProtocol, first[0])
	}
}
