package engine

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"socksrotate/internal/core/codec"
	"socksrotate/internal/core/registry"
)

// Stage is one state in C4's connection state machine (spec.md §4.4).
// The engine advances a connection's stage linearly as its handling
// goroutine works through the handshake; the reaper reads it back to
// find moderately idle PROXY_CONNECTED tunnels.
type Stage int

const (
	StageInitial Stage = iota
	StageClientHandshake
	StageDispatching
	StageUpstreamConnecting
	StageUpstreamHandshake
	StageProxyConnected
	StageClosed
	StageError
)

func (s Stage) String() string {
	switch s {
	case StageInitial:
		return "INITIAL"
	case StageClientHandshake:
		return "CLIENT_HANDSHAKE"
	case StageDispatching:
		return "DISPATCHING"
	case StageUpstreamConnecting:
		return "UPSTREAM_CONNECTING"
	case StageUpstreamHandshake:
		return "UPSTREAM_HANDSHAKE"
	case StageProxyConnected:
		return "PROXY_CONNECTED"
	case StageClosed:
		return "CLOSED"
	case StageError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ConnectionState (C4) is the single owning container for one client
// tunnel: both sockets, the chosen route and the buffer sizing hint
// live here so the reaper and the handling goroutine never need a
// second lookup to find "the other half" of a connection.
type ConnectionState struct {
	ID         string
	ClientAddr string

	mu           sync.Mutex
	stage        Stage
	target       codec.Target
	proxy        *registry.ProxyEntry
	clientConn   net.Conn
	upstreamConn net.Conn

	Buffers      *BufferPair
	StartedAt    time.Time
	lastActivity atomic.Int64 // unix nanoseconds

	closeOnce sync.Once
}

// NewConnectionState wraps a freshly-accepted client socket. The
// buffer pair starts at the baseline; dispatch grows it once the
// route (proxied vs. direct/HTTP) is known.
func NewConnectionState(id string, clientConn net.Conn) *ConnectionState {
	c := &ConnectionState{
		ID:         id,
		ClientAddr: clientConn.RemoteAddr().String(),
		stage:      StageInitial,
		clientConn: clientConn,
		Buffers:    NewBufferPair(false),
		StartedAt:  time.Now(),
	}
	c.touch()
	return c
}

func (c *ConnectionState) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

func (c *ConnectionState) SetStage(s Stage) {
	c.mu.Lock()
	c.stage = s
	c.mu.Unlock()
	c.touch()
}

func (c *ConnectionState) SetTarget(t codec.Target) {
	c.mu.Lock()
	c.target = t
	c.mu.Unlock()
}

func (c *ConnectionState) Target() codec.Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// SetUpstream records the connected upstream socket and the proxy
// entry (or direct pseudo-entry) that produced it.
func (c *ConnectionState) SetUpstream(conn net.Conn, proxy *registry.ProxyEntry) {
	c.mu.Lock()
	c.upstreamConn = conn
	c.proxy = proxy
	c.mu.Unlock()
}

func (c *ConnectionState) ClientConn() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientConn
}

func (c *ConnectionState) UpstreamConn() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.upstreamConn
}

func (c *ConnectionState) Proxy() *registry.ProxyEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proxy
}

func (c *ConnectionState) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// Touch records relay activity; the reaper's idle timers key off this.
func (c *ConnectionState) Touch() {
	c.touch()
}

func (c *ConnectionState) IdleFor() time.Duration {
	return time.Since(time.Unix(0, c.lastActivity.Load()))
}

// Close tears down both legs exactly once, regardless of which side
// (client error, upstream error, reaper sweep, shutdown) triggers it.
func (c *ConnectionState) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		client, upstream := c.clientConn, c.upstreamConn
		c.stage = StageClosed
		c.mu.Unlock()
		if client != nil {
			_ = client.Close()
		}
		if upstream != nil {
			_ = upstream.Close()
		}
	})
}
