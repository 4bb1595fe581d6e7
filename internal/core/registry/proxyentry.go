// Package registry implements the proxy pool: ProxyEntry (C1) and
// ProxyRegistry (C2) from the connection engine's component design.
package registry

import (
	"net"
	"strconv"
	"sync"
)

// Protocol identifies the upstream protocol an entry speaks, or the
// synthesized "direct" path that skips the registry entirely.
type Protocol string

const (
	ProtocolSOCKS5 Protocol = "socks5"
	ProtocolSOCKS4 Protocol = "socks4"
	ProtocolHTTP   Protocol = "http"
	ProtocolDirect Protocol = "direct"
)

// ProxyEntry is one upstream proxy. Protocol, Host and Port are its
// immutable identity; Username/Password/active/lastError are mutated by
// the registry's failure and health-check logic.
type ProxyEntry struct {
	Protocol Protocol
	Host     string
	Port     int
	Username string
	Password string

	mu        sync.RWMutex
	active    bool
	lastError string
}

// NewProxyEntry builds a registry-owned entry. Credentials are only
// meaningful for socks5 (username/password subnegotiation) and http
// (Basic auth); callers pass empty strings otherwise.
func NewProxyEntry(protocol Protocol, host string, port int, username, password string) *ProxyEntry {
	return &ProxyEntry{
		Protocol: protocol,
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		active:   true,
	}
}

// NewDirect synthesizes the per-request direct entry the bypass resolver
// and the orchestrator's connect-failure fallback use. Direct entries are
// never added to a registry and never persisted (spec invariant).
func NewDirect(host string, port int) *ProxyEntry {
	return &ProxyEntry{Protocol: ProtocolDirect, Host: host, Port: port, active: true}
}

// Key is the "host:port" identity used by the per-proxy counter maps.
func (e *ProxyEntry) Key() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// HasCredentials reports whether Username/Password should be used during
// the upstream handshake.
func (e *ProxyEntry) HasCredentials() bool {
	return e.Username != "" || e.Password != ""
}

func (e *ProxyEntry) Active() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active
}

func (e *ProxyEntry) setActive(active bool) {
	e.mu.Lock()
	e.active = active
	e.mu.Unlock()
}

// Deactivate marks the entry inactive with an explanatory message,
// used by the loader for entries loaded with active=false.
func (e *ProxyEntry) Deactivate(reason string) {
	e.mu.Lock()
	e.active = false
	e.lastError = reason
	e.mu.Unlock()
}

func (e *ProxyEntry) LastError() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastError
}

func (e *ProxyEntry) setLastError(msg string) {
	e.mu.Lock()
	e.lastError = msg
	e.mu.Unlock()
}

// sameIdentity matches the tie-break spec pins in §9: host, port and
// protocol together identify "the same upstream" across list reloads.
func (e *ProxyEntry) sameIdentity(other *ProxyEntry) bool {
	if e == nil || other == nil {
		return false
	}
	return e.Protocol == other.Protocol && e.Host == other.Host && e.Port == other.Port
}
