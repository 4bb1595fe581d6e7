package engine

import "fmt"

// Stats (C10) is the snapshot spec.md §6's getStats() renders to text.
type Stats struct {
	ActiveConnections     int64
	ActiveProxies         int
	ProxyConnectionCounts map[string]int64
}

// Stats returns a live snapshot of connection and per-proxy counters.
func (e *Engine) Stats() Stats {
	return Stats{
		ActiveConnections:     e.registry.ActiveConnectionCount(),
		ActiveProxies:         e.registry.ActiveCount(),
		ProxyConnectionCounts: e.registry.ProxyCounts(),
	}
}

// String renders "Active connections: N | Using K proxies[, busiest:
// host:port(M)]" — the busiest suffix only appears when M > 2
// (spec.md §6).
func (s Stats) String() string {
	out := fmt.Sprintf("Active connections: %d | Using %d proxies", s.ActiveConnections, s.ActiveProxies)

	var busiestKey string
	var busiestCount int64
	for key, count := range s.ProxyConnectionCounts {
		if count > busiestCount {
			busiestCount, busiestKey = count, key
		}
	}
	if busiestCount > 2 {
		out += fmt.Sprintf(", busiest: %s(%d)", busiestKey, busiestCount)
	}
	return out
}
