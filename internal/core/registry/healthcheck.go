package registry

import (
	"io"
	"net"
	"sync"
	"time"

	"socksrotate/internal/shared/logger"
)

// HealthCheckInterval is how often RunHealthChecks should be invoked by
// the engine's background ticker (spec.md §4.1: every 5 minutes).
const HealthCheckInterval = 5 * time.Minute

const healthCheckDialTimeout = 10 * time.Second

// RunHealthChecks probes every entry currently known to the registry
// (active or not) concurrently — a minimal SOCKS5 no-auth greeting for
// socks5 entries, a bare TCP connect for the others (probeSOCKS5Greeting) —
// the way health.Checker.Check fans out one goroutine per instance in the
// teacher pack. Success clears the failure counter and, if the entry was
// inactive, reactivates it; failure calls IncrementFailure.
func (r *Registry) RunHealthChecks() {
	r.listMu.RLock()
	entries := make([]*ProxyEntry, len(r.entries))
	copy(entries, r.entries)
	r.listMu.RUnlock()

	l := logger.WithComponent("registry/healthcheck")

	var wg sync.WaitGroup
	for _, entry := range entries {
		wg.Add(1)
		go func(e *ProxyEntry) {
			defer wg.Done()
			if err := probeSOCKS5Greeting(e); err != nil {
				l.Debug().Str("proxy", e.Key()).Err(err).Msg("health probe failed")
				r.IncrementFailure(e)
				return
			}
			r.clearFailures(e)
			if !e.Active() {
				r.reactivate(e)
			}
		}(entry)
	}
	wg.Wait()
}

// probeSOCKS5Greeting opens a socket to the entry and performs the
// minimal SOCKS5 no-auth handshake spec.md §4.1 describes: "05 01 00",
// expect "05 00". Only socks5/socks4/http entries are dialable; http
// upstreams get the same raw-TCP-reachability probe the original and the
// teacher pack's CheckHealthAdvanced fallback both use for a quick liveness
// signal (a full CONNECT round-trip isn't needed just to prove the TCP
// path is up).
func probeSOCKS5Greeting(entry *ProxyEntry) error {
	addr := entry.Key()
	conn, err := net.DialTimeout("tcp", addr, healthCheckDialTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(healthCheckDialTimeout))

	if entry.Protocol != ProtocolSOCKS5 {
		// socks4 and http upstreams don't speak this greeting; a
		// successful TCP connect is the liveness signal for them.
		return nil
	}

	if _, err := conn.Write([]byte{0x05, 0x01, 0x00}); err != nil {
		return err
	}
	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return err
	}
	if resp[0] != 0x05 || resp[1] != 0x00 {
		return errUnexpectedGreetingResponse
	}
	return nil
}

var errUnexpectedGreetingResponse = &healthCheckError{"unexpected SOCKS5 greeting response"}

type healthCheckError struct{ msg string }

func (e *healthCheckError) Error() string { return e.msg }
