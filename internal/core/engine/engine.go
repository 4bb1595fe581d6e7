// Package engine implements the connection engine's core: C6 (I/O
// reactor, realized as goroutine-per-connection over the Go
// netpoller) and C7 (the connection orchestrator that drives C4
// through its stages by invoking the codec on events from C6).
package engine

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"socksrotate/internal/core/bypass"
	"socksrotate/internal/core/registry"
	"socksrotate/internal/shared/logger"
	"socksrotate/internal/shared/sockopt"
)

// retryBudget is the number of extra upstream-selection attempts a
// dispatch will make after its first failure (spec.md §7).
const retryBudget = 2

const upstreamDialTimeout = 10 * time.Second

// Settings is the runtime-mutable configuration surface spec.md §6
// exposes to the host.
type Settings struct {
	BufferSize                int
	IdleTimeoutSeconds        int
	MaxConnectionsPerProxy    int
	LoggingEnabled            bool
	BypassCollaboratorEnabled bool
	BypassDomains             []string
	SelectionMode             registry.SelectionMode
}

// DefaultSettings mirrors spec.md §6's stated defaults.
func DefaultSettings() Settings {
	return Settings{
		BufferSize:                BaselineBufferSize,
		IdleTimeoutSeconds:        60,
		MaxConnectionsPerProxy:    50,
		LoggingEnabled:            true,
		BypassCollaboratorEnabled: true,
		BypassDomains:             append([]string(nil), bypass.DefaultDomains...),
		SelectionMode:             registry.Random,
	}
}

// Callbacks are the host's log and notification hooks (spec.md §1/§6).
type Callbacks = registry.Callbacks

// Engine drives C6+C7: it owns the listener, the per-connection
// goroutines, and the shared registry/bypass resolver they dispatch
// through.
type Engine struct {
	callbacks Callbacks
	log       zerolog.Logger

	registry       *registry.Registry
	bypassResolver *bypass.Resolver

	settingsMu sync.RWMutex
	settings   Settings

	mu       sync.Mutex
	running  bool
	listener net.Listener
	stopCh   chan struct{}
	wg       sync.WaitGroup

	conns sync.Map // connection id (string) -> *ConnectionState
}

// New builds an idle engine; call Start to begin accepting.
func New(initial Settings, callbacks Callbacks) *Engine {
	e := &Engine{
		callbacks:      callbacks,
		log:            logger.WithComponent("engine"),
		bypassResolver: bypass.New(initial.BypassCollaboratorEnabled, initial.BypassDomains),
	}
	e.registry = registry.New(initial.SelectionMode, nil, callbacks)
	e.settings = initial
	return e
}

// Settings returns the current live settings snapshot.
func (e *Engine) Settings() Settings {
	e.settingsMu.RLock()
	defer e.settingsMu.RUnlock()
	return e.settings
}

// UpdateSettings hot-swaps the runtime configuration surface.
func (e *Engine) UpdateSettings(s Settings) {
	e.settingsMu.Lock()
	e.settings = s
	e.settingsMu.Unlock()

	e.registry.SetMode(s.SelectionMode)
	e.bypassResolver.Update(s.BypassCollaboratorEnabled, s.BypassDomains)
}

// UpdateProxies reloads the proxy pool wholesale (a proxy-list reload).
func (e *Engine) UpdateProxies(entries []*registry.ProxyEntry) {
	e.registry.UpdateEntries(entries)
}

// Start begins accepting on listenAddr. Calling Start twice is a
// no-op the second time (spec.md §8 property 5).
func (e *Engine) Start(listenAddr string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}

	lc := net.ListenConfig{Control: sockopt.ControlListener}
	ln, err := lc.Listen(context.Background(), "tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddr, err)
	}

	e.listener = ln
	e.stopCh = make(chan struct{})
	e.running = true

	e.wg.Add(1)
	go e.acceptLoop(ln, e.stopCh)

	e.wg.Add(1)
	go e.idleReapLoop(e.stopCh)

	e.wg.Add(1)
	go e.healthCheckLoop(e.stopCh)

	e.log.Info().Str("addr", ln.Addr().String()).Msg("engine started")
	return nil
}

// Stop implements spec.md §5's two-phase shutdown: close the listener
// and the stop channel (which ends the accept, reaper and health-check
// loops), wait up to ctx's deadline for every goroutine to return, then
// force-close whatever connections are still open. Connection
// goroutines do not watch the stop channel; an open tunnel keeps
// relaying until its peers close it or ctx expires.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	ln := e.listener
	stopCh := e.stopCh
	e.listener = nil
	e.mu.Unlock()

	close(stopCh)
	if ln != nil {
		_ = ln.Close()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.log.Info().Msg("engine stopped gracefully")
		return nil
	case <-ctx.Done():
		e.forceCloseAll()
		<-done
		e.log.Warn().Msg("engine force-stopped after grace period expired")
		return nil
	}
}

func (e *Engine) forceCloseAll() {
	e.conns.Range(func(_, v interface{}) bool {
		v.(*ConnectionState).Close()
		return true
	})
}

func (e *Engine) acceptLoop(ln net.Listener, stopCh chan struct{}) {
	defer e.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-stopCh:
				return
			default:
				e.log.Error().Err(err).Msg("accept failed")
				return
			}
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
			_ = tcp.SetKeepAlive(true)
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.handleConnection(conn, stopCh)
		}()
	}
}
