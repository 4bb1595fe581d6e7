package engine

import (
	"time"

	"socksrotate/internal/core/registry"
)

// reapInterval is the idle reaper's sweep period (spec.md §4.5).
const reapInterval = 30 * time.Second

// moderatelyIdleThreshold is how long a PROXY_CONNECTED connection may
// sit with no traffic before it's force-closed purely to push the next
// request onto a different upstream (spec.md §4.5's "moderately idle").
const moderatelyIdleThreshold = 10 * time.Second

// idleReapLoop is C8: the periodic sweep goroutine.
func (e *Engine) idleReapLoop(stopCh chan struct{}) {
	defer e.wg.Done()
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			e.reapIdleConnections()
		}
	}
}

func (e *Engine) reapIdleConnections() {
	idleTimeout := time.Duration(e.Settings().IdleTimeoutSeconds) * time.Second

	e.conns.Range(func(_, v interface{}) bool {
		cs := v.(*ConnectionState)
		idle := cs.IdleFor()

		switch {
		case idle > idleTimeout:
			e.log.Debug().Str("conn", cs.ID).Dur("idle", idle).Msg("reaping idle connection")
			cs.Close()
		case cs.Stage() == StageProxyConnected && idle > moderatelyIdleThreshold:
			e.log.Debug().Str("conn", cs.ID).Dur("idle", idle).Msg("reaping moderately idle connection to force rotation")
			cs.Close()
		}
		return true
	})
}

// healthCheckLoop drives C2's periodic health check on its own
// goroutine (spec.md §4.1/§5: "operates on sockets it creates and
// destroys itself, never touches live connections").
func (e *Engine) healthCheckLoop(stopCh chan struct{}) {
	defer e.wg.Done()
	ticker := time.NewTicker(registry.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			e.registry.RunHealthChecks()
		}
	}
}
