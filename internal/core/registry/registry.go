package registry

import (
	"math/rand"
	"sync"
	"sync/atomic"
)

// SelectionMode picks between the two rotation policies spec.md §6 exposes
// as a runtime-mutable setting.
type SelectionMode int

const (
	Random SelectionMode = iota
	RoundRobin
)

// failureThreshold is the number of consecutive failures that deactivates
// an entry (spec.md §4.1).
const failureThreshold = 3

// Callbacks are the host's log and notification hooks (spec.md §1/§6).
// The engine also reuses this struct as its public Callbacks type.
type Callbacks struct {
	LogInfo            func(msg string)
	LogError           func(msg string)
	OnProxyFailure     func(host string, port int, message string)
	OnProxyReactivated func(host string, port int)
}

// Info invokes the host's info log callback, if set.
func (c Callbacks) Info(msg string) {
	if c.LogInfo != nil {
		c.LogInfo(msg)
	}
}

// Error invokes the host's error log callback, if set.
func (c Callbacks) Error(msg string) {
	if c.LogError != nil {
		c.LogError(msg)
	}
}

func (c Callbacks) proxyFailed(host string, port int, message string) {
	if c.OnProxyFailure != nil {
		c.OnProxyFailure(host, port, message)
	}
}

func (c Callbacks) proxyReactivated(host string, port int) {
	if c.OnProxyReactivated != nil {
		c.OnProxyReactivated(host, port)
	}
}

// Registry is the shared, read-mostly proxy pool (C2). The entry list is
// guarded by a RWMutex; the rotation cursor has its own dedicated lock,
// held only during selection, exactly as spec.md §3 describes.
type Registry struct {
	callbacks Callbacks

	listMu  sync.RWMutex
	entries []*ProxyEntry

	cursorMu  sync.Mutex
	lastUsed  *ProxyEntry
	lastIndex int

	mode atomic.Int32 // SelectionMode

	activeConnectionCount atomic.Int64

	countersMu          sync.Mutex
	connectionsPerProxy map[string]*atomic.Int64
	failureCounters     map[string]*int32
}

// New builds a registry in the given selection mode with an initial entry
// list. Direct entries, if present, are rejected by the caller (the
// loader), never by the registry itself.
func New(mode SelectionMode, entries []*ProxyEntry, callbacks Callbacks) *Registry {
	r := &Registry{
		callbacks:           callbacks,
		entries:             entries,
		connectionsPerProxy: make(map[string]*atomic.Int64),
		failureCounters:     make(map[string]*int32),
	}
	r.mode.Store(int32(mode))
	return r
}

// SetMode hot-swaps the selection policy (part of live settings updates).
func (r *Registry) SetMode(mode SelectionMode) {
	r.mode.Store(int32(mode))
}

func (r *Registry) Mode() SelectionMode {
	return SelectionMode(r.mode.Load())
}

// UpdateEntries replaces the entry list wholesale (a proxy-list reload).
// Per spec.md §3, destroyed entries simply vanish; the rotation cursor's
// identity tie-break in Select handles the "entry no longer present" case.
func (r *Registry) UpdateEntries(entries []*ProxyEntry) {
	r.listMu.Lock()
	r.entries = entries
	r.listMu.Unlock()
}

// snapshotActive returns the currently-active entries under the read lock.
func (r *Registry) snapshotActive() []*ProxyEntry {
	r.listMu.RLock()
	defer r.listMu.RUnlock()
	active := make([]*ProxyEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Active() {
			active = append(active, e)
		}
	}
	return active
}

// Select implements C2's select(): round-robin finds the last-used entry's
// identity in the current active snapshot (not its old index) and
// advances one past it, falling back to index 0 if the entry is gone.
// Random picks uniformly. Returns nil if no entry is active.
func (r *Registry) Select() *ProxyEntry {
	active := r.snapshotActive()
	if len(active) == 0 {
		return nil
	}

	r.cursorMu.Lock()
	defer r.cursorMu.Unlock()

	var chosen *ProxyEntry
	switch r.Mode() {
	case RoundRobin:
		idx := 0
		if r.lastUsed != nil {
			found := -1
			for i, e := range active {
				if e.sameIdentity(r.lastUsed) {
					found = i
					break
				}
			}
			if found >= 0 {
				idx = (found + 1) % len(active)
			}
			// found == -1: list changed underneath us, fall back to 0.
		}
		chosen = active[idx]
		r.lastIndex = idx
	default: // Random
		chosen = active[rand.Intn(len(active))]
	}

	r.lastUsed = chosen
	return chosen
}

// IncrementFailure bumps the per-entry failure counter; at the threshold
// it deactivates the entry, evicts its counters and fires proxy-failed.
func (r *Registry) IncrementFailure(entry *ProxyEntry) {
	if entry == nil || entry.Protocol == ProtocolDirect {
		return
	}
	key := entry.Key()

	r.countersMu.Lock()
	counter, ok := r.failureCounters[key]
	if !ok {
		counter = new(int32)
		r.failureCounters[key] = counter
	}
	r.countersMu.Unlock()

	count := atomic.AddInt32(counter, 1)
	if count < failureThreshold {
		return
	}

	entry.setActive(false)
	entry.setLastError("Marked inactive after 3 consecutive failures")
	atomic.StoreInt32(counter, 0)

	r.countersMu.Lock()
	delete(r.connectionsPerProxy, key)
	r.countersMu.Unlock()

	r.callbacks.Error("proxy " + key + " marked inactive after 3 consecutive failures")
	r.callbacks.proxyFailed(entry.Host, entry.Port, entry.LastError())
}

// clearFailures resets an entry's failure counter after a success.
func (r *Registry) clearFailures(entry *ProxyEntry) {
	r.countersMu.Lock()
	if counter, ok := r.failureCounters[entry.Key()]; ok {
		atomic.StoreInt32(counter, 0)
	}
	r.countersMu.Unlock()
}

// reactivate clears an entry's error state and fires proxy-reactivated,
// used by the health checker on a successful probe of an inactive entry.
func (r *Registry) reactivate(entry *ProxyEntry) {
	entry.setActive(true)
	entry.setLastError("")
	r.callbacks.Info("proxy " + entry.Key() + " reactivated")
	r.callbacks.proxyReactivated(entry.Host, entry.Port)
}

// AddConnection increments the per-proxy and global active-connection
// counters on a successful dispatch, and clears the entry's failure
// counter so only consecutive failures count toward failureThreshold.
func (r *Registry) AddConnection(entry *ProxyEntry) {
	r.activeConnectionCount.Add(1)
	if entry == nil || entry.Protocol == ProtocolDirect {
		return
	}
	r.clearFailures(entry)
	key := entry.Key()
	r.countersMu.Lock()
	counter, ok := r.connectionsPerProxy[key]
	if !ok {
		counter = new(atomic.Int64)
		r.connectionsPerProxy[key] = counter
	}
	r.countersMu.Unlock()
	counter.Add(1)
}

// RemoveConnection decrements the counters on teardown. Kept live for the
// lifetime of the tunnel, matching the original implementation's
// connectionsPerProxy bookkeeping (SPEC_FULL.md §9).
func (r *Registry) RemoveConnection(entry *ProxyEntry) {
	r.activeConnectionCount.Add(-1)
	if entry == nil || entry.Protocol == ProtocolDirect {
		return
	}
	r.countersMu.Lock()
	counter, ok := r.connectionsPerProxy[entry.Key()]
	r.countersMu.Unlock()
	if ok {
		counter.Add(-1)
	}
}

// ActiveConnectionCount is C10's live counter.
func (r *Registry) ActiveConnectionCount() int64 {
	return r.activeConnectionCount.Load()
}

// ProxyCounts snapshots the per-proxy connection counters for stats.
func (r *Registry) ProxyCounts() map[string]int64 {
	r.countersMu.Lock()
	defer r.countersMu.Unlock()
	out := make(map[string]int64, len(r.connectionsPerProxy))
	for k, v := range r.connectionsPerProxy {
		if n := v.Load(); n > 0 {
			out[k] = n
		}
	}
	return out
}

// ActiveCount reports the size of the currently-active subset, used by
// getStats()'s "Using K proxies" segment.
func (r *Registry) ActiveCount() int {
	return len(r.snapshotActive())
}
