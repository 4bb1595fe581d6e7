// Package bypass implements the collaborator-bypass direct path (C9):
// matching a target hostname against a configurable domain suffix list,
// the same exact-match-or-suffix algorithm the teacher pack's dispatcher
// and MITM router use for domain routing rules.
package bypass

import (
	"strings"
	"sync/atomic"
)

// DefaultDomains are the two collaborator-style domains spec.md §4.6
// bypasses by default.
var DefaultDomains = []string{"burpcollaborator.net", "oastify.com"}

type config struct {
	enabled bool
	domains []string
}

// Resolver is hot-swappable: UpdateSettings can be called concurrently
// with ShouldBypass from connection-handling goroutines.
type Resolver struct {
	cfg atomic.Value // *config
}

// New builds a resolver with the given enabled flag and domain list.
func New(enabled bool, domains []string) *Resolver {
	r := &Resolver{}
	r.Update(enabled, domains)
	return r
}

// Update hot-swaps the bypass configuration (settings.go's live reload).
func (r *Resolver) Update(enabled bool, domains []string) {
	normalized := make([]string, len(domains))
	for i, d := range domains {
		normalized[i] = strings.ToLower(strings.TrimSpace(d))
	}
	r.cfg.Store(&config{enabled: enabled, domains: normalized})
}

// ShouldBypass implements shouldBypass(host) = bypassEnabled ∧ (host ∈
// bypassDomains ∨ host endsWith("."+d) for some d) (spec.md §4.6).
func (r *Resolver) ShouldBypass(host string) bool {
	c, _ := r.cfg.Load().(*config)
	if c == nil || !c.enabled {
		return false
	}
	host = strings.ToLower(host)
	for _, d := range c.domains {
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
