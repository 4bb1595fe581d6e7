package engine

import "testing"

func TestStatsStringOmitsBusiestAtOrBelowThreshold(t *testing.T) {
	s := Stats{ActiveConnections: 3, ActiveProxies: 2, ProxyConnectionCounts: map[string]int64{"a:1": 2}}
	got := s.String()
	want := "Active connections: 3 | Using 2 proxies"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestStatsStringIncludesBusiestAboveThreshold(t *testing.T) {
	s := Stats{
		ActiveConnections: 10,
		ActiveProxies:     2,
		ProxyConnectionCounts: map[string]int64{
			"a:1080": 1,
			"b:1080": 5,
		},
	}
	got := s.String()
	want := "Active connections: 10 | Using 2 proxies, busiest: b:1080(5)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
