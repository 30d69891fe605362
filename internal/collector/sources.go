package collector

import (
	"sort"
	"sync"
)

// sourceSet is a concurrency-safe set of library names with hit counts.
// Ingestion handlers add to it while the driver reads snapshots.
type sourceSet struct {
	mu    sync.RWMutex
	names map[string]int
}

func newSourceSet() *sourceSet {
	return &sourceSet{names: make(map[string]int)}
}

func (s *sourceSet) add(names ...string) {
	if len(names) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		s.names[n]++
	}
}

func (s *sourceSet) has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.names[name]
	return ok
}

func (s *sourceSet) count(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names[name]
}

// snapshot returns the names in sorted order.
func (s *sourceSet) snapshot() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
