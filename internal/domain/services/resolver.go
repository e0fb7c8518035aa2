package services

import (
	"strings"
	"sync"
)

// Resolver maps a pod/replica name back to the service that owns it, so
// findings can be keyed against the top-level workload instead of an
// ephemeral child resource. Safe for concurrent use.
type Resolver struct {
	mu    sync.RWMutex
	known map[string][]ServiceInfo // namespace → services
}

func NewResolver() *Resolver {
	return &Resolver{known: make(map[string][]ServiceInfo)}
}

// Record remembers a discovered service for later resolution.
// A deleted service is removed from the cache.
func (r *Resolver) Record(s ServiceInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.known[s.Namespace]
	for i, existing := range list {
		if existing.ServiceKey() == s.ServiceKey() {
			if s.Deleted {
				r.known[s.Namespace] = append(list[:i], list[i+1:]...)
			} else {
				list[i] = s
			}
			return
		}
	}
	if !s.Deleted {
		r.known[s.Namespace] = append(list, s)
	}
}

// GuessServiceKey returns the key of the service that most likely owns the
// named resource: exact name match first, then the longest service name that
// prefixes it (pods inherit their owner's name plus generated suffixes).
// Empty string when nothing matches.
func (r *Resolver) GuessServiceKey(name, namespace string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best ServiceInfo
	found := false
	for _, s := range r.known[namespace] {
		if s.Name == name {
			return s.ServiceKey()
		}
		if strings.HasPrefix(name, s.Name+"-") {
			if !found || len(s.Name) > len(best.Name) {
				best = s
				found = true
			}
		}
	}
	if !found {
		return ""
	}
	return best.ServiceKey()
}
