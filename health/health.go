// Package health tracks whether any fatal error has been reported for the
// current session, the Go analogue of PandoInterface::IsHealthy(). A single
// *Monitor is constructed by whatever wires up an experiment and injected
// into every component that can fail fatally, rather than living as
// package-level mutable state.
package health

import (
	"sync"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/log"
)

// Monitor records fatal errors raised anywhere in a session and answers
// IsHealthy. Repeated reports of the same failure (identical formatted
// message) are deduplicated so a tight failure loop doesn't flood the log.
type Monitor struct {
	mu      sync.Mutex
	healthy bool
	seen    map[uint64]struct{}
}

// NewMonitor returns a Monitor in the healthy state.
func NewMonitor() *Monitor {
	return &Monitor{healthy: true, seen: make(map[uint64]struct{})}
}

// ReportFatal records err as a fatal, run-ending failure. The first report
// of a given error message is logged at Error level; subsequent reports of
// the identical message still mark the monitor unhealthy but are not
// re-logged.
func (m *Monitor) ReportFatal(err error) {
	if err == nil {
		return
	}
	sig := farm.Hash64([]byte(err.Error()))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = false
	if _, dup := m.seen[sig]; dup {
		return
	}
	m.seen[sig] = struct{}{}
	log.Error.Printf("health: fatal error reported: %v", err)
}

// IsHealthy reports whether no fatal error has been recorded.
func (m *Monitor) IsHealthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}
