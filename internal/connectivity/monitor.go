// Package connectivity tracks reachability of the remote authority and
// publishes online/offline transition events.
package connectivity

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/avolkau/studysync/internal/events"
)

// Prober checks whether the remote authority is reachable.
type Prober interface {
	Ping(ctx context.Context) error
}

// Monitor polls the remote authority and exposes the current reachability
// state. Transitions are debounced: flapping inside the debounce window
// collapses to the final observed state, so a burst of reconnects cannot
// trigger a thundering herd of reconciliation runs.
type Monitor struct {
	prober         Prober
	bus            *events.Bus
	probeInterval  time.Duration
	debounceWindow time.Duration

	mu         sync.Mutex
	online     bool
	pendingVal bool
	generation int // bumps on every observation; stale debounce timers no-op
	hasPending bool
	running    bool
	cancelFunc context.CancelFunc
}

// NewMonitor creates a monitor. The initial state is offline until the first
// successful probe.
func NewMonitor(prober Prober, bus *events.Bus, probeInterval, debounceWindow time.Duration) *Monitor {
	if probeInterval <= 0 {
		probeInterval = 15 * time.Second
	}
	return &Monitor{
		prober:         prober,
		bus:            bus,
		probeInterval:  probeInterval,
		debounceWindow: debounceWindow,
	}
}

// Start begins probing in the background.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	var runCtx context.Context
	runCtx, m.cancelFunc = context.WithCancel(ctx)
	m.mu.Unlock()

	go m.loop(runCtx)
}

// Stop halts background probing.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	m.cancelFunc()
	m.cancelFunc = nil
}

// IsOnline returns the current committed reachability state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Probe performs a single reachability check and feeds the result through
// the debounce logic. The loop calls this on every tick; callers may invoke
// it directly for an immediate check (e.g. before a forced sync).
func (m *Monitor) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeInterval)
	defer cancel()

	observed := m.prober.Ping(probeCtx) == nil
	m.Observe(observed)
	return observed
}

func (m *Monitor) loop(ctx context.Context) {
	// First probe runs immediately so startup state settles fast.
	m.Probe(ctx)

	ticker := time.NewTicker(m.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Observe feeds one reachability observation into the debounce state
// machine. A change is committed only once it has survived the debounce
// window without a contradicting observation; an observation matching the
// committed state cancels any pending change.
func (m *Monitor) Observe(online bool) {
	m.mu.Lock()
	m.generation++

	if online == m.online {
		m.hasPending = false
		m.mu.Unlock()
		return
	}

	if m.debounceWindow <= 0 {
		m.commitLocked(online)
		return
	}

	m.hasPending = true
	m.pendingVal = online
	gen := m.generation
	m.mu.Unlock()

	time.AfterFunc(m.debounceWindow, func() {
		m.mu.Lock()
		if !m.hasPending || m.generation != gen || m.pendingVal != online {
			m.mu.Unlock()
			return
		}
		m.commitLocked(online)
	})
}

// commitLocked finalizes a transition. The mutex must be held; it is
// released before publishing.
func (m *Monitor) commitLocked(online bool) {
	m.online = online
	m.hasPending = false
	m.mu.Unlock()

	if online {
		log.Printf("Connectivity: remote authority reachable")
		m.bus.Publish(events.Event{Type: events.TypeOnline})
	} else {
		log.Printf("Connectivity: remote authority unreachable")
		m.bus.Publish(events.Event{Type: events.TypeOffline})
	}
}
