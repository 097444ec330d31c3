// Package loadmon tracks system resource utilization for the routing
// engine. A single background updater refreshes an immutable snapshot that
// any number of readers load without blocking.
package loadmon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/smartroute/smart-route/internal/pkg/logger"
)

// Snapshot is one observation of system load. Snapshots are immutable;
// the monitor publishes a replacement on every refresh.
type Snapshot struct {
	// CPUUtilization is the CPU usage fraction in [0, 1].
	CPUUtilization float64 `json:"cpu_utilization"`

	// MemoryUtilization is the memory usage fraction in [0, 1].
	MemoryUtilization float64 `json:"memory_utilization"`

	// InFlightRequests is the number of requests currently being served.
	InFlightRequests int64 `json:"in_flight_requests"`

	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`

	// Degraded is set when the snapshot is older than twice the refresh
	// interval. Routing proceeds on it anyway.
	Degraded bool `json:"degraded"`
}

// InFlightFunc reports the current in-flight request count.
type InFlightFunc func() int64

// Monitor refreshes a load snapshot on a fixed interval.
type Monitor struct {
	interval time.Duration
	inflight InFlightFunc
	log      *logger.Logger

	snap atomic.Pointer[Snapshot]

	stop      chan struct{}
	done      chan struct{}
	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a monitor. inflight may be nil when no request counter is
// available. The monitor does not refresh until Start is called, but
// Current is usable immediately.
func New(interval time.Duration, inflight InFlightFunc, log *logger.Logger) *Monitor {
	if inflight == nil {
		inflight = func() int64 { return 0 }
	}

	m := &Monitor{
		interval: interval,
		inflight: inflight,
		log:      log.WithComponent("loadmon"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	now := time.Now()
	m.snap.Store(&Snapshot{Timestamp: now})

	return m
}

// Start begins the background refresh loop. The first refresh happens
// synchronously so routing starts from a real observation.
func (m *Monitor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.started.Store(true)
		m.refresh(ctx)
		go m.loop(ctx)
	})
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.refresh(ctx)
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) refresh(ctx context.Context) {
	snap := &Snapshot{
		InFlightRequests: m.inflight(),
		Timestamp:        time.Now(),
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		m.log.Warn("cpu sampling failed", "error", err)
	} else if len(percents) > 0 {
		snap.CPUUtilization = percents[0] / 100
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		m.log.Warn("memory sampling failed", "error", err)
	} else {
		snap.MemoryUtilization = vm.UsedPercent / 100
	}

	m.snap.Store(snap)
}

// Current returns the most recent snapshot. It never blocks on the refresh
// cycle. The in-flight count is read live so it stays accurate between
// refreshes, and the degraded flag is derived from snapshot age.
func (m *Monitor) Current() Snapshot {
	snap := *m.snap.Load()
	snap.InFlightRequests = m.inflight()
	snap.Degraded = time.Since(snap.Timestamp) > 2*m.interval
	return snap
}

// Stop terminates the refresh loop. When the loop was never started there
// is nothing to wait for and Stop returns immediately.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	if !m.started.Load() {
		return
	}
	select {
	case <-m.done:
	case <-time.After(time.Second):
	}
}
