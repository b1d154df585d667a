package device

import (
	"context"
	"sync"
	"time"

	"github.com/pawlink/pawlink-core/internal/stream"
)

// Heartbeat thresholds, in seconds since the last stream message. These
// follow the vendor's keep-alive cadence and are not configurable.
const (
	// heartbeatHealthy: the stream is live, devices are available.
	heartbeatHealthy = 10 * time.Second

	// heartbeatSuspect: the stream has been quiet long enough that the
	// connection is forced down so the next tick can rebuild it.
	heartbeatSuspect = 60 * time.Second

	// heartbeatDead: devices go unavailable with a restart-required
	// reason, cleared only by a fresh heartbeat.
	heartbeatDead = 75 * time.Second
)

// StreamHealthRecorder receives monitor observations for telemetry.
type StreamHealthRecorder interface {
	WriteStreamHealth(status string, heartbeatAge float64)
}

// Monitor is the heartbeat state machine watching the shared push
// connection. Evaluated on a short fixed interval:
//
//	age <= 10s          healthy: devices available, transient warning cleared
//	10s < age < 60s     tolerated: streams are often quiet between messages
//	60s <= age <= 75s   suspect: force the connection down, devices untouched
//	age > 75s           dead: devices unavailable, "restart required"
//
// The monitor also re-registers the connection whenever it finds it idle,
// which is the only reconnect path in the process.
type Monitor struct {
	stream   StreamControl
	devices  []*Device
	interval time.Duration
	health   StreamHealthRecorder
	logger   Logger
	now      func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMonitor creates a monitor over a fixed device set.
func NewMonitor(sc StreamControl, devices []*Device, interval time.Duration, health StreamHealthRecorder, logger Logger) *Monitor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Monitor{
		stream:   sc,
		devices:  devices,
		interval: interval,
		health:   health,
		logger:   logger,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the monitor loop.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Stop halts the monitor. Idempotent.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// Tick runs one evaluation of the heartbeat state machine.
func (m *Monitor) Tick(ctx context.Context) {
	if m.stream.Status() == stream.StatusIdle {
		if err := m.stream.Register(ctx); err != nil {
			m.logger.Warn("stream registration failed, will retry next tick", "error", err)
		}
	}

	last := m.stream.LastHeartbeat()
	if last.IsZero() {
		// Never connected; registration handles recovery.
		return
	}

	age := m.now().Sub(last)
	if m.health != nil {
		m.health.WriteStreamHealth(string(m.stream.Status()), age.Seconds())
	}

	switch {
	case age <= heartbeatHealthy:
		for _, d := range m.devices {
			d.MarkAlive()
		}

	case age < heartbeatSuspect:
		// Quiet but plausible; no state change.

	case age <= heartbeatDead:
		m.logger.Warn("stream heartbeat stale, forcing reconnect", "age", age)
		m.stream.Unregister()

	default:
		m.logger.Error("stream heartbeat lost", "age", age)
		for _, d := range m.devices {
			d.MarkUnavailable(ReasonRestartRequired)
		}
	}
}
