package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pawlink/pawlink-core/internal/device"
	"github.com/pawlink/pawlink-core/internal/stream"
)

// HealthSource supplies the figures for the bridge health document.
// Implemented by the device manager.
type HealthSource interface {
	StreamStatus() stream.Status
	LastHeartbeat() time.Time
	Devices() []*device.Device
}

// healthDoc is the retained bridge health document.
type healthDoc struct {
	Status         string  `json:"status"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	StreamStatus   string  `json:"stream_status"`
	HeartbeatAge   float64 `json:"heartbeat_age_seconds,omitempty"`
	Trackers       int     `json:"trackers"`
	TrackersOnline int     `json:"trackers_online"`
	ReportedAt     string  `json:"reported_at"`
}

// HealthReporter periodically publishes bridge health, retained, so the
// platform sees the last known state even across broker reconnects.
type HealthReporter struct {
	bridge   *Bridge
	source   HealthSource
	interval time.Duration
	started  time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewHealthReporter creates a reporter over the given source.
func NewHealthReporter(b *Bridge, source HealthSource, interval time.Duration) *HealthReporter {
	return &HealthReporter{
		bridge:   b,
		source:   source,
		interval: interval,
		started:  b.now(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the reporting loop; the first report goes out immediately.
func (r *HealthReporter) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *HealthReporter) run(ctx context.Context) {
	defer close(r.done)

	r.report()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.report()
		}
	}
}

// Stop halts the reporter. Idempotent.
func (r *HealthReporter) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *HealthReporter) report() {
	now := r.bridge.now()
	devices := r.source.Devices()

	online := 0
	for _, d := range devices {
		if d.Available() {
			online++
		}
	}

	doc := healthDoc{
		Status:         "ok",
		UptimeSeconds:  now.Sub(r.started).Seconds(),
		StreamStatus:   string(r.source.StreamStatus()),
		Trackers:       len(devices),
		TrackersOnline: online,
		ReportedAt:     now.UTC().Format(time.RFC3339),
	}
	if hb := r.source.LastHeartbeat(); !hb.IsZero() {
		doc.HeartbeatAge = now.Sub(hb).Seconds()
	}
	if r.source.StreamStatus() != stream.StatusConnected {
		doc.Status = "degraded"
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		r.bridge.logger.Error("encoding health report failed", "error", err)
		return
	}
	if err := r.bridge.broker.PublishRetained(r.bridge.topics.BridgeHealth(), payload); err != nil {
		r.bridge.logger.Warn("publishing health report failed", "error", err)
	}
}
