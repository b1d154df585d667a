package device

import (
	"context"
	"sync"
	"time"

	"github.com/pawlink/pawlink-core/internal/cloud"
	"github.com/pawlink/pawlink-core/internal/stream"
)

// CloudAPI is the slice of the vendor client the poller needs.
type CloudAPI interface {
	Tracker(ctx context.Context, trackerID string) (*cloud.TrackerRecord, error)
}

// StreamControl is the supervisor surface shared by the poller and the
// availability monitor.
type StreamControl interface {
	Register(ctx context.Context) error
	Unregister()
	Status() stream.Status
	LastHeartbeat() time.Time
}

// Poller drives the periodic full-state refresh for all devices. It fires
// once at startup and then on a fixed interval. A failed fetch for one
// device is logged and marked on that device; the schedule continues.
type Poller struct {
	api      CloudAPI
	stream   StreamControl
	devices  []*Device
	interval time.Duration
	logger   Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewPoller creates a poller over a fixed device set.
func NewPoller(api CloudAPI, sc StreamControl, devices []*Device, interval time.Duration, logger Logger) *Poller {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Poller{
		api:      api,
		stream:   sc,
		devices:  devices,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the poll loop. The first refresh runs immediately.
func (p *Poller) Start(ctx context.Context) {
	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	p.pollAll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

// Stop halts the schedule. Idempotent.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

// pollAll refreshes every device concurrently and re-registers the push
// channel if it is idle. Devices never block each other.
func (p *Poller) pollAll(ctx context.Context) {
	if p.stream != nil && p.stream.Status() == stream.StatusIdle {
		if err := p.stream.Register(ctx); err != nil {
			p.logger.Warn("stream registration failed, will retry next tick", "error", err)
		}
	}

	var wg sync.WaitGroup
	for _, d := range p.devices {
		wg.Add(1)
		go func(d *Device) {
			defer wg.Done()
			p.pollOne(ctx, d)
		}(d)
	}
	wg.Wait()
}

func (p *Poller) pollOne(ctx context.Context, d *Device) {
	rec, err := p.api.Tracker(ctx, d.ID())
	if err != nil {
		reason := failureReason(err)
		p.logger.Warn("poll fetch failed",
			"tracker_id", d.ID(), "reason", reason, "error", err)
		d.setAvailability(false, reason)
		return
	}
	d.SyncRecord(ctx, rec)
}
