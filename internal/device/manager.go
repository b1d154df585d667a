package device

import (
	"context"
	"time"

	"github.com/pawlink/pawlink-core/internal/stream"
)

// StreamHub is the full supervisor surface the manager needs: connection
// control plus per-tracker dispatch.
type StreamHub interface {
	StreamControl
	Subscribe(trackerID string, h stream.Handler)
	Unsubscribe(trackerID string)
}

// Manager owns the device set and its background loops: the stream
// subscriptions, the poll scheduler and the availability monitor.
type Manager struct {
	hub     StreamHub
	devices []*Device
	byID    map[string]*Device
	poller  *Poller
	monitor *Monitor
	logger  Logger

	cancel context.CancelFunc
}

// NewManager wires the loops over a fixed device set.
func NewManager(hub StreamHub, api CloudAPI, devices []*Device, pollInterval, monitorInterval time.Duration, health StreamHealthRecorder, logger Logger) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}

	byID := make(map[string]*Device, len(devices))
	for _, d := range devices {
		byID[d.ID()] = d
	}

	return &Manager{
		hub:     hub,
		devices: devices,
		byID:    byID,
		poller:  NewPoller(api, hub, devices, pollInterval, logger),
		monitor: NewMonitor(hub, devices, monitorInterval, health, logger),
		logger:  logger,
	}
}

// Start subscribes every device to the push stream and launches the poll
// and monitor loops. The first poll runs immediately.
func (m *Manager) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for _, d := range m.devices {
		d := d
		m.hub.Subscribe(d.ID(), func(raw map[string]any) {
			d.HandlePayload(runCtx, raw)
		})
	}

	m.poller.Start(runCtx)
	m.monitor.Start(runCtx)

	m.logger.Info("device manager started", "trackers", len(m.devices))
}

// Close tears the manager down: dispatch subscriptions are removed before
// any timers stop, so no payload can reach a half-destroyed device, then
// the loops stop and the stream connection is released.
func (m *Manager) Close() {
	for _, d := range m.devices {
		m.hub.Unsubscribe(d.ID())
	}

	if m.cancel != nil {
		m.cancel()
	}
	m.poller.Stop()
	m.monitor.Stop()
	m.hub.Unregister()

	m.logger.Info("device manager stopped")
}

// Devices returns the managed devices in registration order.
func (m *Manager) Devices() []*Device {
	return m.devices
}

// Device returns the device for a tracker ID, or nil.
func (m *Manager) Device(trackerID string) *Device {
	return m.byID[trackerID]
}

// StreamStatus exposes the push-connection status for diagnostics.
func (m *Manager) StreamStatus() stream.Status {
	return m.hub.Status()
}

// LastHeartbeat exposes the shared heartbeat timestamp for diagnostics.
func (m *Manager) LastHeartbeat() time.Time {
	return m.hub.LastHeartbeat()
}
