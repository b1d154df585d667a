package device

import "github.com/pawlink/pawlink-core/internal/tracker"

// persistedState is the device-state blob stored per tracker. It survives
// restarts so edge detection compares against the last real state instead
// of re-firing every trigger on boot.
type persistedState struct {
	Capabilities []string          `json:"capabilities"`
	Values       map[string]any    `json:"values"`
	Settings     map[string]string `json:"settings"`
	Available    bool              `json:"available"`
	AvailReason  string            `json:"avail_reason,omitempty"`
	Warning      string            `json:"warning,omitempty"`
	ZoneActive   bool              `json:"zone_active"`
}

// restore loads a persisted blob into the device. Only called from New,
// before the device is shared.
func (d *Device) restore(saved persistedState) {
	if len(saved.Capabilities) > 0 {
		d.caps = map[string]struct{}{}
		for _, c := range saved.Capabilities {
			d.caps[c] = struct{}{}
		}
		// Base capabilities are unconditional regardless of what was saved.
		for _, c := range tracker.BaseCapabilities() {
			d.caps[c] = struct{}{}
		}
	}
	if saved.Values != nil {
		d.values = saved.Values
	}
	if saved.Settings != nil {
		d.settings = saved.Settings
	}
	d.available = saved.Available
	d.availReason = saved.AvailReason
	d.availabilitySet = true
	d.warning = saved.Warning
	d.zoneActive = saved.ZoneActive
}

// persist writes the current state blob. Persistence failures are logged,
// never fatal; the worst case is duplicate triggers after a restart.
func (d *Device) persist() {
	if d.states == nil {
		return
	}

	d.mu.Lock()
	blob := persistedState{
		Capabilities: d.orderedCaps(),
		Values:       make(map[string]any, len(d.values)),
		Settings:     make(map[string]string, len(d.settings)),
		Available:    d.available,
		AvailReason:  d.availReason,
		Warning:      d.warning,
		ZoneActive:   d.zoneActive,
	}
	for k, v := range d.values {
		blob.Values[k] = v
	}
	for k, v := range d.settings {
		blob.Settings[k] = v
	}
	d.mu.Unlock()

	if err := d.states.SaveDeviceState(d.trackerID, blob); err != nil {
		d.logger.Warn("persisting device state failed", "tracker_id", d.trackerID, "error", err)
	}
}
