package device

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/pawlink/pawlink-core/internal/cloud"
	"github.com/pawlink/pawlink-core/internal/geozone"
	"github.com/pawlink/pawlink-core/internal/tracker"
)

// Availability reasons surfaced to the host platform. These are cause
// categories, never raw transport errors.
const (
	ReasonRestartRequired  = "restart required"
	reasonAuthFailed       = "authentication failed"
	reasonConnectionFailed = "connection failed"
	reasonLookupFailed     = "lookup failed"
	reasonSyncFailed       = "sync failed"
)

// Flow trigger names fired on edge transitions.
const (
	TriggerLocationChanged   = "location_changed"
	TriggerGeofenceEntered   = "geofence_entered"
	TriggerSafeZoneEntered   = "safe_zone_entered"
	TriggerDangerZoneEntered = "danger_zone_entered"
	TriggerGeofenceLeft      = "geofence_left"
	TriggerZoneEntered       = "power_saving_zone_entered"
)

// Platform is the host-platform surface a device writes to.
// Implemented by the MQTT bridge.
type Platform interface {
	AddCapability(trackerID, capability string) error
	RemoveCapability(trackerID, capability string) error
	PublishCapability(trackerID, capability string, value any) error
	PublishSettings(trackerID string, settings map[string]string) error
	PublishAvailability(trackerID string, available bool, reason string) error
	PublishWarning(trackerID, warning string) error
	PublishTrigger(trackerID, trigger string, payload map[string]any) error
}

// Enricher fills a snapshot's derived fields and owns the per-tracker
// geofence and zone caches. Implemented by the zone resolver.
type Enricher interface {
	SetGeofences(fences []tracker.Geofence)
	SetZones(zones map[string]string)
	Enrich(ctx context.Context, snap *tracker.Snapshot, positionChanged bool)
}

// StateStore persists the device-state blob across restarts.
type StateStore interface {
	SaveDeviceState(trackerID string, v any) error
	LoadDeviceState(trackerID string, v any) error
}

// Telemetry records snapshot history. May be absent.
type Telemetry interface {
	WritePosition(trackerID string, lat, lng, altitude, speed float64)
	WriteBattery(trackerID string, level int, charging bool)
}

// Logger defines the logging interface for the device package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps bundles the collaborators a Device needs.
type Deps struct {
	Platform  Platform
	Enricher  Enricher
	States    StateStore
	Telemetry Telemetry
	Logger    Logger
}

// Device is the local model of one tracker, reconciling vendor snapshots
// into host-platform state changes.
//
// Sync cycles are serialised end to end so poll results and stream
// payloads for the same tracker never interleave mid-cycle.
type Device struct {
	trackerID string
	platform  Platform
	enricher  Enricher
	states    StateStore
	telemetry Telemetry
	logger    Logger

	// syncMu serialises whole sync cycles; mu guards the state maps
	// within one. syncMu is always taken first.
	syncMu sync.Mutex

	mu              sync.Mutex
	caps            map[string]struct{}
	values          map[string]any
	settings        map[string]string
	available       bool
	availReason     string
	availabilitySet bool
	warning         string
	zoneActive      bool
}

// New creates the device handle for one tracker, restoring any persisted
// state so that edge triggers do not re-fire after a process restart.
func New(trackerID string, deps Deps) *Device {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	d := &Device{
		trackerID: trackerID,
		platform:  deps.Platform,
		enricher:  deps.Enricher,
		states:    deps.States,
		telemetry: deps.Telemetry,
		logger:    logger,
		caps:      map[string]struct{}{},
		values:    map[string]any{},
		settings:  map[string]string{},
	}

	for _, c := range tracker.BaseCapabilities() {
		d.caps[c] = struct{}{}
	}

	if deps.States != nil {
		var saved persistedState
		if err := deps.States.LoadDeviceState(trackerID, &saved); err == nil {
			d.restore(saved)
		}
	}

	return d
}

// ID returns the tracker ID this device mirrors.
func (d *Device) ID() string {
	return d.trackerID
}

// SyncRecord applies one full-state poll result: cache sections first,
// then the raw tracker document through the normal snapshot path.
func (d *Device) SyncRecord(ctx context.Context, rec *cloud.TrackerRecord) {
	// nil sections mean the fetch for that section failed; the existing
	// cache stays untouched rather than being wiped.
	if rec.Geofences != nil {
		d.enricher.SetGeofences(rec.Geofences)
	}
	if rec.Zones != nil {
		d.enricher.SetZones(rec.Zones)
	}
	d.HandlePayload(ctx, rec.Raw)
}

// HandlePayload runs one sync cycle from a raw vendor payload, poll or
// stream shaped. Failures mark the device unavailable with a cause
// category; they are never propagated to the caller.
func (d *Device) HandlePayload(ctx context.Context, raw map[string]any) {
	// One cycle at a time: a poll result and a stream payload arriving
	// together would otherwise both see pre-cycle coordinates and both
	// fire the same edge triggers.
	d.syncMu.Lock()
	defer d.syncMu.Unlock()

	cycleID := uuid.NewString()

	snap := tracker.Normalize(d.trackerID, raw)
	moved := d.positionChanged(snap)
	d.enricher.Enrich(ctx, snap, moved)

	if err := d.reconcile(snap, moved); err != nil {
		reason := failureReason(err)
		d.logger.Warn("sync cycle failed",
			"tracker_id", d.trackerID, "cycle_id", cycleID, "reason", reason, "error", err)
		d.setAvailability(false, reason)
		return
	}

	d.setAvailability(true, "")
	d.persist()
	d.recordTelemetry(snap)

	d.logger.Debug("sync cycle complete",
		"tracker_id", d.trackerID, "cycle_id", cycleID, "moved", moved)
}

// MarkAlive restores availability after a fresh heartbeat and clears the
// restart-required warning if it was set. State-reason warnings are owned
// by reconciliation and stay untouched.
func (d *Device) MarkAlive() {
	d.mu.Lock()
	if d.warning == ReasonRestartRequired {
		d.warning = ""
		if err := d.platform.PublishWarning(d.trackerID, ""); err != nil {
			d.logger.Warn("clearing warning failed", "tracker_id", d.trackerID, "error", err)
		}
	}
	d.mu.Unlock()

	d.setAvailability(true, "")
}

// MarkUnavailable flags the device unavailable with the given reason and
// records it as the current warning.
func (d *Device) MarkUnavailable(reason string) {
	d.mu.Lock()
	if d.warning != reason {
		d.warning = reason
		if err := d.platform.PublishWarning(d.trackerID, reason); err != nil {
			d.logger.Warn("publishing warning failed", "tracker_id", d.trackerID, "error", err)
		}
	}
	d.mu.Unlock()

	d.setAvailability(false, reason)
}

// Available reports the current availability flag.
func (d *Device) Available() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.available
}

// StateView is a read-only copy of the device state for diagnostics.
type StateView struct {
	TrackerID    string            `json:"tracker_id"`
	Capabilities []string          `json:"capabilities"`
	Values       map[string]any    `json:"values"`
	Settings     map[string]string `json:"settings"`
	Available    bool              `json:"available"`
	Warning      string            `json:"warning,omitempty"`
}

// State returns a snapshot copy of the device state.
func (d *Device) State() StateView {
	d.mu.Lock()
	defer d.mu.Unlock()

	view := StateView{
		TrackerID:    d.trackerID,
		Capabilities: d.orderedCaps(),
		Values:       make(map[string]any, len(d.values)),
		Settings:     make(map[string]string, len(d.settings)),
		Available:    d.available,
		Warning:      d.warning,
	}
	for k, v := range d.values {
		view.Values[k] = v
	}
	for k, v := range d.settings {
		view.Settings[k] = v
	}
	return view
}

// positionChanged reports whether the snapshot's coordinates differ from
// the last applied latitude/longitude values. A snapshot without a
// position never counts as movement.
func (d *Device) positionChanged(snap *tracker.Snapshot) bool {
	if !snap.HasPosition() {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	prevLat, latOK := toFloat(d.values[tracker.CapLatitude])
	prevLng, lngOK := toFloat(d.values[tracker.CapLongitude])
	if !latOK || !lngOK {
		return true
	}
	return prevLat != *snap.Latitude || prevLng != *snap.Longitude
}

// setAvailability publishes an availability change. Re-publishing the
// same state is suppressed, but an unavailable device whose failure
// cause changes still surfaces the new reason.
func (d *Device) setAvailability(available bool, reason string) {
	d.mu.Lock()
	if d.availabilitySet && d.available == available && d.availReason == reason {
		d.mu.Unlock()
		return
	}
	d.available = available
	d.availReason = reason
	d.availabilitySet = true
	d.mu.Unlock()

	if err := d.platform.PublishAvailability(d.trackerID, available, reason); err != nil {
		d.logger.Warn("publishing availability failed",
			"tracker_id", d.trackerID, "available", available, "error", err)
		return
	}
	if available {
		d.logger.Info("device available", "tracker_id", d.trackerID)
	} else {
		d.logger.Warn("device unavailable", "tracker_id", d.trackerID, "reason", reason)
	}
}

func (d *Device) recordTelemetry(snap *tracker.Snapshot) {
	if d.telemetry == nil {
		return
	}
	if snap.HasPosition() {
		altitude, speed := 0.0, 0.0
		if snap.Altitude != nil {
			altitude = *snap.Altitude
		}
		if snap.Speed != nil {
			speed = *snap.Speed
		}
		d.telemetry.WritePosition(d.trackerID, *snap.Latitude, *snap.Longitude, altitude, speed)
	}
	if snap.BatteryLevel != nil {
		charging := snap.Charging != nil && *snap.Charging
		d.telemetry.WriteBattery(d.trackerID, *snap.BatteryLevel, charging)
	}
}

// failureReason maps a sync error to a user-visible cause category.
func failureReason(err error) string {
	switch {
	case errors.Is(err, cloud.ErrNoToken), errors.Is(err, cloud.ErrUnauthorized):
		return reasonAuthFailed
	case errors.Is(err, cloud.ErrTransport):
		return reasonConnectionFailed
	case errors.Is(err, geozone.ErrLookup):
		return reasonLookupFailed
	default:
		return reasonSyncFailed
	}
}
