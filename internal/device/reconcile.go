package device

import (
	"fmt"

	"github.com/pawlink/pawlink-core/internal/tracker"
)

// reconcile converts an enriched snapshot into host-platform side effects,
// emitting only real changes. Steps run in a fixed order: the capability
// set is synced first, then triggers are evaluated against the pre-update
// values so edges are detected correctly, then settings, then the new
// values are committed, then the warning state.
func (d *Device) reconcile(snap *tracker.Snapshot, moved bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.syncCapabilitySet(snap); err != nil {
		return err
	}
	if err := d.fireTriggers(snap, moved); err != nil {
		return err
	}
	if err := d.syncSettings(snap); err != nil {
		return err
	}
	if err := d.applyValues(snap); err != nil {
		return err
	}
	return d.syncWarning(snap)
}

// syncCapabilitySet grows or shrinks the optional capability set from the
// vendor capability-code list. A nil code list means the payload did not
// carry codes; the set is left alone.
func (d *Device) syncCapabilitySet(snap *tracker.Snapshot) error {
	if snap.CapabilityCodes == nil {
		return nil
	}

	wanted := map[string]struct{}{}
	for _, c := range tracker.CapabilitiesForCodes(snap.CapabilityCodes) {
		wanted[c] = struct{}{}
	}

	for _, c := range tracker.OptionalCapabilities() {
		_, has := d.caps[c]
		_, want := wanted[c]
		switch {
		case want && !has:
			if err := d.platform.AddCapability(d.trackerID, c); err != nil {
				return fmt.Errorf("adding capability %s: %w", c, err)
			}
			d.caps[c] = struct{}{}
			d.logger.Info("capability added", "tracker_id", d.trackerID, "capability", c)
		case !want && has:
			if err := d.platform.RemoveCapability(d.trackerID, c); err != nil {
				return fmt.Errorf("removing capability %s: %w", c, err)
			}
			delete(d.caps, c)
			delete(d.values, c)
			d.logger.Info("capability removed", "tracker_id", d.trackerID, "capability", c)
		}
	}
	return nil
}

// fireTriggers detects edge transitions against the pre-update values and
// fires the matching flow triggers. Steady state never fires.
func (d *Device) fireTriggers(snap *tracker.Snapshot, moved bool) error {
	if moved && snap.HasPosition() {
		payload := map[string]any{
			"latitude":  *snap.Latitude,
			"longitude": *snap.Longitude,
		}
		if snap.ResolvedAddress != nil {
			payload["address"] = snap.ResolvedAddress.Display()
		}
		if err := d.trigger(TriggerLocationChanged, payload); err != nil {
			return err
		}
	}

	if err := d.fireGeofenceTriggers(snap); err != nil {
		return err
	}

	// Zone membership is only meaningful on payloads that carry a tracker
	// state; stream fragments without one would otherwise read as "left".
	if snap.State != nil {
		if !d.zoneActive && snap.PowerSavingZoneActive {
			payload := map[string]any{}
			if snap.PowerSavingZoneName != nil {
				payload["zone"] = *snap.PowerSavingZoneName
			}
			if err := d.trigger(TriggerZoneEntered, payload); err != nil {
				return err
			}
		}
		d.zoneActive = snap.PowerSavingZoneActive
	}

	return nil
}

func (d *Device) fireGeofenceTriggers(snap *tracker.Snapshot) error {
	if snap.GeofenceMatch == nil {
		return nil
	}

	prev, _ := d.values[tracker.CapGeofence].(string)
	next := snap.GeofenceMatch.Name

	if prev == next {
		return nil
	}

	if prev != "" {
		payload := map[string]any{"geofence": prev}
		if err := d.trigger(TriggerGeofenceLeft, payload); err != nil {
			return err
		}
	}

	if next != "" {
		payload := map[string]any{
			"geofence":   next,
			"fence_type": string(snap.GeofenceMatch.Type),
		}
		if err := d.trigger(TriggerGeofenceEntered, payload); err != nil {
			return err
		}
		switch snap.GeofenceMatch.Type {
		case tracker.FenceSafe:
			if err := d.trigger(TriggerSafeZoneEntered, payload); err != nil {
				return err
			}
		case tracker.FenceDanger:
			if err := d.trigger(TriggerDangerZoneEntered, payload); err != nil {
				return err
			}
		}
	}

	return nil
}

func (d *Device) trigger(name string, payload map[string]any) error {
	if err := d.platform.PublishTrigger(d.trackerID, name, payload); err != nil {
		return fmt.Errorf("firing %s: %w", name, err)
	}
	d.logger.Info("trigger fired", "tracker_id", d.trackerID, "trigger", name)
	return nil
}

// syncSettings stages changed settings and applies them as one batch.
func (d *Device) syncSettings(snap *tracker.Snapshot) error {
	staged := map[string]string{}

	if snap.ProductName != nil && *snap.ProductName != d.settings["product_name"] {
		staged["product_name"] = *snap.ProductName
	}
	if snap.ModelNumber != nil && *snap.ModelNumber != d.settings["model_number"] {
		staged["model_number"] = *snap.ModelNumber
	}

	if len(staged) == 0 {
		return nil
	}

	for k, v := range d.settings {
		if _, ok := staged[k]; !ok {
			staged[k] = v
		}
	}

	if err := d.platform.PublishSettings(d.trackerID, staged); err != nil {
		return fmt.Errorf("applying settings: %w", err)
	}
	d.settings = staged
	return nil
}

// applyValues commits every present, changed snapshot value for a
// capability the device currently declares. Applying the same snapshot
// twice produces zero writes the second time.
func (d *Device) applyValues(snap *tracker.Snapshot) error {
	for _, c := range d.orderedCaps() {
		v, ok := snapshotValue(snap, c)
		if !ok {
			continue
		}
		if prev, exists := d.values[c]; exists && valueEqual(prev, v) {
			continue
		}
		if err := d.platform.PublishCapability(d.trackerID, c, v); err != nil {
			return fmt.Errorf("applying %s: %w", c, err)
		}
		d.values[c] = v
	}
	return nil
}

// syncWarning sets a warning for terminal state reasons and clears it
// otherwise. Payloads without a state reason leave the warning alone.
func (d *Device) syncWarning(snap *tracker.Snapshot) error {
	if snap.StateReason == nil && snap.State == nil {
		return nil
	}

	want := ""
	if snap.StateReason != nil && tracker.IsTerminalReason(*snap.StateReason) {
		want = string(*snap.StateReason)
	}

	if want == d.warning {
		return nil
	}
	if err := d.platform.PublishWarning(d.trackerID, want); err != nil {
		return fmt.Errorf("setting warning: %w", err)
	}
	d.warning = want
	return nil
}

// orderedCaps returns the declared capabilities in a stable order, base
// capabilities first. Deterministic iteration keeps publishes and logs
// reproducible.
func (d *Device) orderedCaps() []string {
	out := make([]string, 0, len(d.caps))
	for _, c := range tracker.BaseCapabilities() {
		if _, ok := d.caps[c]; ok {
			out = append(out, c)
		}
	}
	for _, c := range tracker.OptionalCapabilities() {
		if _, ok := d.caps[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// snapshotValue extracts the value a capability should take from a
// snapshot. The second return value is false when the snapshot does not
// carry the field.
func snapshotValue(s *tracker.Snapshot, capability string) (any, bool) {
	switch capability {
	case tracker.CapBatteryLevel:
		if s.BatteryLevel != nil {
			return *s.BatteryLevel, true
		}
	case tracker.CapBatteryCharging:
		if s.Charging != nil {
			return *s.Charging, true
		}
	case tracker.CapTrackerState:
		if s.State != nil {
			return string(*s.State), true
		}
	case tracker.CapAltitude:
		if s.Altitude != nil {
			return *s.Altitude, true
		}
	case tracker.CapSpeed:
		if s.Speed != nil {
			return *s.Speed, true
		}
	case tracker.CapLatitude:
		if s.Latitude != nil {
			return *s.Latitude, true
		}
	case tracker.CapLongitude:
		if s.Longitude != nil {
			return *s.Longitude, true
		}
	case tracker.CapAddress:
		if s.ResolvedAddress != nil {
			if display := s.ResolvedAddress.Display(); display != "" {
				return display, true
			}
		}
	case tracker.CapGeofence:
		if s.GeofenceMatch != nil {
			return s.GeofenceMatch.Name, true
		}
	case tracker.CapPowerSavingZone:
		if s.PowerSavingZoneName != nil {
			return *s.PowerSavingZoneName, true
		}
	case tracker.CapBuzzerControl:
		if s.BuzzerActive != nil {
			return *s.BuzzerActive, true
		}
	case tracker.CapLEDControl:
		if s.LEDActive != nil {
			return *s.LEDActive, true
		}
	case tracker.CapLiveTracking:
		if s.LiveTrackingActive != nil {
			return *s.LiveTrackingActive, true
		}
	}
	return nil, false
}

// valueEqual compares two stored values, treating numeric types as equal
// when their values match. Persisted state round-trips through JSON, which
// turns ints into float64s.
func valueEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
