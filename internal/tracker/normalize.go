package tracker

import (
	"strconv"
	"strings"
)

// Normalize maps a raw vendor payload into a canonical Snapshot.
//
// The vendor uses two shapes for the same data: the poll endpoint returns
// e.g. "state"/"state_reason" while the push stream sends "tracker_state"/
// "tracker_state_reason". Both are accepted; the first alias present wins.
//
// Rules:
//   - Only fields present in the input populate the canonical field
//     (absence is not false/zero).
//   - Numeric fields are coerced to numbers, string enums lower-cased.
//   - A state reason of "power_saving" forces the state to power_saving,
//     overriding any literal state field.
//   - Product name is derived from model_number (+ hw_edition) via the
//     static SKU table; unknown combinations get a placeholder.
//
// Normalize performs no I/O and never fails: unusable fields are skipped.
func Normalize(trackerID string, raw map[string]any) *Snapshot {
	s := &Snapshot{TrackerID: trackerID}

	s.Latitude = floatField(raw, "latitude", "lat")
	s.Longitude = floatField(raw, "longitude", "lng", "lon")
	s.Altitude = floatField(raw, "altitude")
	s.Speed = floatField(raw, "speed")

	s.BatteryLevel = intField(raw, "battery_level", "battery")
	s.Charging = boolField(raw, "charging", "battery_charging")

	s.BuzzerActive = boolField(raw, "buzzer_active", "buzzer")
	s.LEDActive = boolField(raw, "led_active", "led")
	s.LiveTrackingActive = boolField(raw, "live_tracking_active", "live_tracking")

	if v := enumField(raw, "tracker_state", "state"); v != nil {
		state := State(*v)
		s.State = &state
	}
	if v := enumField(raw, "tracker_state_reason", "state_reason"); v != nil {
		reason := StateReason(*v)
		s.StateReason = &reason
	}

	// The reason is authoritative: a tracker inside a power-saving zone may
	// still report a literal state of operational.
	if s.StateReason != nil && *s.StateReason == ReasonPowerSaving {
		state := StatePowerSaving
		s.State = &state
	}

	s.LocationSource = stringField(raw, "location_source", "sensor_used")
	s.PowerSavingZoneID = stringField(raw, "power_saving_zone_id")

	s.ModelNumber = stringField(raw, "model_number")
	s.HWEdition = stringField(raw, "hw_edition")
	if s.ModelNumber != nil {
		edition := ""
		if s.HWEdition != nil {
			edition = *s.HWEdition
		}
		name := ProductName(*s.ModelNumber, edition)
		s.ProductName = &name
	}

	if codes, ok := raw["capabilities"]; ok {
		s.CapabilityCodes = capabilityCodes(codes)
	}

	return s
}

// capabilityCodes converts a raw capability list into typed codes.
// Non-string entries are skipped; an empty list is preserved as empty
// (meaning "tracker reports no optional capabilities"), distinct from nil.
func capabilityCodes(v any) []CapabilityCode {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	codes := make([]CapabilityCode, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			codes = append(codes, CapabilityCode(strings.ToUpper(s)))
		}
	}
	return codes
}

// floatField returns the first present alias coerced to float64.
func floatField(raw map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if f, ok := toFloat(v); ok {
			return &f
		}
	}
	return nil
}

// intField returns the first present alias coerced to int.
func intField(raw map[string]any, keys ...string) *int {
	if f := floatField(raw, keys...); f != nil {
		i := int(*f)
		return &i
	}
	return nil
}

// boolField returns the first present alias coerced to bool.
func boolField(raw map[string]any, keys ...string) *bool {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if b, ok := toBool(v); ok {
			return &b
		}
	}
	return nil
}

// stringField returns the first present alias as a trimmed string.
func stringField(raw map[string]any, keys ...string) *string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			trimmed := strings.TrimSpace(s)
			if trimmed != "" {
				return &trimmed
			}
		}
	}
	return nil
}

// enumField is stringField plus lower-casing for vendor enums.
func enumField(raw map[string]any, keys ...string) *string {
	s := stringField(raw, keys...)
	if s == nil {
		return nil
	}
	lowered := strings.ToLower(*s)
	return &lowered
}

// toFloat coerces JSON-decoded values to float64.
// Vendors have been observed sending numbers as strings on some firmwares.
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
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// toBool coerces JSON-decoded values to bool.
func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(b)))
		if err != nil {
			return false, false
		}
		return parsed, true
	case float64:
		return b != 0, true
	default:
		return false, false
	}
}
