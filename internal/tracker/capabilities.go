package tracker

// CapabilityCode is a vendor capability tag attached to a tracker record.
type CapabilityCode string

const (
	CodeBuzzer       CapabilityCode = "BUZZER"
	CodeLED          CapabilityCode = "LED"
	CodeLiveTracking CapabilityCode = "LT"
)

// Capability names exposed to the smart-home platform.
//
// Base capabilities exist on every tracker; optional capabilities are added
// and removed at runtime based on the vendor capability codes, so a tracker
// gains led_control when the vendor starts reporting LED and loses it again
// if the code disappears.
const (
	CapBatteryLevel    = "battery_level"
	CapBatteryCharging = "battery_charging"
	CapTrackerState    = "tracker_state"
	CapAltitude        = "altitude"
	CapSpeed           = "speed"
	CapLatitude        = "latitude"
	CapLongitude       = "longitude"
	CapAddress         = "address"
	CapGeofence        = "geofence"
	CapPowerSavingZone = "power_saving_zone"

	CapBuzzerControl = "buzzer_control"
	CapLEDControl    = "led_control"
	CapLiveTracking  = "live_tracking"
)

// codeCapabilities is the single source of truth mapping vendor capability
// codes to local capabilities. Both pairing and the runtime capability-set
// reconciler consume this table; no string-based branching elsewhere.
var codeCapabilities = map[CapabilityCode]string{
	CodeBuzzer:       CapBuzzerControl,
	CodeLED:          CapLEDControl,
	CodeLiveTracking: CapLiveTracking,
}

// BaseCapabilities returns the capabilities every tracker device declares.
func BaseCapabilities() []string {
	return []string{
		CapBatteryLevel,
		CapBatteryCharging,
		CapTrackerState,
		CapAltitude,
		CapSpeed,
		CapLatitude,
		CapLongitude,
		CapAddress,
		CapGeofence,
		CapPowerSavingZone,
	}
}

// CapabilityForCode resolves a vendor code to its local capability.
// The second return value is false for codes we do not map (ignored, not an error).
func CapabilityForCode(code CapabilityCode) (string, bool) {
	cap, ok := codeCapabilities[code]
	return cap, ok
}

// CapabilitiesForCodes resolves a vendor code list into the set of optional
// local capabilities it implies. Unknown codes are skipped.
func CapabilitiesForCodes(codes []CapabilityCode) []string {
	caps := make([]string, 0, len(codes))
	for _, code := range codes {
		if cap, ok := codeCapabilities[code]; ok {
			caps = append(caps, cap)
		}
	}
	return caps
}

// OptionalCapabilities returns every capability that is code-driven.
func OptionalCapabilities() []string {
	caps := make([]string, 0, len(codeCapabilities))
	for _, cap := range codeCapabilities {
		caps = append(caps, cap)
	}
	return caps
}
