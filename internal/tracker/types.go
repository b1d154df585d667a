package tracker

// State is the reporting state of a tracker, lower-cased from the vendor.
// Unknown vendor strings are carried through untouched so new states
// surface in the device UI instead of being swallowed.
type State string

const (
	StateOperational  State = "operational"
	StatePowerSaving  State = "power_saving"
	StateNotReporting State = "not_reporting"
)

// StateReason explains why a tracker is in its current state.
type StateReason string

const (
	ReasonPowerSaving    StateReason = "power_saving"
	ReasonOutOfBattery   StateReason = "out_of_battery"
	ReasonShutdownByUser StateReason = "shutdown_by_user"
	ReasonNotReporting   StateReason = "not_reporting"
)

// terminalReasons are the degraded states that produce a user-visible warning.
var terminalReasons = map[StateReason]struct{}{
	ReasonOutOfBattery:   {},
	ReasonShutdownByUser: {},
	ReasonNotReporting:   {},
}

// IsTerminalReason reports whether a state reason should raise a warning.
func IsTerminalReason(r StateReason) bool {
	_, ok := terminalReasons[r]
	return ok
}

// GeofenceShape is the geometry kind of a fence.
type GeofenceShape string

const (
	ShapeCircle    GeofenceShape = "circle"
	ShapeRectangle GeofenceShape = "rectangle"
	ShapePolygon   GeofenceShape = "polygon"
)

// FenceType classifies a geofence for trigger routing.
type FenceType string

const (
	FenceSafe   FenceType = "safe"
	FenceDanger FenceType = "danger"
	FenceOther  FenceType = "other"
)

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geofence is a named, shaped region associated with a tracker.
//
// For circles the first coordinate is the centre and Radius is in metres.
// For rectangles and polygons Coordinates is the ordered ring.
type Geofence struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Shape       GeofenceShape `json:"shape"`
	Coordinates []Coordinate  `json:"coordinates"`
	Radius      float64       `json:"radius,omitempty"`
	Type        FenceType     `json:"fence_type"`
	Active      bool          `json:"active"`
}

// IsZero reports whether this is the neutral "no fence" value.
func (g Geofence) IsZero() bool {
	return g.ID == "" && g.Name == ""
}

// Address is a reverse-geocoded location.
type Address struct {
	Street  string `json:"street,omitempty"`
	House   string `json:"house,omitempty"`
	Zip     string `json:"zip,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// Display returns a single-line human-readable form of the address.
func (a Address) Display() string {
	parts := make([]string, 0, 4)
	if a.Street != "" {
		s := a.Street
		if a.House != "" {
			s += " " + a.House
		}
		parts = append(parts, s)
	}
	if a.City != "" {
		parts = append(parts, a.City)
	}
	if a.Country != "" {
		parts = append(parts, a.Country)
	}
	return joinNonEmpty(parts, ", ")
}

func joinNonEmpty(parts []string, sep string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		out += p
	}
	return out
}

// Snapshot is one normalized, point-in-time view of tracker state derived
// from either a poll or a stream message.
//
// Pointer fields distinguish "absent from payload" from zero values; the
// reconciler only touches device state for fields that are present.
type Snapshot struct {
	TrackerID string

	// Position and motion
	Latitude  *float64
	Longitude *float64
	Altitude  *float64
	Speed     *float64

	// Power
	BatteryLevel *int
	Charging     *bool

	// Actuator states
	BuzzerActive       *bool
	LEDActive          *bool
	LiveTrackingActive *bool

	// Reporting state
	State          *State
	StateReason    *StateReason
	LocationSource *string

	// Hardware identity
	ModelNumber *string
	HWEdition   *string
	ProductName *string

	// CapabilityCodes is the vendor capability tag list (nil = absent,
	// empty = tracker reports no optional capabilities).
	CapabilityCodes []CapabilityCode

	// PowerSavingZoneID is the raw power-saving-zone reference, if any.
	PowerSavingZoneID *string

	// Enrichment, filled by the zone resolver.
	ResolvedAddress       *Address
	GeofenceMatch         *Geofence
	PowerSavingZoneName   *string
	PowerSavingZoneActive bool
}

// HasPosition reports whether the snapshot carries a complete coordinate pair.
func (s *Snapshot) HasPosition() bool {
	return s.Latitude != nil && s.Longitude != nil
}
