package mqtt

import "fmt"

// Topic prefixes for the PawLink MQTT contract.
//
// All tracker topics use the flat scheme: pawlink/{category}/{tracker_id}[/{suffix}]
// so the platform can subscribe per tracker or per category with wildcards.
const (
	// TopicPrefix is the base for all PawLink topics.
	TopicPrefix = "pawlink"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "pawlink/system"
)

// Topics provides builders for PawLink MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.TrackerState("TRAXAS1", "battery_level")
//	// Returns: "pawlink/state/TRAXAS1/battery_level"
type Topics struct{}

// TrackerState returns the topic for a single capability value of a tracker.
//
// Example: pawlink/state/TRAXAS1/battery_level
func (Topics) TrackerState(trackerID, capability string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, trackerID, capability)
}

// TrackerSettings returns the topic for the batched settings document of a tracker.
//
// Example: pawlink/settings/TRAXAS1
func (Topics) TrackerSettings(trackerID string) string {
	return fmt.Sprintf("%s/settings/%s", TopicPrefix, trackerID)
}

// TrackerAvailability returns the topic for tracker availability and warning state.
//
// Example: pawlink/availability/TRAXAS1
func (Topics) TrackerAvailability(trackerID string) string {
	return fmt.Sprintf("%s/availability/%s", TopicPrefix, trackerID)
}

// TrackerCapabilities returns the topic for the declared capability list
// of a tracker, published retained whenever the set changes.
//
// Example: pawlink/capabilities/TRAXAS1
func (Topics) TrackerCapabilities(trackerID string) string {
	return fmt.Sprintf("%s/capabilities/%s", TopicPrefix, trackerID)
}

// TrackerWarning returns the topic for the current warning code of a tracker.
//
// Example: pawlink/warning/TRAXAS1
func (Topics) TrackerWarning(trackerID string) string {
	return fmt.Sprintf("%s/warning/%s", TopicPrefix, trackerID)
}

// TrackerTrigger returns the topic for a flow trigger of a tracker.
//
// Example: pawlink/trigger/TRAXAS1/geofence_entered
func (Topics) TrackerTrigger(trackerID, trigger string) string {
	return fmt.Sprintf("%s/trigger/%s/%s", TopicPrefix, trackerID, trigger)
}

// TrackerCommand returns the topic for commands to a tracker.
//
// Example: pawlink/command/TRAXAS1/buzzer
func (Topics) TrackerCommand(trackerID, action string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, trackerID, action)
}

// AllTrackerCommands returns the wildcard pattern matching every command topic.
//
// Example: pawlink/command/+/+
func (Topics) AllTrackerCommands() string {
	return fmt.Sprintf("%s/command/+/+", TopicPrefix)
}

// TrackerAck returns the topic for command acknowledgements.
//
// Example: pawlink/ack/TRAXAS1/buzzer
func (Topics) TrackerAck(trackerID, action string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, trackerID, action)
}

// BridgeHealth returns the topic for periodic bridge health status.
//
// Example: pawlink/health/bridge
func (Topics) BridgeHealth() string {
	return fmt.Sprintf("%s/health/bridge", TopicPrefix)
}

// SystemStatus returns the topic for bridge online/offline status (LWT).
//
// Example: pawlink/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
