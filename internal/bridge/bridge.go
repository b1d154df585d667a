package bridge

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pawlink/pawlink-core/internal/infrastructure/mqtt"
)

// Publisher is the broker surface the bridge publishes through.
// Implemented by the mqtt client.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
	PublishEvent(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger defines the logging interface for the bridge.
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

// Bridge adapts tracker device state onto the MQTT contract of the local
// smart-home platform. State, settings, availability, warnings and the
// capability list are retained so the platform can resync at any time;
// flow triggers are events and never retained.
type Bridge struct {
	broker Publisher
	topics mqtt.Topics
	logger Logger
	now    func() time.Time

	mu   sync.Mutex
	caps map[string]map[string]struct{}
}

// New creates the platform bridge over a connected broker client.
func New(broker Publisher, logger Logger) *Bridge {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bridge{
		broker: broker,
		logger: logger,
		now:    time.Now,
		caps:   map[string]map[string]struct{}{},
	}
}

// AddCapability declares a capability for a tracker and republishes the
// retained capability list.
func (b *Bridge) AddCapability(trackerID, capability string) error {
	b.mu.Lock()
	set, ok := b.caps[trackerID]
	if !ok {
		set = map[string]struct{}{}
		b.caps[trackerID] = set
	}
	set[capability] = struct{}{}
	list := sortedKeys(set)
	b.mu.Unlock()

	return b.publishCapabilityList(trackerID, list)
}

// RemoveCapability retracts a capability and republishes the list.
func (b *Bridge) RemoveCapability(trackerID, capability string) error {
	b.mu.Lock()
	if set, ok := b.caps[trackerID]; ok {
		delete(set, capability)
	}
	list := sortedKeys(b.caps[trackerID])
	b.mu.Unlock()

	return b.publishCapabilityList(trackerID, list)
}

func (b *Bridge) publishCapabilityList(trackerID string, list []string) error {
	payload, err := json.Marshal(map[string]any{
		"capabilities": list,
		"updated_at":   b.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding capability list: %w", err)
	}
	return b.broker.PublishRetained(b.topics.TrackerCapabilities(trackerID), payload)
}

// PublishCapability publishes one capability value, retained.
func (b *Bridge) PublishCapability(trackerID, capability string, value any) error {
	payload, err := json.Marshal(map[string]any{
		"value":      value,
		"updated_at": b.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding %s value: %w", capability, err)
	}
	return b.broker.PublishRetained(b.topics.TrackerState(trackerID, capability), payload)
}

// PublishSettings publishes the batched settings document, retained.
func (b *Bridge) PublishSettings(trackerID string, settings map[string]string) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	return b.broker.PublishRetained(b.topics.TrackerSettings(trackerID), payload)
}

// PublishAvailability publishes the availability flag with its reason,
// retained.
func (b *Bridge) PublishAvailability(trackerID string, available bool, reason string) error {
	doc := map[string]any{
		"available":  available,
		"updated_at": b.now().UTC().Format(time.RFC3339),
	}
	if reason != "" {
		doc["reason"] = reason
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding availability: %w", err)
	}
	return b.broker.PublishRetained(b.topics.TrackerAvailability(trackerID), payload)
}

// PublishWarning publishes the current warning code, retained. An empty
// warning clears the previous one.
func (b *Bridge) PublishWarning(trackerID, warning string) error {
	payload, err := json.Marshal(map[string]any{
		"warning":    warning,
		"updated_at": b.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding warning: %w", err)
	}
	return b.broker.PublishRetained(b.topics.TrackerWarning(trackerID), payload)
}

// PublishTrigger fires a flow trigger as a non-retained event.
func (b *Bridge) PublishTrigger(trackerID, trigger string, payload map[string]any) error {
	doc := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		doc[k] = v
	}
	doc["fired_at"] = b.now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s trigger: %w", trigger, err)
	}
	return b.broker.PublishEvent(b.topics.TrackerTrigger(trackerID, trigger), body)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
