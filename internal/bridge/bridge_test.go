package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/pawlink/pawlink-core/internal/cloud"
	"github.com/pawlink/pawlink-core/internal/infrastructure/mqtt"
)

// publishRecord captures one broker publish.
type publishRecord struct {
	topic    string
	payload  []byte
	retained bool
}

// fakeBroker records publishes and stores subscription handlers.
type fakeBroker struct {
	mu        sync.Mutex
	published []publishRecord
	handlers  map[string]mqtt.MessageHandler
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: map[string]mqtt.MessageHandler{}}
}

func (f *fakeBroker) PublishRetained(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishRecord{topic, payload, true})
	return nil
}

func (f *fakeBroker) PublishEvent(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishRecord{topic, payload, false})
	return nil
}

func (f *fakeBroker) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeBroker) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, topic)
	return nil
}

func (f *fakeBroker) last() publishRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[len(f.published)-1]
}

func (f *fakeBroker) find(topic string) (publishRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.published) - 1; i >= 0; i-- {
		if f.published[i].topic == topic {
			return f.published[i], true
		}
	}
	return publishRecord{}, false
}

// deliver simulates an inbound broker message through the wildcard
// subscription.
func (f *fakeBroker) deliver(t *testing.T, topic string, payload []byte) {
	t.Helper()
	f.mu.Lock()
	handler := f.handlers["pawlink/command/+/+"]
	f.mu.Unlock()
	if handler == nil {
		t.Fatal("no command subscription registered")
	}
	if err := handler(topic, payload); err != nil {
		t.Fatalf("command handler returned error: %v", err)
	}
}

// fakeCommander records vendor command calls.
type fakeCommander struct {
	mu     sync.Mutex
	calls  []string
	active bool
	err    error
}

func (f *fakeCommander) Command(_ context.Context, trackerID, action string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, trackerID+"/"+action)
	f.active = active
	return f.err
}

func TestPublishCapabilityRetained(t *testing.T) {
	broker := newFakeBroker()
	b := New(broker, nil)

	if err := b.PublishCapability("t-1", "battery_level", 77); err != nil {
		t.Fatalf("PublishCapability() error = %v", err)
	}

	rec := broker.last()
	if rec.topic != "pawlink/state/t-1/battery_level" {
		t.Errorf("topic = %q", rec.topic)
	}
	if !rec.retained {
		t.Error("capability value must be retained")
	}

	var doc map[string]any
	if err := json.Unmarshal(rec.payload, &doc); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if doc["value"] != float64(77) {
		t.Errorf("value = %v, want 77", doc["value"])
	}
}

func TestPublishTriggerIsEvent(t *testing.T) {
	broker := newFakeBroker()
	b := New(broker, nil)

	err := b.PublishTrigger("t-1", "geofence_entered", map[string]any{"geofence": "Yard"})
	if err != nil {
		t.Fatalf("PublishTrigger() error = %v", err)
	}

	rec := broker.last()
	if rec.topic != "pawlink/trigger/t-1/geofence_entered" {
		t.Errorf("topic = %q", rec.topic)
	}
	if rec.retained {
		t.Error("triggers must not be retained")
	}
}

func TestCapabilityListTracksAddsAndRemoves(t *testing.T) {
	broker := newFakeBroker()
	b := New(broker, nil)

	if err := b.AddCapability("t-1", "led_control"); err != nil {
		t.Fatal(err)
	}
	if err := b.AddCapability("t-1", "buzzer_control"); err != nil {
		t.Fatal(err)
	}

	var doc struct {
		Capabilities []string `json:"capabilities"`
	}
	rec := broker.last()
	if err := json.Unmarshal(rec.payload, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Capabilities) != 2 || doc.Capabilities[0] != "buzzer_control" {
		t.Errorf("capabilities = %v, want sorted [buzzer_control led_control]", doc.Capabilities)
	}

	if err := b.RemoveCapability("t-1", "buzzer_control"); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(broker.last().payload, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Capabilities) != 1 || doc.Capabilities[0] != "led_control" {
		t.Errorf("capabilities = %v after remove, want [led_control]", doc.Capabilities)
	}
}

func TestAvailabilityCarriesReason(t *testing.T) {
	broker := newFakeBroker()
	b := New(broker, nil)

	if err := b.PublishAvailability("t-1", false, "restart required"); err != nil {
		t.Fatal(err)
	}

	var doc map[string]any
	if err := json.Unmarshal(broker.last().payload, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["available"] != false || doc["reason"] != "restart required" {
		t.Errorf("availability doc = %v", doc)
	}
}

func TestCommandAcceptedAcks(t *testing.T) {
	broker := newFakeBroker()
	b := New(broker, nil)
	commander := &fakeCommander{}

	if err := b.SubscribeCommands(context.Background(), commander); err != nil {
		t.Fatalf("SubscribeCommands() error = %v", err)
	}

	broker.deliver(t, "pawlink/command/t-1/buzzer_control", []byte(`{"active":true}`))

	if len(commander.calls) != 1 || commander.calls[0] != "t-1/buzzer_control" {
		t.Fatalf("commander calls = %v", commander.calls)
	}
	if !commander.active {
		t.Error("active flag not forwarded")
	}

	rec, ok := broker.find("pawlink/ack/t-1/buzzer_control")
	if !ok {
		t.Fatal("no ack published")
	}
	var ack commandAck
	if err := json.Unmarshal(rec.payload, &ack); err != nil {
		t.Fatal(err)
	}
	if !ack.OK || !ack.Active {
		t.Errorf("ack = %+v, want ok and active", ack)
	}
}

func TestCommandRejectedAcksFailure(t *testing.T) {
	broker := newFakeBroker()
	b := New(broker, nil)
	commander := &fakeCommander{
		err: fmt.Errorf("%w: buzzer_control", cloud.ErrCommandRejected),
	}

	if err := b.SubscribeCommands(context.Background(), commander); err != nil {
		t.Fatal(err)
	}

	broker.deliver(t, "pawlink/command/t-1/buzzer_control", []byte(`{"active":true}`))

	rec, ok := broker.find("pawlink/ack/t-1/buzzer_control")
	if !ok {
		t.Fatal("no ack published")
	}
	var ack commandAck
	if err := json.Unmarshal(rec.payload, &ack); err != nil {
		t.Fatal(err)
	}
	if ack.OK {
		t.Error("rejected command acked OK")
	}
	if ack.Error != "command rejected" {
		t.Errorf("ack error = %q, want %q", ack.Error, "command rejected")
	}
}

func TestUnknownCommandActionIgnored(t *testing.T) {
	broker := newFakeBroker()
	b := New(broker, nil)
	commander := &fakeCommander{}

	if err := b.SubscribeCommands(context.Background(), commander); err != nil {
		t.Fatal(err)
	}

	broker.deliver(t, "pawlink/command/t-1/self_destruct", []byte(`{"active":true}`))

	if len(commander.calls) != 0 {
		t.Errorf("unknown action forwarded: %v", commander.calls)
	}
	if _, ok := broker.find("pawlink/ack/t-1/self_destruct"); ok {
		t.Error("unknown action was acked")
	}
}

func TestCommandErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rejected", cloud.ErrCommandRejected, "command rejected"},
		{"unauthorized", cloud.ErrUnauthorized, "authentication failed"},
		{"transport", errors.New("timeout"), "command failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := commandError(tt.err); got != tt.want {
				t.Errorf("commandError() = %q, want %q", got, tt.want)
			}
		})
	}
}
