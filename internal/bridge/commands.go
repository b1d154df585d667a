package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pawlink/pawlink-core/internal/cloud"
)

// commandQoS is the subscription QoS for inbound commands. At-least-once:
// a duplicate toggle is harmless, a lost one is not.
const commandQoS = 1

// Commander forwards actuator commands to the vendor.
// Implemented by the cloud client.
type Commander interface {
	Command(ctx context.Context, trackerID, action string, active bool) error
}

// commandActions are the actions accepted on the command topic. These are
// the vendor command names, so the topic suffix maps straight through.
var commandActions = map[string]struct{}{
	cloud.CommandBuzzer:       {},
	cloud.CommandLED:          {},
	cloud.CommandLiveTracking: {},
}

// commandRequest is the payload of an inbound command message.
type commandRequest struct {
	Active bool `json:"active"`
}

// commandAck is published on the ack topic after every command attempt.
type commandAck struct {
	OK     bool   `json:"ok"`
	Active bool   `json:"active"`
	Error  string `json:"error,omitempty"`
}

// SubscribeCommands starts handling inbound actuator commands. Commands
// are forwarded to the vendor and acked with the outcome; errors propagate
// no further than the ack.
func (b *Bridge) SubscribeCommands(ctx context.Context, commander Commander) error {
	handler := func(topic string, payload []byte) error {
		b.handleCommand(ctx, commander, topic, payload)
		return nil
	}
	if err := b.broker.Subscribe(b.topics.AllTrackerCommands(), commandQoS, handler); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	return nil
}

// UnsubscribeCommands stops command handling.
func (b *Bridge) UnsubscribeCommands() error {
	return b.broker.Unsubscribe(b.topics.AllTrackerCommands())
}

func (b *Bridge) handleCommand(ctx context.Context, commander Commander, topic string, payload []byte) {
	trackerID, action, err := parseCommandTopic(topic)
	if err != nil {
		b.logger.Warn("ignoring command", "topic", topic, "error", err)
		return
	}

	var req commandRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logger.Warn("ignoring command with bad payload",
			"topic", topic, "error", err)
		b.ack(trackerID, action, commandAck{OK: false, Error: "invalid payload"})
		return
	}

	if err := commander.Command(ctx, trackerID, action, req.Active); err != nil {
		b.logger.Warn("command failed",
			"tracker_id", trackerID, "action", action, "active", req.Active, "error", err)
		b.ack(trackerID, action, commandAck{
			OK:     false,
			Active: req.Active,
			Error:  commandError(err),
		})
		return
	}

	b.logger.Info("command accepted",
		"tracker_id", trackerID, "action", action, "active", req.Active)
	b.ack(trackerID, action, commandAck{OK: true, Active: req.Active})
}

func (b *Bridge) ack(trackerID, action string, ack commandAck) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("encoding ack failed", "error", err)
		return
	}
	if err := b.broker.PublishEvent(b.topics.TrackerAck(trackerID, action), payload); err != nil {
		b.logger.Warn("publishing ack failed",
			"tracker_id", trackerID, "action", action, "error", err)
	}
}

// parseCommandTopic extracts tracker ID and action from
// pawlink/command/{tracker_id}/{action}.
func parseCommandTopic(topic string) (trackerID, action string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[1] != "command" {
		return "", "", fmt.Errorf("unexpected command topic shape: %s", topic)
	}
	trackerID, action = parts[2], parts[3]
	if trackerID == "" {
		return "", "", errors.New("empty tracker id")
	}
	if _, ok := commandActions[action]; !ok {
		return "", "", fmt.Errorf("unknown action %q", action)
	}
	return trackerID, action, nil
}

// commandError maps a vendor error to the ack error string without
// leaking transport detail.
func commandError(err error) string {
	switch {
	case errors.Is(err, cloud.ErrCommandRejected):
		return "command rejected"
	case errors.Is(err, cloud.ErrUnauthorized), errors.Is(err, cloud.ErrNoToken):
		return "authentication failed"
	default:
		return "command failed"
	}
}
