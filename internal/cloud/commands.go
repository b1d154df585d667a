package cloud

import (
	"context"
	"fmt"
	"net/url"
)

// Command actions accepted by the vendor command endpoint.
const (
	CommandBuzzer       = "buzzer_control"
	CommandLED          = "led_control"
	CommandLiveTracking = "live_tracking"
)

// Command toggles a tracker actuator (buzzer, LED, live tracking).
//
// The vendor answers with a pending flag; a missing or false flag means
// the command was not accepted and surfaces as ErrCommandRejected. Unlike
// sync-path errors, command errors propagate to the caller: the user
// pressed a button and deserves the failure.
func (c *Client) Command(ctx context.Context, trackerID, action string, active bool) error {
	state := "off"
	if active {
		state = "on"
	}
	path := fmt.Sprintf("/tracker/%s/command/%s/%s",
		url.PathEscape(trackerID), url.PathEscape(action), state)

	var result struct {
		Pending bool `json:"pending"`
	}
	if err := c.postJSON(ctx, path, nil, &result); err != nil {
		return err
	}
	if !result.Pending {
		return fmt.Errorf("%w: %s %s for tracker %s", ErrCommandRejected, action, state, trackerID)
	}
	return nil
}
