// Package mqtt provides the MQTT transport between PawLink Core and the
// local smart-home platform.
//
// It wraps paho.mqtt.golang with:
//   - Connection management with auto-reconnect and exponential backoff
//   - Automatic re-subscription after reconnect
//   - Last Will and Testament for offline detection
//   - Topic builders for the PawLink topic contract
//   - Panic recovery around message handlers
//
// # Topic Contract
//
//	pawlink/state/{tracker}/{capability}   retained capability values
//	pawlink/settings/{tracker}             retained settings document
//	pawlink/availability/{tracker}         retained availability + warning
//	pawlink/trigger/{tracker}/{trigger}    flow triggers (not retained)
//	pawlink/command/{tracker}/{action}     inbound commands
//	pawlink/ack/{tracker}/{action}         command acknowledgements
//	pawlink/health/bridge                  periodic bridge health
//	pawlink/system/status                  online/offline status (LWT)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil { ... }
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	client.PublishRetained(topics.TrackerState("TRAXAS1", "battery_level"), payload)
package mqtt
