// Package bridge adapts tracker device state onto the MQTT contract of
// the local smart-home platform.
//
// Outbound, it implements the platform surface devices write to: retained
// capability values, settings, availability, warnings and the declared
// capability list, plus non-retained flow trigger events. Inbound, it
// subscribes to the command topics, forwards buzzer, LED and
// live-tracking toggles to the vendor and acks each attempt with its
// outcome. A HealthReporter publishes a retained bridge health document
// on a fixed interval.
package bridge
