// Package device keeps the local model of each tracker synchronized with
// the vendor cloud.
//
// A Device consumes raw vendor payloads from both the poll scheduler and
// the push stream, normalizes them, asks the zone resolver for geofence
// and zone enrichment and reconciles the result into host-platform side
// effects. Reconciliation emits only real changes and runs its steps in a
// fixed order: capability set, flow triggers, settings, capability values,
// warning state. Triggers are evaluated against the pre-update values so
// edges fire exactly once.
//
// The Poller refreshes full tracker records on a fixed interval and once
// at startup. The Monitor watches the shared stream heartbeat and drives
// availability: a quiet stream is tolerated, a stale one is forced down
// for reconnection, a dead one marks devices unavailable until a fresh
// heartbeat arrives. The Manager owns both loops plus the per-device
// stream subscriptions and tears them down in a safe order.
//
// Device state is persisted per tracker so a restart resumes edge
// detection from the last known state instead of re-firing triggers.
package device
