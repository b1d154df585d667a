// Package cloud implements the client for the vendor pet-tracker API.
//
// It covers the five read surfaces the sync engine consumes (full tracker
// record, geofence list, power-saving-zone list, single zone lookup,
// reverse geocoding), the command endpoint for actuator toggles, and the
// long-lived push channel.
//
// # Authentication
//
// The client owns the bearer token. It is acquired lazily from the auth
// endpoint, attached to every request, and invalidated on HTTP 401.
// Regular requests retry once after a refresh; the push channel does not
// retry (reconnect policy belongs to the stream supervisor).
//
// # Error taxonomy
//
//   - ErrNoToken / ErrUnauthorized: credential problems, fixed by refresh
//   - ErrTransport: network or server failure, retried on the next cycle
//   - ErrNotFound: unknown tracker or zone
//   - ErrCommandRejected: the vendor refused an actuator command
package cloud
