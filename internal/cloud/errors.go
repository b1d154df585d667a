package cloud

import "errors"

// Domain errors for the vendor API client.
//
// These map onto the sync engine's failure policy: auth errors trigger a
// token refresh on the next cycle, transport errors are logged and left for
// the scheduled retry, command rejections propagate to the caller.
var (
	// ErrNoToken is returned when an access token is required but absent
	// and cannot be acquired.
	ErrNoToken = errors.New("cloud: no access token")

	// ErrUnauthorized is returned on HTTP 401. The cached token has been
	// invalidated; the next call acquires a fresh one.
	ErrUnauthorized = errors.New("cloud: unauthorized")

	// ErrTransport is returned for network failures and non-auth HTTP errors.
	ErrTransport = errors.New("cloud: transport error")

	// ErrNotFound is returned when the vendor does not know the requested
	// resource (tracker, zone).
	ErrNotFound = errors.New("cloud: not found")

	// ErrCommandRejected is returned when the vendor refuses a tracker command.
	ErrCommandRejected = errors.New("cloud: command rejected")
)
