package store

import "errors"

// ErrNotFound is returned when a tracker has no persisted entry for a key.
var ErrNotFound = errors.New("store: not found")
