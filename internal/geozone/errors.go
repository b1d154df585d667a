package geozone

import "errors"

// ErrLookup indicates a power-saving zone name could not be resolved
// from the cache or the vendor API.
var ErrLookup = errors.New("geozone: lookup failed")
