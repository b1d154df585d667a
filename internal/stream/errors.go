package stream

import "errors"

// ErrMalformedChunk indicates a stream chunk that could not be parsed as
// JSON. Malformed chunks are dropped without tearing down the connection.
var ErrMalformedChunk = errors.New("stream: malformed chunk")
