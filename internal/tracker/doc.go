// Package tracker defines the canonical tracker data model and the pure
// normalization layer that maps heterogeneous vendor payloads onto it.
//
// The vendor exposes the same tracker state through two differently shaped
// channels (a REST poll and a push stream). Normalize accepts either shape
// and produces a Snapshot whose pointer fields encode presence, so
// downstream reconciliation can distinguish "not in this payload" from
// "explicitly zero/false".
//
// The package also holds the two static lookup tables shared across the
// codebase: the SKU-to-product-name table and the vendor capability-code
// to local-capability mapping.
//
// Nothing in this package performs I/O.
package tracker
