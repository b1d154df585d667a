// Package store provides per-tracker key/value persistence on bbolt.
//
// It holds the three things PawLink must remember across restarts: the
// geofence cache, the power-saving-zone name table, and the device-state
// blob used to suppress duplicate flow triggers after a restart.
//
// The caches follow a replace-wholesale lifecycle: every poll that returns
// the relevant section overwrites the stored value completely.
package store
