package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/pawlink/pawlink-core/internal/tracker"
)

var (
	bucketGeofences = []byte("geofences")
	bucketZones     = []byte("power_saving_zones")
	bucketDevices   = []byte("device_state")
)

// Store persists per-tracker state in a local bbolt database.
//
// Three buckets, each keyed by tracker ID:
//   - geofences: JSON array of the cached geofence list
//   - power_saving_zones: JSON object mapping zone ID to trimmed name
//   - device_state: opaque JSON blob owned by the device package
//
// All methods are safe for concurrent use (bbolt serialises writers).
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketGeofences, bucketZones, bucketDevices} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveGeofences replaces the cached geofence list for a tracker.
// The list is stored wholesale; callers never patch it incrementally.
func (s *Store) SaveGeofences(trackerID string, fences []tracker.Geofence) error {
	return s.putJSON(bucketGeofences, trackerID, fences)
}

// Geofences returns the cached geofence list for a tracker.
// A tracker with no cached fences yields an empty slice, not an error.
func (s *Store) Geofences(trackerID string) ([]tracker.Geofence, error) {
	var fences []tracker.Geofence
	err := s.getJSON(bucketGeofences, trackerID, &fences)
	if err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return fences, nil
}

// SaveZones replaces the power-saving-zone name table for a tracker.
func (s *Store) SaveZones(trackerID string, zones map[string]string) error {
	return s.putJSON(bucketZones, trackerID, zones)
}

// Zones returns the power-saving-zone name table for a tracker.
// A tracker with no cached zones yields an empty map, not an error.
func (s *Store) Zones(trackerID string) (map[string]string, error) {
	var zones map[string]string
	err := s.getJSON(bucketZones, trackerID, &zones)
	if err != nil {
		if err == ErrNotFound {
			return map[string]string{}, nil
		}
		return nil, err
	}
	if zones == nil {
		zones = map[string]string{}
	}
	return zones, nil
}

// SaveDeviceState persists the opaque device-state blob for a tracker.
// The value is marshalled as JSON; the device package owns its shape.
func (s *Store) SaveDeviceState(trackerID string, v any) error {
	return s.putJSON(bucketDevices, trackerID, v)
}

// LoadDeviceState unmarshals the persisted device-state blob into v.
// Returns ErrNotFound when the tracker has no persisted state yet.
func (s *Store) LoadDeviceState(trackerID string, v any) error {
	return s.getJSON(bucketDevices, trackerID, v)
}

func (s *Store) putJSON(bucket []byte, key string, v any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucket)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

func (s *Store) getJSON(bucket []byte, key string, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucket)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, v)
	})
}
