package geozone

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pawlink/pawlink-core/internal/tracker"
)

// ZoneNone is the explicit "no zone" result for a blank or unknown zone ID.
const ZoneNone = "none"

// Logger defines the logging interface used by the Resolver.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// LookupClient is the slice of the vendor API the resolver needs for
// cache-miss fallbacks and reverse geocoding.
type LookupClient interface {
	Zone(ctx context.Context, zoneID string) (string, error)
	Address(ctx context.Context, lat, lng float64) (*tracker.Address, error)
}

// CacheStore persists the per-tracker caches across restarts.
// Implemented by the store package.
type CacheStore interface {
	SaveGeofences(trackerID string, fences []tracker.Geofence) error
	Geofences(trackerID string) ([]tracker.Geofence, error)
	SaveZones(trackerID string, zones map[string]string) error
	Zones(trackerID string) (map[string]string, error)
}

// Resolver enriches normalized snapshots with geofence and power-saving
// zone membership for one tracker.
//
// It owns the tracker's geofence and zone caches. Both caches follow a
// replace-wholesale lifecycle: every poll that returns the section
// replaces the cache completely. Geofence evaluation order is cache
// insertion order, so the slice is never re-sorted.
//
// Thread Safety: all methods are safe for concurrent use.
type Resolver struct {
	trackerID string
	client    LookupClient
	cache     CacheStore
	logger    Logger

	mu     sync.RWMutex
	fences []tracker.Geofence
	zones  map[string]string
}

// NewResolver creates a resolver for one tracker and loads any persisted
// caches. A missing or unreadable persisted cache starts empty; it will be
// rebuilt by the next poll.
func NewResolver(trackerID string, client LookupClient, cache CacheStore, logger Logger) *Resolver {
	if logger == nil {
		logger = noopLogger{}
	}
	r := &Resolver{
		trackerID: trackerID,
		client:    client,
		cache:     cache,
		logger:    logger,
		zones:     map[string]string{},
	}

	if cache != nil {
		if fences, err := cache.Geofences(trackerID); err == nil {
			r.fences = fences
		} else {
			logger.Warn("loading persisted geofences failed", "tracker_id", trackerID, "error", err)
		}
		if zones, err := cache.Zones(trackerID); err == nil && zones != nil {
			r.zones = zones
		}
	}

	return r
}

// SetGeofences replaces the geofence cache from a fresh poll result.
//
// Inactive and unnamed entries are discarded before caching; the remaining
// fences keep the vendor's order, which is the evaluation priority.
func (r *Resolver) SetGeofences(fences []tracker.Geofence) {
	kept := make([]tracker.Geofence, 0, len(fences))
	for _, f := range fences {
		f.Name = strings.TrimSpace(f.Name)
		if !f.Active || f.Name == "" {
			continue
		}
		kept = append(kept, f)
	}

	r.mu.Lock()
	r.fences = kept
	r.mu.Unlock()

	if r.cache != nil {
		if err := r.cache.SaveGeofences(r.trackerID, kept); err != nil {
			r.logger.Warn("persisting geofences failed", "tracker_id", r.trackerID, "error", err)
		}
	}
}

// SetZones replaces the power-saving-zone name table from a fresh poll result.
func (r *Resolver) SetZones(zones map[string]string) {
	cleaned := make(map[string]string, len(zones))
	for id, name := range zones {
		cleaned[id] = strings.TrimSpace(name)
	}

	// Persist before installing so the cache never marshals the live map.
	if r.cache != nil {
		if err := r.cache.SaveZones(r.trackerID, cleaned); err != nil {
			r.logger.Warn("persisting zones failed", "tracker_id", r.trackerID, "error", err)
		}
	}

	r.mu.Lock()
	r.zones = cleaned
	r.mu.Unlock()
}

// GeofenceCount returns the number of cached fences (diagnostics).
func (r *Resolver) GeofenceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fences)
}

// ResolveGeofence returns the first cached fence containing the coordinate,
// or the neutral zero-value Geofence when nothing matches.
func (r *Resolver) ResolveGeofence(lat, lng float64) tracker.Geofence {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, fence := range r.fences {
		if Contains(fence, lat, lng) {
			return fence
		}
	}
	return tracker.Geofence{}
}

// ResolveZoneName resolves a power-saving-zone ID to its trimmed name.
//
// A blank ID yields the ZoneNone sentinel, never an error. Cache misses
// fall back to a direct vendor lookup whose result is cached for next time.
func (r *Resolver) ResolveZoneName(ctx context.Context, zoneID string) (string, error) {
	if strings.TrimSpace(zoneID) == "" {
		return ZoneNone, nil
	}

	r.mu.RLock()
	name, ok := r.zones[zoneID]
	r.mu.RUnlock()
	if ok && name != "" {
		return name, nil
	}

	fetched, err := r.client.Zone(ctx, zoneID)
	if err != nil {
		return "", fmt.Errorf("%w: zone %s: %w", ErrLookup, zoneID, err)
	}
	fetched = strings.TrimSpace(fetched)
	if fetched == "" {
		return ZoneNone, nil
	}

	// Persist a copy: the live map keeps mutating under r.mu while the
	// cache marshals its argument.
	r.mu.Lock()
	r.zones[zoneID] = fetched
	zones := make(map[string]string, len(r.zones))
	for id, n := range r.zones {
		zones[id] = n
	}
	r.mu.Unlock()

	if r.cache != nil {
		if err := r.cache.SaveZones(r.trackerID, zones); err != nil {
			r.logger.Warn("persisting zones failed", "tracker_id", r.trackerID, "error", err)
		}
	}

	return fetched, nil
}

// Enrich fills the snapshot's derived fields.
//
// Coordinate-driven enrichment (geofence match and reverse-geocoded
// address) only runs when positionChanged is true, so steady heartbeats do
// not burn address lookups. A failed address lookup drops only the address
// field; geofence and zone resolution still complete.
func (r *Resolver) Enrich(ctx context.Context, snap *tracker.Snapshot, positionChanged bool) {
	if snap.HasPosition() && positionChanged {
		fence := r.ResolveGeofence(*snap.Latitude, *snap.Longitude)
		snap.GeofenceMatch = &fence

		addr, err := r.client.Address(ctx, *snap.Latitude, *snap.Longitude)
		if err != nil {
			r.logger.Warn("address lookup failed, dropping address field",
				"tracker_id", r.trackerID, "error", err)
		} else {
			snap.ResolvedAddress = addr
		}
	}

	// Power-saving zone membership follows the state reason, not geometry:
	// the vendor decides membership and reports the zone ID.
	active := snap.StateReason != nil && *snap.StateReason == tracker.ReasonPowerSaving
	snap.PowerSavingZoneActive = active

	if snap.PowerSavingZoneID != nil || active {
		zoneID := ""
		if snap.PowerSavingZoneID != nil {
			zoneID = *snap.PowerSavingZoneID
		}
		name, err := r.ResolveZoneName(ctx, zoneID)
		if err != nil {
			r.logger.Warn("zone name lookup failed, dropping zone name",
				"tracker_id", r.trackerID, "error", err)
		} else {
			snap.PowerSavingZoneName = &name
		}
	}
}
