package geozone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/pawlink/pawlink-core/internal/tracker"
)

type fakeLookup struct {
	mu          sync.Mutex
	zones       map[string]string
	zoneErr     error
	zoneCalls   int
	address     *tracker.Address
	addrErr     error
	addrCalls   int
	lastAddrLat float64
	lastAddrLng float64
}

func (f *fakeLookup) Zone(_ context.Context, zoneID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zoneCalls++
	if f.zoneErr != nil {
		return "", f.zoneErr
	}
	return f.zones[zoneID], nil
}

func (f *fakeLookup) Address(_ context.Context, lat, lng float64) (*tracker.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addrCalls++
	f.lastAddrLat, f.lastAddrLng = lat, lng
	if f.addrErr != nil {
		return nil, f.addrErr
	}
	return f.address, nil
}

type fakeCache struct {
	fences     map[string][]tracker.Geofence
	zones      map[string]map[string]string
	saveFences int
	saveZones  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		fences: map[string][]tracker.Geofence{},
		zones:  map[string]map[string]string{},
	}
}

func (f *fakeCache) SaveGeofences(trackerID string, fences []tracker.Geofence) error {
	f.saveFences++
	f.fences[trackerID] = fences
	return nil
}

func (f *fakeCache) Geofences(trackerID string) ([]tracker.Geofence, error) {
	return f.fences[trackerID], nil
}

func (f *fakeCache) SaveZones(trackerID string, zones map[string]string) error {
	f.saveZones++
	f.zones[trackerID] = zones
	return nil
}

func (f *fakeCache) Zones(trackerID string) (map[string]string, error) {
	return f.zones[trackerID], nil
}

func circleFence(id, name string, lat, lng, radius float64) tracker.Geofence {
	return tracker.Geofence{
		ID:          id,
		Name:        name,
		Shape:       tracker.ShapeCircle,
		Coordinates: []tracker.Coordinate{{Lat: lat, Lng: lng}},
		Radius:      radius,
		Type:        tracker.FenceSafe,
		Active:      true,
	}
}

func TestSetGeofencesFiltersAndPersists(t *testing.T) {
	cache := newFakeCache()
	r := NewResolver("t-1", &fakeLookup{}, cache, nil)

	inactive := circleFence("f-2", "Old", 52, 4, 100)
	inactive.Active = false

	r.SetGeofences([]tracker.Geofence{
		circleFence("f-1", "  Garden  ", 52, 4, 100),
		inactive,
		circleFence("f-3", "   ", 52, 4, 100),
	})

	if got := r.GeofenceCount(); got != 1 {
		t.Fatalf("GeofenceCount() = %d, want 1", got)
	}

	match := r.ResolveGeofence(52, 4)
	if match.ID != "f-1" || match.Name != "Garden" {
		t.Errorf("match = %q/%q, want f-1/Garden", match.ID, match.Name)
	}

	if cache.saveFences != 1 || len(cache.fences["t-1"]) != 1 {
		t.Errorf("expected one persisted fence, got %d saves / %d fences",
			cache.saveFences, len(cache.fences["t-1"]))
	}
}

func TestResolveGeofenceFirstMatchWins(t *testing.T) {
	r := NewResolver("t-1", &fakeLookup{}, nil, nil)
	r.SetGeofences([]tracker.Geofence{
		circleFence("f-a", "A", 52, 4, 200),
		circleFence("f-b", "B", 52, 4, 200),
	})

	if match := r.ResolveGeofence(52, 4); match.Name != "A" {
		t.Errorf("overlapping fences resolved to %q, want first-cached A", match.Name)
	}
}

func TestResolveGeofenceNoMatch(t *testing.T) {
	r := NewResolver("t-1", &fakeLookup{}, nil, nil)
	r.SetGeofences([]tracker.Geofence{circleFence("f-a", "A", 52, 4, 100)})

	if match := r.ResolveGeofence(10, 10); !match.IsZero() {
		t.Errorf("expected zero fence, got %+v", match)
	}
}

func TestResolveZoneNameBlankID(t *testing.T) {
	client := &fakeLookup{}
	r := NewResolver("t-1", client, nil, nil)

	name, err := r.ResolveZoneName(context.Background(), "  ")
	if err != nil {
		t.Fatalf("ResolveZoneName() error = %v", err)
	}
	if name != ZoneNone {
		t.Errorf("name = %q, want %q", name, ZoneNone)
	}
	if client.zoneCalls != 0 {
		t.Errorf("blank zone ID should not hit the vendor API")
	}
}

func TestResolveZoneNameCacheHit(t *testing.T) {
	client := &fakeLookup{}
	r := NewResolver("t-1", client, nil, nil)
	r.SetZones(map[string]string{"z-1": " Home "})

	name, err := r.ResolveZoneName(context.Background(), "z-1")
	if err != nil {
		t.Fatalf("ResolveZoneName() error = %v", err)
	}
	if name != "Home" {
		t.Errorf("name = %q, want Home", name)
	}
	if client.zoneCalls != 0 {
		t.Errorf("cache hit should not hit the vendor API")
	}
}

func TestResolveZoneNameFetchThrough(t *testing.T) {
	client := &fakeLookup{zones: map[string]string{"z-9": "Kennel"}}
	cache := newFakeCache()
	r := NewResolver("t-1", client, cache, nil)

	for i := 0; i < 2; i++ {
		name, err := r.ResolveZoneName(context.Background(), "z-9")
		if err != nil {
			t.Fatalf("ResolveZoneName() error = %v", err)
		}
		if name != "Kennel" {
			t.Errorf("name = %q, want Kennel", name)
		}
	}

	if client.zoneCalls != 1 {
		t.Errorf("zoneCalls = %d, want 1 (second call from cache)", client.zoneCalls)
	}
	if cache.zones["t-1"]["z-9"] != "Kennel" {
		t.Errorf("fetched zone name should be persisted")
	}
}

// marshallingCache serialises the zone map it is handed, the way the
// bbolt-backed store does.
type marshallingCache struct {
	fakeCache
	mu    sync.Mutex
	saved []map[string]string
}

func (m *marshallingCache) SaveZones(trackerID string, zones map[string]string) error {
	if _, err := json.Marshal(zones); err != nil {
		return err
	}
	m.mu.Lock()
	m.saved = append(m.saved, zones)
	m.mu.Unlock()
	return nil
}

func TestResolveZoneNamePersistsSnapshot(t *testing.T) {
	client := &fakeLookup{zones: map[string]string{"z-1": "Home", "z-2": "Kennel"}}
	cache := &marshallingCache{}
	r := NewResolver("t-1", client, cache, nil)

	if _, err := r.ResolveZoneName(context.Background(), "z-1"); err != nil {
		t.Fatalf("ResolveZoneName() error = %v", err)
	}
	if _, err := r.ResolveZoneName(context.Background(), "z-2"); err != nil {
		t.Fatalf("ResolveZoneName() error = %v", err)
	}

	if len(cache.saved) != 2 {
		t.Fatalf("SaveZones calls = %d, want 2", len(cache.saved))
	}
	// The first persisted map must be a snapshot: the second fetch may
	// not have grown it.
	if len(cache.saved[0]) != 1 {
		t.Errorf("first persisted map has %d entries, want 1", len(cache.saved[0]))
	}
}

func TestResolveZoneNameConcurrentMisses(t *testing.T) {
	zones := map[string]string{}
	for i := 0; i < 50; i++ {
		zones[fmt.Sprintf("z-%d", i)] = fmt.Sprintf("Zone %d", i)
	}
	client := &fakeLookup{zones: zones}
	r := NewResolver("t-1", client, &marshallingCache{}, nil)

	var wg sync.WaitGroup
	for id := range zones {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.ResolveZoneName(context.Background(), id); err != nil {
				t.Errorf("ResolveZoneName(%s) error = %v", id, err)
			}
		}()
	}
	wg.Wait()
}

func TestResolveZoneNameLookupError(t *testing.T) {
	client := &fakeLookup{zoneErr: errors.New("boom")}
	r := NewResolver("t-1", client, nil, nil)

	_, err := r.ResolveZoneName(context.Background(), "z-1")
	if !errors.Is(err, ErrLookup) {
		t.Errorf("error = %v, want ErrLookup", err)
	}
}

func TestNewResolverLoadsPersistedCaches(t *testing.T) {
	cache := newFakeCache()
	cache.fences["t-1"] = []tracker.Geofence{circleFence("f-1", "Garden", 52, 4, 100)}
	cache.zones["t-1"] = map[string]string{"z-1": "Home"}

	client := &fakeLookup{}
	r := NewResolver("t-1", client, cache, nil)

	if got := r.GeofenceCount(); got != 1 {
		t.Errorf("GeofenceCount() = %d, want 1 after load", got)
	}
	name, err := r.ResolveZoneName(context.Background(), "z-1")
	if err != nil || name != "Home" {
		t.Errorf("ResolveZoneName() = %q, %v; want Home from persisted cache", name, err)
	}
	if client.zoneCalls != 0 {
		t.Errorf("persisted cache should serve without vendor calls")
	}
}

func snapshotAt(id string, lat, lng float64) *tracker.Snapshot {
	return &tracker.Snapshot{TrackerID: id, Latitude: &lat, Longitude: &lng}
}

func TestEnrichPositionChanged(t *testing.T) {
	client := &fakeLookup{address: &tracker.Address{Street: "Main", City: "Delft"}}
	r := NewResolver("t-1", client, nil, nil)
	r.SetGeofences([]tracker.Geofence{circleFence("f-1", "Garden", 52, 4, 200)})

	snap := snapshotAt("t-1", 52, 4)
	r.Enrich(context.Background(), snap, true)

	if snap.GeofenceMatch == nil || snap.GeofenceMatch.Name != "Garden" {
		t.Errorf("GeofenceMatch = %+v, want Garden", snap.GeofenceMatch)
	}
	if snap.ResolvedAddress == nil || snap.ResolvedAddress.City != "Delft" {
		t.Errorf("ResolvedAddress = %+v, want Delft", snap.ResolvedAddress)
	}
	if client.lastAddrLat != 52 || client.lastAddrLng != 4 {
		t.Errorf("address lookup used (%v,%v), want snapshot coordinates",
			client.lastAddrLat, client.lastAddrLng)
	}
}

func TestEnrichPositionUnchangedSkipsLookups(t *testing.T) {
	client := &fakeLookup{}
	r := NewResolver("t-1", client, nil, nil)
	r.SetGeofences([]tracker.Geofence{circleFence("f-1", "Garden", 52, 4, 200)})

	snap := snapshotAt("t-1", 52, 4)
	r.Enrich(context.Background(), snap, false)

	if snap.GeofenceMatch != nil {
		t.Errorf("unchanged position should not resolve a geofence")
	}
	if client.addrCalls != 0 {
		t.Errorf("unchanged position should not geocode")
	}
}

func TestEnrichAddressFailureDropsOnlyAddress(t *testing.T) {
	client := &fakeLookup{addrErr: errors.New("geocoder down")}
	r := NewResolver("t-1", client, nil, nil)
	r.SetGeofences([]tracker.Geofence{circleFence("f-1", "Garden", 52, 4, 200)})

	snap := snapshotAt("t-1", 52, 4)
	r.Enrich(context.Background(), snap, true)

	if snap.ResolvedAddress != nil {
		t.Errorf("failed geocode should leave the address absent")
	}
	if snap.GeofenceMatch == nil || snap.GeofenceMatch.Name != "Garden" {
		t.Errorf("geofence resolution should still run when geocoding fails")
	}
}

func TestEnrichPowerSavingZone(t *testing.T) {
	client := &fakeLookup{}
	r := NewResolver("t-1", client, nil, nil)
	r.SetZones(map[string]string{"z-1": "Home"})

	reason := tracker.ReasonPowerSaving
	zoneID := "z-1"
	snap := &tracker.Snapshot{
		TrackerID:         "t-1",
		StateReason:       &reason,
		PowerSavingZoneID: &zoneID,
	}
	r.Enrich(context.Background(), snap, false)

	if !snap.PowerSavingZoneActive {
		t.Error("power_saving reason should mark the zone active")
	}
	if snap.PowerSavingZoneName == nil || *snap.PowerSavingZoneName != "Home" {
		t.Errorf("PowerSavingZoneName = %v, want Home", snap.PowerSavingZoneName)
	}
}

func TestEnrichNoZoneReported(t *testing.T) {
	r := NewResolver("t-1", &fakeLookup{}, nil, nil)

	reason := tracker.ReasonPowerSaving
	snap := &tracker.Snapshot{TrackerID: "t-1", StateReason: &reason}
	r.Enrich(context.Background(), snap, false)

	if !snap.PowerSavingZoneActive {
		t.Error("power_saving reason should mark the zone active")
	}
	if snap.PowerSavingZoneName == nil || *snap.PowerSavingZoneName != ZoneNone {
		t.Errorf("PowerSavingZoneName = %v, want %q sentinel", snap.PowerSavingZoneName, ZoneNone)
	}
}
