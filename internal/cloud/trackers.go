package cloud

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pawlink/pawlink-core/internal/tracker"
)

// TrackerRef identifies one tracker paired to the account.
type TrackerRef struct {
	ID          string `json:"_id"`
	ModelNumber string `json:"model_number"`
	HWEdition   string `json:"hw_edition"`
}

// TrackerRecord is the result of one full-state fetch: the raw tracker
// document plus its geofence list and power-saving-zone table.
//
// Raw is kept as decoded JSON so the normalizer sees exactly what the
// vendor sent; Geofences and Zones are nil when the vendor omitted the
// section (nil means "leave the cache alone", empty means "replace with
// nothing").
type TrackerRecord struct {
	Raw       map[string]any
	Geofences []tracker.Geofence
	Zones     map[string]string
}

// geofenceDTO is the vendor wire shape of a geofence.
type geofenceDTO struct {
	ID     string      `json:"_id"`
	Name   string      `json:"name"`
	Shape  string      `json:"shape"`
	Coords [][]float64 `json:"coords"`
	Radius float64     `json:"radius"`
	Type   string      `json:"fence_type"`
	Active bool        `json:"active"`
}

// zoneDTO is the vendor wire shape of a power-saving zone.
type zoneDTO struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Trackers lists the trackers paired to the account.
func (c *Client) Trackers(ctx context.Context) ([]TrackerRef, error) {
	var refs []TrackerRef
	if err := c.getJSON(ctx, "/user/trackers", &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// Tracker fetches the full state record for one tracker, including its
// geofences and power-saving zones.
//
// The record fetch is mandatory; geofence and zone section failures are
// tolerated (the sections come back nil and the caches stay untouched),
// so a flaky secondary endpoint cannot starve the main state refresh.
func (c *Client) Tracker(ctx context.Context, trackerID string) (*TrackerRecord, error) {
	record := &TrackerRecord{}

	if err := c.getJSON(ctx, "/tracker/"+url.PathEscape(trackerID), &record.Raw); err != nil {
		return nil, err
	}

	fences, err := c.geofences(ctx, trackerID)
	if err != nil {
		c.logger.Warn("geofence fetch failed", "tracker_id", trackerID, "error", err)
	} else {
		record.Geofences = fences
	}

	zones, err := c.powerSavingZones(ctx, trackerID)
	if err != nil {
		c.logger.Warn("power-saving-zone fetch failed", "tracker_id", trackerID, "error", err)
	} else {
		record.Zones = zones
	}

	return record, nil
}

// geofences fetches and converts the geofence list for a tracker.
func (c *Client) geofences(ctx context.Context, trackerID string) ([]tracker.Geofence, error) {
	var dtos []geofenceDTO
	if err := c.getJSON(ctx, "/tracker/"+url.PathEscape(trackerID)+"/geofences", &dtos); err != nil {
		return nil, err
	}

	fences := make([]tracker.Geofence, 0, len(dtos))
	for _, dto := range dtos {
		fences = append(fences, tracker.Geofence{
			ID:          dto.ID,
			Name:        strings.TrimSpace(dto.Name),
			Shape:       tracker.GeofenceShape(strings.ToLower(dto.Shape)),
			Coordinates: coordinates(dto.Coords),
			Radius:      dto.Radius,
			Type:        fenceType(dto.Type),
			Active:      dto.Active,
		})
	}
	return fences, nil
}

// powerSavingZones fetches the zone table for a tracker as id -> trimmed name.
func (c *Client) powerSavingZones(ctx context.Context, trackerID string) (map[string]string, error) {
	var dtos []zoneDTO
	if err := c.getJSON(ctx, "/tracker/"+url.PathEscape(trackerID)+"/power_saving_zones", &dtos); err != nil {
		return nil, err
	}

	zones := make(map[string]string, len(dtos))
	for _, dto := range dtos {
		zones[dto.ID] = strings.TrimSpace(dto.Name)
	}
	return zones, nil
}

// Zone fetches a single power-saving zone name by ID.
// Used as the cache-miss fallback during zone resolution.
func (c *Client) Zone(ctx context.Context, zoneID string) (string, error) {
	var dto zoneDTO
	if err := c.getJSON(ctx, "/power_saving_zone/"+url.PathEscape(zoneID), &dto); err != nil {
		return "", err
	}
	return strings.TrimSpace(dto.Name), nil
}

// Address reverse-geocodes a coordinate pair.
func (c *Client) Address(ctx context.Context, lat, lng float64) (*tracker.Address, error) {
	path := fmt.Sprintf("/geocoding/address?latitude=%f&longitude=%f", lat, lng)

	var addr tracker.Address
	if err := c.getJSON(ctx, path, &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

// coordinates converts vendor [lat, lng] pairs into typed coordinates.
// Malformed pairs are skipped.
func coordinates(coords [][]float64) []tracker.Coordinate {
	out := make([]tracker.Coordinate, 0, len(coords))
	for _, pair := range coords {
		if len(pair) < 2 {
			continue
		}
		out = append(out, tracker.Coordinate{Lat: pair[0], Lng: pair[1]})
	}
	return out
}

// fenceType maps the vendor fence classification onto the local enum.
// Unknown values land in "other" rather than failing the fetch.
func fenceType(s string) tracker.FenceType {
	switch strings.ToLower(s) {
	case "safe":
		return tracker.FenceSafe
	case "danger":
		return tracker.FenceDanger
	default:
		return tracker.FenceOther
	}
}
