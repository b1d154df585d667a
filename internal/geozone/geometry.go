package geozone

import (
	"math"

	"github.com/pawlink/pawlink-core/internal/tracker"
)

// earthRadiusMeters is the mean Earth radius used for great-circle distance.
const earthRadiusMeters = 6371000.0

// haversineMeters returns the great-circle distance between two WGS84
// coordinates in metres.
func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// pointInRing reports whether a point lies inside the ordered coordinate
// ring using the standard ray-casting test. The ring does not need to be
// explicitly closed.
func pointInRing(lat, lng float64, ring []tracker.Coordinate) bool {
	if len(ring) < 3 {
		return false
	}

	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		yi, xi := ring[i].Lat, ring[i].Lng
		yj, xj := ring[j].Lat, ring[j].Lng

		if (yi > lat) != (yj > lat) &&
			lng < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// Contains reports whether a coordinate lies inside a geofence.
//
// Circles use great-circle distance from the first coordinate (the centre)
// against the radius. Rectangles and polygons use ray casting over the
// coordinate ring; a rectangle supplied as two opposite corners is expanded
// to its four-corner ring first.
func Contains(fence tracker.Geofence, lat, lng float64) bool {
	switch fence.Shape {
	case tracker.ShapeCircle:
		if len(fence.Coordinates) == 0 {
			return false
		}
		centre := fence.Coordinates[0]
		return haversineMeters(lat, lng, centre.Lat, centre.Lng) <= fence.Radius

	case tracker.ShapeRectangle:
		ring := fence.Coordinates
		if len(ring) == 2 {
			ring = expandCorners(ring[0], ring[1])
		}
		return pointInRing(lat, lng, ring)

	case tracker.ShapePolygon:
		return pointInRing(lat, lng, fence.Coordinates)

	default:
		return false
	}
}

// expandCorners builds the four-corner ring of an axis-aligned rectangle
// from two opposite corners.
func expandCorners(a, b tracker.Coordinate) []tracker.Coordinate {
	return []tracker.Coordinate{
		{Lat: a.Lat, Lng: a.Lng},
		{Lat: a.Lat, Lng: b.Lng},
		{Lat: b.Lat, Lng: b.Lng},
		{Lat: b.Lat, Lng: a.Lng},
	}
}
