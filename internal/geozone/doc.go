// Package geozone resolves tracker coordinates against cached geofences
// and power-saving zones.
//
// Each tracker gets its own Resolver holding two caches with a
// replace-wholesale lifecycle: the geofence slice (evaluated in cache
// order, first match wins) and the power-saving-zone name table (with a
// fetch-through fallback to the vendor API on cache misses). Both caches
// are persisted so a restart does not start blind.
//
// Geometry support covers circles (great-circle distance from the centre),
// rectangles (two opposite corners) and polygons (ray casting).
package geozone
