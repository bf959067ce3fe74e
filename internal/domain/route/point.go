package route

import (
	"github.com/paulmach/orb"
)

// GeoPoint is a WGS84 coordinate in degrees. Immutable value.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Orb converts the point to an orb.Point (lon/lat order).
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// FromOrb converts an orb.Point (lon/lat order) to a GeoPoint.
func FromOrb(pt orb.Point) GeoPoint {
	return GeoPoint{Latitude: pt.Lat(), Longitude: pt.Lon()}
}
