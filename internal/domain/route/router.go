package route

import (
	"context"

	"github.com/paulmach/orb"
)

// RoutedResult is the routing service's answer for one candidate loop.
type RoutedResult struct {
	Geometry  orb.LineString
	DistanceM float64
	DurationS float64
	Steps     []RawStep
}

// Router is the port to the external routing service. Waypoints are an
// ordered list of at least two points; for a loop the first equals the last.
type Router interface {
	Route(ctx context.Context, waypoints []GeoPoint) (*RoutedResult, error)
}
