package route

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/looptrail/service-planner/internal/domain"
)

const routeNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Route is the aggregate root for a planned loop: where it starts, what was
// asked for, what the routing service produced, and the simplified directions.
type Route struct {
	id          uuid.UUID
	routeNumber string
	name        string
	start       GeoPoint
	targetKm    float64
	distanceM   float64
	durationS   float64
	geometry    orb.LineString
	steps       []FinalStep
	createdAt   time.Time
}

// generateRouteNumber creates a route number in the format "RT-XXXXXX".
func generateRouteNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(routeNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate route number: %w", err)
		}
		result[i] = routeNumberChars[n.Int64()]
	}
	return "RT-" + string(result), nil
}

// NewRoute creates a new Route aggregate from a planning result.
func NewRoute(
	name string,
	start GeoPoint,
	targetKm float64,
	distanceM float64,
	durationS float64,
	geometry orb.LineString,
	steps []FinalStep,
) (*Route, error) {
	if math.IsNaN(start.Latitude) || start.Latitude < -90 || start.Latitude > 90 {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid start latitude: %f", start.Latitude))
	}
	if math.IsNaN(start.Longitude) || start.Longitude < -180 || start.Longitude > 180 {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid start longitude: %f", start.Longitude))
	}
	if !(targetKm > 0) || math.IsInf(targetKm, 0) {
		return nil, domain.NewValidationError("target distance must be positive and finite")
	}
	if distanceM < 0 {
		return nil, domain.NewValidationError("routed distance must be non-negative")
	}
	if len(geometry) < 2 {
		return nil, domain.NewValidationError("route geometry must have at least two points")
	}

	routeNumber, err := generateRouteNumber()
	if err != nil {
		return nil, err
	}

	return &Route{
		id:          uuid.New(),
		routeNumber: routeNumber,
		name:        name,
		start:       start,
		targetKm:    targetKm,
		distanceM:   distanceM,
		durationS:   durationS,
		geometry:    geometry,
		steps:       steps,
		createdAt:   time.Now().UTC(),
	}, nil
}

// ReconstructRoute rebuilds a Route from persistence data (no validation).
func ReconstructRoute(
	id uuid.UUID,
	routeNumber string,
	name string,
	start GeoPoint,
	targetKm float64,
	distanceM float64,
	durationS float64,
	geometry orb.LineString,
	steps []FinalStep,
	createdAt time.Time,
) *Route {
	return &Route{
		id:          id,
		routeNumber: routeNumber,
		name:        name,
		start:       start,
		targetKm:    targetKm,
		distanceM:   distanceM,
		durationS:   durationS,
		geometry:    geometry,
		steps:       steps,
		createdAt:   createdAt,
	}
}

// ID returns the route's unique identifier.
func (r *Route) ID() uuid.UUID { return r.id }

// RouteNumber returns the human-readable route number.
func (r *Route) RouteNumber() string { return r.routeNumber }

// Name returns the optional user-supplied route name.
func (r *Route) Name() string { return r.name }

// Start returns the loop's start (and end) point.
func (r *Route) Start() GeoPoint { return r.start }

// TargetKm returns the requested loop length in kilometers.
func (r *Route) TargetKm() float64 { return r.targetKm }

// DistanceM returns the routed distance in meters.
func (r *Route) DistanceM() float64 { return r.distanceM }

// DurationS returns the pace-based duration estimate in seconds.
func (r *Route) DurationS() float64 { return r.durationS }

// Geometry returns the routed polyline.
func (r *Route) Geometry() orb.LineString { return r.geometry }

// Steps returns the simplified directions.
func (r *Route) Steps() []FinalStep { return r.steps }

// CreatedAt returns the creation timestamp.
func (r *Route) CreatedAt() time.Time { return r.createdAt }
