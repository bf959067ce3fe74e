package route

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"github.com/paulmach/orb/geo"
	"go.uber.org/zap"
)

// ErrNoRouteFound is returned when every trial fails to produce a usable route.
var ErrNoRouteFound = errors.New("no route found")

// Bracket bounds for the leg-length search, as fractions of the target
// distance. Routed distance grows roughly monotonically with leg length for
// a fixed shape, so a binary search between these converges quickly.
const (
	legLowFraction  = 0.12
	legHighFraction = 0.45
)

// SearchConfig bounds the loop search.
type SearchConfig struct {
	// Trials is the number of independent shape restarts.
	Trials int
	// TuneSteps is the binary-search iteration budget per trial.
	TuneSteps int
	// ToleranceKm stops a trial early once the routed distance is this close
	// to the target.
	ToleranceKm float64
}

// DefaultSearchConfig returns the standard search budget.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Trials:      8,
		TuneSteps:   6,
		ToleranceKm: 0.5,
	}
}

// Optimizer searches the bearing/leg-length parameter space for a closed
// loop whose routed distance converges on a target, preferring smooth,
// non-repetitive routes.
type Optimizer struct {
	router Router
	cfg    SearchConfig
	rng    *rand.Rand
	logger *zap.Logger
}

// NewOptimizer creates an Optimizer. The random source is injectable so
// searches are reproducible in tests.
func NewOptimizer(router Router, cfg SearchConfig, rng *rand.Rand, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{router: router, cfg: cfg, rng: rng, logger: logger}
}

// Plan returns the best-scoring routed loop starting and ending at start.
// A failed routing call abandons only the current trial; ErrNoRouteFound is
// returned only when no trial produced a result.
func (o *Optimizer) Plan(ctx context.Context, start GeoPoint, targetKm float64) (*RoutedResult, error) {
	if !(targetKm > 0) || math.IsInf(targetKm, 0) {
		return nil, ErrNoRouteFound
	}

	var best *RoutedResult
	bestTotal := math.Inf(1)

	for trial := 0; trial < o.cfg.Trials; trial++ {
		if ctx.Err() != nil {
			break
		}

		shape := o.newShape()
		low := targetKm * legLowFraction
		high := targetKm * legHighFraction

		for step := 0; step < o.cfg.TuneSteps; step++ {
			if ctx.Err() != nil {
				break
			}

			legKm := (low + high) / 2
			candidate := shape.candidate(start, legKm)

			res, err := o.router.Route(ctx, candidate)
			if err != nil {
				o.logger.Warn("routing call failed, abandoning trial",
					zap.Int("trial", trial),
					zap.Int("step", step),
					zap.Error(err),
				)
				break
			}

			score := ScoreResult(res, targetKm)
			if score.Total() < bestTotal {
				best = res
				bestTotal = score.Total()
			}

			routedKm := res.DistanceM / 1000
			diff := routedKm - targetKm
			if math.Abs(diff) <= o.cfg.ToleranceKm {
				break
			}
			if diff > 0 {
				high = legKm
			} else {
				low = legKm
			}
		}
	}

	if best == nil {
		return nil, ErrNoRouteFound
	}
	return best, nil
}

// loopShape is one trial's geometry: waypoint bearings and per-waypoint
// leg-length ratios. The ratios make the loop asymmetric rather than a
// regular polygon.
type loopShape struct {
	bearings []float64
	ratios   []float64
}

// newShape picks 2 or 3 bearings (weighted toward 3) spread around the
// compass: the second offset from the first by [95°,185°), the third offset
// further by [80°,160°).
func (o *Optimizer) newShape() loopShape {
	waypoints := 2
	if o.rng.Float64() < 0.7 {
		waypoints = 3
	}

	first := o.rng.Float64() * 360
	second := first + 95 + o.rng.Float64()*90
	bearings := []float64{first, math.Mod(second, 360)}
	if waypoints == 3 {
		third := second + 80 + o.rng.Float64()*80
		bearings = append(bearings, math.Mod(third, 360))
	}

	ratios := make([]float64, waypoints)
	for i := range ratios {
		ratios[i] = 0.8 + o.rng.Float64()*0.4
	}

	return loopShape{bearings: bearings, ratios: ratios}
}

// candidate projects the shape's waypoints from the start point at the given
// leg length and closes the loop.
func (s loopShape) candidate(start GeoPoint, legKm float64) []GeoPoint {
	points := make([]GeoPoint, 0, len(s.bearings)+2)
	points = append(points, start)
	for i, bearing := range s.bearings {
		dest := geo.PointAtBearingAndDistance(start.Orb(), bearing, legKm*s.ratios[i]*1000)
		points = append(points, FromOrb(dest))
	}
	points = append(points, start)
	return points
}
