package route

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const (
	// Segments shorter than this are treated as polyline noise.
	overlapNoiseFloorM = 5.0
	// Segment endpoints are snapped to this grid (~20 m) before keying.
	overlapGridDeg = 0.0002
	overlapWeight  = 1.2

	shortTurnM      = 45.0
	shortTurnWeight = 0.12
	turnWeight      = 0.015
)

// Score is the composite badness metric for a routed candidate. Lower is
// better. Scores are only comparable within a single planning request.
type Score struct {
	DistanceDiffKm float64
	SmoothnessKm   float64
	OverlapKm      float64
}

// Total returns the sum of all score components.
func (s Score) Total() float64 {
	return s.DistanceDiffKm + s.SmoothnessKm + s.OverlapKm
}

// ScoreResult computes the Score for a routed result against a target distance.
func ScoreResult(res *RoutedResult, targetKm float64) Score {
	return Score{
		DistanceDiffKm: math.Abs(res.DistanceM/1000 - targetKm),
		SmoothnessKm:   SmoothnessPenaltyKm(res.Steps),
		OverlapKm:      OverlapPenaltyKm(res.Geometry),
	}
}

// OverlapPenaltyKm returns a km-equivalent penalty proportional to the
// fraction of the route that retraces itself. Segments are keyed by their
// grid-snapped endpoints, ordered so both traversal directions map to the
// same key.
func OverlapPenaltyKm(line orb.LineString) float64 {
	if len(line) < 3 {
		return 0
	}

	seen := make(map[string]struct{}, len(line))
	var totalM, overlapM float64

	for i := 0; i < len(line)-1; i++ {
		segM := geo.DistanceHaversine(line[i], line[i+1])
		if segM < overlapNoiseFloorM {
			continue
		}
		totalM += segM

		key := segmentKey(line[i], line[i+1])
		if _, ok := seen[key]; ok {
			overlapM += segM
		} else {
			seen[key] = struct{}{}
		}
	}

	if totalM == 0 {
		return 0
	}
	return overlapM / totalM * overlapWeight
}

func segmentKey(a, b orb.Point) string {
	ka := fmt.Sprintf("%.4f,%.4f", snapCoord(a.Lat()), snapCoord(a.Lon()))
	kb := fmt.Sprintf("%.4f,%.4f", snapCoord(b.Lat()), snapCoord(b.Lon()))
	if kb < ka {
		ka, kb = kb, ka
	}
	return ka + "|" + kb
}

func snapCoord(v float64) float64 {
	return math.Round(v/overlapGridDeg) * overlapGridDeg
}

// SmoothnessPenaltyKm returns a km-equivalent penalty for turn-heavy routes.
// Short, frequent direction changes weigh more than turns in general.
func SmoothnessPenaltyKm(steps []RawStep) float64 {
	var turns, short int
	for _, st := range steps {
		if !isTurnManeuver(st.Type) {
			continue
		}
		turns++
		if st.DistanceM < shortTurnM {
			short++
		}
	}
	return float64(short)*shortTurnWeight + float64(turns)*turnWeight
}

func isTurnManeuver(maneuverType string) bool {
	t := strings.ToLower(maneuverType)
	return strings.Contains(t, "turn") || t == "fork" || t == "roundabout"
}
