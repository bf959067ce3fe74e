package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	routeDomain "github.com/looptrail/service-planner/internal/domain/route"
)

// OSRMClient talks to an OSRM-compatible routing HTTP API and implements
// route.Router. Each call carries its own timeout via the underlying client.
type OSRMClient struct {
	baseURL string
	profile string
	client  *http.Client
	logger  *zap.Logger
}

// NewOSRMClient creates an OSRMClient for the given server and profile.
func NewOSRMClient(baseURL, profile string, timeout time.Duration, logger *zap.Logger) *OSRMClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OSRMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Geometry json.RawMessage `json:"geometry"`
	Distance float64         `json:"distance"`
	Duration float64         `json:"duration"`
	Legs     []osrmLeg       `json:"legs"`
}

type osrmLeg struct {
	Steps []osrmStep `json:"steps"`
}

type osrmStep struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Maneuver struct {
		Type        string    `json:"type"`
		Modifier    string    `json:"modifier"`
		Instruction string    `json:"instruction"`
		Location    []float64 `json:"location"`
	} `json:"maneuver"`
}

// Route requests a route through the given waypoints and maps the answer to
// the domain result. Waypoints are sent in lon,lat order as OSRM expects.
func (c *OSRMClient) Route(ctx context.Context, waypoints []routeDomain.GeoPoint) (*routeDomain.RoutedResult, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("osrm: need at least two waypoints, got %d", len(waypoints))
	}

	var coords strings.Builder
	for i, p := range waypoints {
		if i > 0 {
			coords.WriteString(";")
		}
		fmt.Fprintf(&coords, "%f,%f", p.Longitude, p.Latitude)
	}

	url := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson&steps=true",
		c.baseURL, c.profile, coords.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("osrm: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("osrm: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("osrm: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("osrm returned non-success status",
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("osrm: unexpected status %d", resp.StatusCode)
	}

	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("osrm: parse response: %w", err)
	}
	if parsed.Code != "Ok" || len(parsed.Routes) == 0 {
		return nil, fmt.Errorf("osrm: no route (code=%q message=%q)", parsed.Code, parsed.Message)
	}

	best := parsed.Routes[0]

	var geom geojson.Geometry
	if err := json.Unmarshal(best.Geometry, &geom); err != nil {
		return nil, fmt.Errorf("osrm: parse geometry: %w", err)
	}
	line, ok := geom.Geometry().(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("osrm: geometry is not a LineString")
	}

	var steps []routeDomain.RawStep
	for _, leg := range best.Legs {
		for _, s := range leg.Steps {
			steps = append(steps, toRawStep(s))
		}
	}

	return &routeDomain.RoutedResult{
		Geometry:  line,
		DistanceM: best.Distance,
		DurationS: best.Duration,
		Steps:     steps,
	}, nil
}

func toRawStep(s osrmStep) routeDomain.RawStep {
	step := routeDomain.RawStep{
		Instruction: s.Maneuver.Instruction,
		Type:        s.Maneuver.Type,
		Modifier:    s.Maneuver.Modifier,
		Name:        s.Name,
		DistanceM:   s.Distance,
		DurationS:   s.Duration,
	}
	if step.Instruction == "" {
		step.Instruction = defaultInstruction(s.Maneuver.Type, s.Maneuver.Modifier)
	}
	if len(s.Maneuver.Location) == 2 {
		step.Location = &routeDomain.GeoPoint{
			Latitude:  s.Maneuver.Location[1],
			Longitude: s.Maneuver.Location[0],
		}
	}
	return step
}

// defaultInstruction composes a plain instruction for servers that do not
// emit instruction text (stock OSRM leaves wording to the client).
func defaultInstruction(maneuverType, modifier string) string {
	t := strings.ToLower(maneuverType)
	switch {
	case t == "depart":
		return "Head out"
	case t == "arrive":
		return "Arrive"
	case t == "turn" && modifier != "":
		return "Turn " + modifier
	case modifier != "":
		return "Continue " + modifier
	default:
		return "Continue"
	}
}
