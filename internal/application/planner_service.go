package application

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/paulmach/orb/geojson"
	"github.com/tkrajina/gpxgo/gpx"
	"go.uber.org/zap"

	"github.com/looptrail/service-planner/internal/domain"
	routeDomain "github.com/looptrail/service-planner/internal/domain/route"
	"github.com/looptrail/service-planner/internal/events"
)

// Request-level bounds on the target distance.
const (
	minTargetKm = 0.2
	maxTargetKm = 100.0
)

// PlanRouteRequest holds the data needed to plan a new loop.
type PlanRouteRequest struct {
	StartLatitude  *float64 `json:"start_latitude" binding:"required"`
	StartLongitude *float64 `json:"start_longitude" binding:"required"`
	TargetKm       *float64 `json:"target_km" binding:"required"`
	Name           string   `json:"name"`
}

// RouteDTO is the response representation of a planned route.
type RouteDTO struct {
	ID              uuid.UUID              `json:"id"`
	RouteNumber     string                 `json:"route_number"`
	Name            string                 `json:"name,omitempty"`
	Start           routeDomain.GeoPoint   `json:"start"`
	TargetKm        float64                `json:"target_km"`
	DistanceMeters  float64                `json:"distance_meters"`
	DurationSeconds float64                `json:"duration_seconds"`
	Geometry        *geojson.Geometry      `json:"geometry"`
	Steps           []routeDomain.FinalStep `json:"steps"`
	CreatedAt       time.Time              `json:"created_at"`
}

// PagedRoutes is a page of route DTOs.
type PagedRoutes struct {
	Items []RouteDTO
	Total int64
	Page  int
	Limit int
}

// PlannerService is the application service orchestrating route planning
// use cases.
type PlannerService struct {
	repo         routeDomain.Repository
	optimizer    *routeDomain.Optimizer
	producer     *events.Producer
	logger       *zap.Logger
	paceMinPerKm float64
	gpxCache     *gocache.Cache
}

// NewPlannerService creates a new PlannerService. The producer may be nil
// when event publishing is disabled.
func NewPlannerService(
	repo routeDomain.Repository,
	optimizer *routeDomain.Optimizer,
	producer *events.Producer,
	logger *zap.Logger,
	paceMinPerKm float64,
) *PlannerService {
	return &PlannerService{
		repo:         repo,
		optimizer:    optimizer,
		producer:     producer,
		logger:       logger,
		paceMinPerKm: paceMinPerKm,
		gpxCache:     gocache.New(30*time.Minute, 10*time.Minute),
	}
}

// PlanRoute validates the request, searches for the best loop, simplifies
// its directions, persists the result and publishes a RoutePlannedEvent.
func (s *PlannerService) PlanRoute(ctx context.Context, req PlanRouteRequest) (*RouteDTO, error) {
	if err := validatePlanRequest(req); err != nil {
		return nil, err
	}

	start := routeDomain.GeoPoint{
		Latitude:  *req.StartLatitude,
		Longitude: *req.StartLongitude,
	}
	targetKm := *req.TargetKm

	result, err := s.optimizer.Plan(ctx, start, targetKm)
	if err != nil {
		return nil, err
	}

	steps := routeDomain.Simplify(result.Steps)

	// The provider's duration estimate is discarded: durations come from
	// distance at the configured pace.
	for i := range steps {
		steps[i].DurationS = s.paceDuration(steps[i].DistanceM)
	}
	durationS := s.paceDuration(result.DistanceM)

	rt, err := routeDomain.NewRoute(
		req.Name,
		start,
		targetKm,
		result.DistanceM,
		durationS,
		result.Geometry,
		steps,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to save route: %w", err)
	}

	s.publishRoutePlanned(ctx, rt)

	dto := toRouteDTO(rt)
	return &dto, nil
}

// GetRoute retrieves a saved route by ID.
func (s *PlannerService) GetRoute(ctx context.Context, id uuid.UUID) (*RouteDTO, error) {
	rt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toRouteDTO(rt)
	return &dto, nil
}

// ListRoutes retrieves saved routes with pagination.
func (s *PlannerService) ListRoutes(ctx context.Context, page, limit int) (*PagedRoutes, error) {
	routes, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, err
	}

	items := make([]RouteDTO, len(routes))
	for i, rt := range routes {
		items[i] = toRouteDTO(rt)
	}

	return &PagedRoutes{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// DeleteRoute removes a saved route.
func (s *PlannerService) DeleteRoute(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.gpxCache.Delete(id.String())
	return nil
}

// ExportGPX renders a saved route as a GPX track. Routes are immutable once
// saved, so rendered documents are cached per route ID.
func (s *PlannerService) ExportGPX(ctx context.Context, id uuid.UUID) ([]byte, error) {
	if cached, ok := s.gpxCache.Get(id.String()); ok {
		return cached.([]byte), nil
	}

	rt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	segment := gpx.GPXTrackSegment{}
	for _, pt := range rt.Geometry() {
		segment.Points = append(segment.Points, gpx.GPXPoint{
			Point: gpx.Point{
				Latitude:  pt.Lat(),
				Longitude: pt.Lon(),
			},
		})
	}

	name := rt.Name()
	if name == "" {
		name = rt.RouteNumber()
	}

	doc := &gpx.GPX{
		Creator: "service-planner",
		Name:    name,
		Tracks: []gpx.GPXTrack{
			{
				Name:     name,
				Segments: []gpx.GPXTrackSegment{segment},
			},
		},
	}

	data, err := doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return nil, fmt.Errorf("failed to render GPX: %w", err)
	}

	s.gpxCache.Set(id.String(), data, gocache.DefaultExpiration)
	return data, nil
}

func (s *PlannerService) paceDuration(distanceM float64) float64 {
	return distanceM / 1000 * s.paceMinPerKm * 60
}

func (s *PlannerService) publishRoutePlanned(ctx context.Context, rt *routeDomain.Route) {
	if s.producer == nil {
		return
	}

	evt := events.RoutePlannedEvent{
		RouteID:         rt.ID(),
		RouteNumber:     rt.RouteNumber(),
		StartLatitude:   rt.Start().Latitude,
		StartLongitude:  rt.Start().Longitude,
		TargetKm:        rt.TargetKm(),
		DistanceMeters:  rt.DistanceM(),
		DurationSeconds: rt.DurationS(),
		OccurredAt:      time.Now().UTC(),
	}

	ce, err := events.NewCloudEvent("service-planner", events.RoutePlanned, evt)
	if err != nil {
		s.logger.Error("failed to create RoutePlannedEvent", zap.Error(err))
		return
	}

	if err := s.producer.PublishEvent(ctx, events.TopicRouteEvents, ce); err != nil {
		s.logger.Error("failed to publish RoutePlannedEvent",
			zap.String("route_id", rt.ID().String()),
			zap.Error(err),
		)
	}
}

func validatePlanRequest(req PlanRouteRequest) error {
	if req.StartLatitude == nil || req.StartLongitude == nil || req.TargetKm == nil {
		return domain.NewValidationError("start_latitude, start_longitude and target_km are required")
	}

	lat, lng, target := *req.StartLatitude, *req.StartLongitude, *req.TargetKm
	if !isFinite(lat) || !isFinite(lng) || !isFinite(target) {
		return domain.NewValidationError("coordinates and target distance must be finite numbers")
	}
	if lat < -90 || lat > 90 {
		return domain.NewValidationError(fmt.Sprintf("start_latitude out of range: %f", lat))
	}
	if lng < -180 || lng > 180 {
		return domain.NewValidationError(fmt.Sprintf("start_longitude out of range: %f", lng))
	}
	if target <= minTargetKm || target >= maxTargetKm {
		return domain.NewValidationError(fmt.Sprintf("target_km must be between %g and %g", minTargetKm, maxTargetKm))
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func toRouteDTO(rt *routeDomain.Route) RouteDTO {
	return RouteDTO{
		ID:              rt.ID(),
		RouteNumber:     rt.RouteNumber(),
		Name:            rt.Name(),
		Start:           rt.Start(),
		TargetKm:        rt.TargetKm(),
		DistanceMeters:  rt.DistanceM(),
		DurationSeconds: rt.DurationS(),
		Geometry:        geojson.NewGeometry(rt.Geometry()),
		Steps:           rt.Steps(),
		CreatedAt:       rt.CreatedAt(),
	}
}
