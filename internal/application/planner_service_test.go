package application_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkrajina/gpxgo/gpx"
	"go.uber.org/zap"

	"github.com/looptrail/service-planner/internal/application"
	"github.com/looptrail/service-planner/internal/domain"
	routeDomain "github.com/looptrail/service-planner/internal/domain/route"
)

// memoryRepo is a map-backed Repository for tests.
type memoryRepo struct {
	routes  map[uuid.UUID]*routeDomain.Route
	saveErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{routes: make(map[uuid.UUID]*routeDomain.Route)}
}

func (r *memoryRepo) FindByID(_ context.Context, id uuid.UUID) (*routeDomain.Route, error) {
	rt, ok := r.routes[id]
	if !ok {
		return nil, domain.NewNotFoundError("route", id.String())
	}
	return rt, nil
}

func (r *memoryRepo) ListAll(_ context.Context, _, _ int) ([]*routeDomain.Route, int64, error) {
	out := make([]*routeDomain.Route, 0, len(r.routes))
	for _, rt := range r.routes {
		out = append(out, rt)
	}
	return out, int64(len(out)), nil
}

func (r *memoryRepo) Save(_ context.Context, rt *routeDomain.Route) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.routes[rt.ID()] = rt
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.routes[id]; !ok {
		return domain.NewNotFoundError("route", id.String())
	}
	delete(r.routes, id)
	return nil
}

// fixedRouter always answers with the same routed loop, close enough to the
// target that the optimizer accepts it immediately.
type fixedRouter struct {
	err error
}

func (r *fixedRouter) Route(_ context.Context, wps []routeDomain.GeoPoint) (*routeDomain.RoutedResult, error) {
	if r.err != nil {
		return nil, r.err
	}

	line := make(orb.LineString, 0, len(wps))
	for _, wp := range wps {
		line = append(line, wp.Orb())
	}

	return &routeDomain.RoutedResult{
		Geometry:  line,
		DistanceM: 5200,
		DurationS: 999,
		Steps: []routeDomain.RawStep{
			{Instruction: "Head north", Type: "depart", DistanceM: 200, DurationS: 999},
			{Type: "turn", Modifier: "right", Name: "Maple Street", DistanceM: 5000, DurationS: 999},
			{Type: "arrive", DistanceM: 0},
		},
	}, nil
}

func newTestService(t *testing.T, repo routeDomain.Repository, router routeDomain.Router) *application.PlannerService {
	t.Helper()
	opt := routeDomain.NewOptimizer(router, routeDomain.DefaultSearchConfig(), rand.New(rand.NewSource(1)), nil)
	return application.NewPlannerService(repo, opt, nil, zap.NewNop(), 12.0)
}

func planRequest(lat, lng, target float64) application.PlanRouteRequest {
	return application.PlanRouteRequest{
		StartLatitude:  &lat,
		StartLongitude: &lng,
		TargetKm:       &target,
		Name:           "Test loop",
	}
}

func TestPlanRoute(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(t, repo, &fixedRouter{})

	dto, err := svc.PlanRoute(context.Background(), planRequest(49.2827, -123.1207, 5))
	require.NoError(t, err)

	assert.Equal(t, "Test loop", dto.Name)
	assert.Equal(t, 5.0, dto.TargetKm)
	assert.Equal(t, 5200.0, dto.DistanceMeters)
	assert.Regexp(t, `^RT-`, dto.RouteNumber)
	require.NotNil(t, dto.Geometry)
	assert.Equal(t, "LineString", dto.Geometry.Type)

	// Durations come from distance at 12 min/km, not from the provider.
	assert.InDelta(t, 5.2*12*60, dto.DurationSeconds, 1e-6)
	require.Len(t, dto.Steps, 3)
	assert.InDelta(t, 0.2*12*60, dto.Steps[0].DurationS, 1e-6)
	assert.InDelta(t, 5.0*12*60, dto.Steps[1].DurationS, 1e-6)
	assert.Zero(t, dto.Steps[2].DurationS)

	// The route was persisted.
	saved, err := repo.FindByID(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.RouteNumber, saved.RouteNumber())
}

func TestPlanRoute_Validation(t *testing.T) {
	svc := newTestService(t, newMemoryRepo(), &fixedRouter{})

	lat, lng, target := 49.2827, -123.1207, 5.0

	tests := []struct {
		name string
		req  application.PlanRouteRequest
	}{
		{"missing latitude", application.PlanRouteRequest{StartLongitude: &lng, TargetKm: &target}},
		{"missing target", application.PlanRouteRequest{StartLatitude: &lat, StartLongitude: &lng}},
		{"NaN latitude", planRequest(math.NaN(), lng, target)},
		{"infinite target", planRequest(lat, lng, math.Inf(1))},
		{"latitude out of range", planRequest(95, lng, target)},
		{"longitude out of range", planRequest(lat, 200, target)},
		{"target too short", planRequest(lat, lng, 0.1)},
		{"target at lower bound", planRequest(lat, lng, 0.2)},
		{"target too long", planRequest(lat, lng, 150)},
		{"target at upper bound", planRequest(lat, lng, 100)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dto, err := svc.PlanRoute(context.Background(), tc.req)
			assert.Nil(t, dto)
			var verr *domain.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestPlanRoute_NoRouteFound(t *testing.T) {
	svc := newTestService(t, newMemoryRepo(), &fixedRouter{err: errors.New("network down")})

	dto, err := svc.PlanRoute(context.Background(), planRequest(49.2827, -123.1207, 5))
	assert.Nil(t, dto)
	assert.ErrorIs(t, err, routeDomain.ErrNoRouteFound)
}

func TestPlanRoute_SaveFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.saveErr = errors.New("database unavailable")
	svc := newTestService(t, repo, &fixedRouter{})

	dto, err := svc.PlanRoute(context.Background(), planRequest(49.2827, -123.1207, 5))
	assert.Nil(t, dto)
	assert.ErrorContains(t, err, "failed to save route")
}

func TestGetRoute_NotFound(t *testing.T) {
	svc := newTestService(t, newMemoryRepo(), &fixedRouter{})

	dto, err := svc.GetRoute(context.Background(), uuid.New())
	assert.Nil(t, dto)
	var nfErr *domain.NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

func TestListRoutes(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(t, repo, &fixedRouter{})

	for i := 0; i < 3; i++ {
		_, err := svc.PlanRoute(context.Background(), planRequest(49.2827, -123.1207, 5))
		require.NoError(t, err)
	}

	page, err := svc.ListRoutes(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)
}

func TestDeleteRoute(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(t, repo, &fixedRouter{})

	dto, err := svc.PlanRoute(context.Background(), planRequest(49.2827, -123.1207, 5))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRoute(context.Background(), dto.ID))

	_, err = svc.GetRoute(context.Background(), dto.ID)
	var nfErr *domain.NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

func TestExportGPX(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(t, repo, &fixedRouter{})

	dto, err := svc.PlanRoute(context.Background(), planRequest(49.2827, -123.1207, 5))
	require.NoError(t, err)

	data, err := svc.ExportGPX(context.Background(), dto.ID)
	require.NoError(t, err)

	doc, err := gpx.ParseBytes(data)
	require.NoError(t, err)
	assert.Equal(t, "service-planner", doc.Creator)
	require.Len(t, doc.Tracks, 1)
	assert.Equal(t, "Test loop", doc.Tracks[0].Name)
	require.Len(t, doc.Tracks[0].Segments, 1)

	points := doc.Tracks[0].Segments[0].Points
	require.NotEmpty(t, points)
	assert.InDelta(t, 49.2827, points[0].Latitude, 1e-6)
	assert.InDelta(t, -123.1207, points[0].Longitude, 1e-6)
}

func TestExportGPX_CachedUntilDelete(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(t, repo, &fixedRouter{})

	dto, err := svc.PlanRoute(context.Background(), planRequest(49.2827, -123.1207, 5))
	require.NoError(t, err)

	first, err := svc.ExportGPX(context.Background(), dto.ID)
	require.NoError(t, err)

	// Served from cache: the repo losing the row does not matter.
	saved := repo.routes[dto.ID]
	delete(repo.routes, dto.ID)
	second, err := svc.ExportGPX(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Deleting the route evicts the cached document.
	repo.routes[dto.ID] = saved
	require.NoError(t, svc.DeleteRoute(context.Background(), dto.ID))

	_, err = svc.ExportGPX(context.Background(), dto.ID)
	var nfErr *domain.NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

func TestExportGPX_NotFound(t *testing.T) {
	svc := newTestService(t, newMemoryRepo(), &fixedRouter{})

	data, err := svc.ExportGPX(context.Background(), uuid.New())
	assert.Nil(t, data)
	var nfErr *domain.NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}
