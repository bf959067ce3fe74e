package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gorm.io/gorm"

	"github.com/looptrail/service-planner/internal/domain"
	routeDomain "github.com/looptrail/service-planner/internal/domain/route"
)

// RouteModel is the GORM model for the routes table.
type RouteModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	RouteNumber string          `gorm:"uniqueIndex;not null;size:20"`
	Name        string          `gorm:"size:200"`
	StartLat    float64         `gorm:"not null"`
	StartLng    float64         `gorm:"not null"`
	TargetKm    float64         `gorm:"not null"`
	DistanceM   float64         `gorm:"not null"`
	DurationS   float64         `gorm:"not null"`
	Geometry    json.RawMessage `gorm:"type:jsonb;not null"`
	Steps       json.RawMessage `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for the GORM model.
func (RouteModel) TableName() string {
	return "routes"
}

// GormRouteRepository is the GORM-based implementation of route.Repository.
type GormRouteRepository struct {
	db *gorm.DB
}

// NewGormRouteRepository creates a new GormRouteRepository.
func NewGormRouteRepository(db *gorm.DB) *GormRouteRepository {
	return &GormRouteRepository{db: db}
}

// FindByID retrieves a route by its unique identifier.
func (r *GormRouteRepository) FindByID(ctx context.Context, id uuid.UUID) (*routeDomain.Route, error) {
	var model RouteModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Route", id.String())
		}
		return nil, fmt.Errorf("failed to find route by ID: %w", err)
	}
	return toDomainRoute(&model)
}

// ListAll retrieves saved routes, newest first, with pagination.
func (r *GormRouteRepository) ListAll(ctx context.Context, page, limit int) ([]*routeDomain.Route, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&RouteModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count routes: %w", err)
	}

	var models []RouteModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list routes: %w", err)
	}

	routes := make([]*routeDomain.Route, len(models))
	for i, m := range models {
		rt, err := toDomainRoute(&m)
		if err != nil {
			return nil, 0, err
		}
		routes[i] = rt
	}

	return routes, total, nil
}

// Save persists a new route.
func (r *GormRouteRepository) Save(ctx context.Context, rt *routeDomain.Route) error {
	model, err := toRouteModel(rt)
	if err != nil {
		return fmt.Errorf("failed to convert route to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save route: %w", err)
	}
	return nil
}

// Delete removes a saved route.
func (r *GormRouteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&RouteModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete route: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Route", id.String())
	}
	return nil
}

// --- Conversion Helpers ---

func toRouteModel(rt *routeDomain.Route) (*RouteModel, error) {
	geometryJSON, err := geojson.NewGeometry(rt.Geometry()).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal route geometry: %w", err)
	}

	stepsJSON, err := json.Marshal(rt.Steps())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal route steps: %w", err)
	}

	return &RouteModel{
		ID:          rt.ID(),
		RouteNumber: rt.RouteNumber(),
		Name:        rt.Name(),
		StartLat:    rt.Start().Latitude,
		StartLng:    rt.Start().Longitude,
		TargetKm:    rt.TargetKm(),
		DistanceM:   rt.DistanceM(),
		DurationS:   rt.DurationS(),
		Geometry:    geometryJSON,
		Steps:       stepsJSON,
		CreatedAt:   rt.CreatedAt(),
	}, nil
}

func toDomainRoute(m *RouteModel) (*routeDomain.Route, error) {
	var geom geojson.Geometry
	if err := json.Unmarshal(m.Geometry, &geom); err != nil {
		return nil, fmt.Errorf("failed to unmarshal route geometry: %w", err)
	}
	line, ok := geom.Geometry().(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("route %s geometry is not a LineString", m.ID)
	}

	var steps []routeDomain.FinalStep
	if err := json.Unmarshal(m.Steps, &steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal route steps: %w", err)
	}

	return routeDomain.ReconstructRoute(
		m.ID,
		m.RouteNumber,
		m.Name,
		routeDomain.GeoPoint{Latitude: m.StartLat, Longitude: m.StartLng},
		m.TargetKm,
		m.DistanceM,
		m.DurationS,
		line,
		steps,
		m.CreatedAt,
	), nil
}
