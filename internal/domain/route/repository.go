package route

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for route aggregates.
type Repository interface {
	// FindByID retrieves a route by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Route, error)

	// ListAll retrieves saved routes, newest first, with pagination.
	ListAll(ctx context.Context, page, limit int) ([]*Route, int64, error)

	// Save persists a new route.
	Save(ctx context.Context, route *Route) error

	// Delete removes a saved route.
	Delete(ctx context.Context, id uuid.UUID) error
}
