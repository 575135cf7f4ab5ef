package site

import (
	"context"

	"github.com/tidycrew/fieldops-backend-go/internal/pkg/geo"
)

// Repository is the persistence collaborator for site records.
type Repository interface {
	// GetByName retrieves a site by its display name.
	GetByName(ctx context.Context, name string) (Site, error)

	// UpdateCoordinates writes a resolved coordinate back onto the named
	// site record so geocoding is not repeated.
	UpdateCoordinates(ctx context.Context, name string, coord geo.Coordinate) error
}
