package geocode

import (
	"context"

	"github.com/tidycrew/fieldops-backend-go/internal/pkg/geo"
)

// Geocoder converts a free-text address into a coordinate. A lookup that
// finds nothing is not an error: ok is false and err is nil. err is reserved
// for transport/service failures.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (coord geo.Coordinate, ok bool, err error)
}
