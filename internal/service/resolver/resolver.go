package resolver

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/tidycrew/fieldops-backend-go/internal/domain/shift"
	"github.com/tidycrew/fieldops-backend-go/internal/domain/site"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/geo"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/geocode"
)

// ErrUnresolved means every resolution strategy was exhausted. This is a
// data-quality condition, not a transient failure: callers surface it as
// "site location unknown" and retry only on an explicit refresh.
var ErrUnresolved = errors.New("site coordinates could not be resolved")

// Resolver produces a best-known coordinate for a shift's site, trying the
// context's own coordinate, then the persisted site record, then geocoding
// the address. A geocoded result is written back to the site record
// best-effort so the geocoding call is not repeated.
type Resolver struct {
	sites    site.Repository
	geocoder geocode.Geocoder

	mu            sync.Mutex
	cachedShiftID string
	cached        geo.Coordinate
	hasCached     bool
}

func NewResolver(sites site.Repository, geocoder geocode.Geocoder) *Resolver {
	return &Resolver{
		sites:    sites,
		geocoder: geocoder,
	}
}

// Resolve returns the coordinate for the shift's site, reusing the cached
// result for the same shift. A successful resolution is cached for the
// session; ErrUnresolved is not cached and a later call retries.
func (r *Resolver) Resolve(ctx context.Context, sc shift.Context) (geo.Coordinate, error) {
	r.mu.Lock()
	if r.hasCached && r.cachedShiftID == sc.ShiftID {
		coord := r.cached
		r.mu.Unlock()
		return coord, nil
	}
	r.mu.Unlock()

	return r.resolve(ctx, sc)
}

// Refresh forces re-resolution, discarding any cached coordinate. Used by
// the explicit refresh action.
func (r *Resolver) Refresh(ctx context.Context, sc shift.Context) (geo.Coordinate, error) {
	r.mu.Lock()
	r.hasCached = false
	r.mu.Unlock()

	return r.resolve(ctx, sc)
}

// Invalidate drops the cache. Called when the shift context changes so a
// stale coordinate is never applied to a new assignment.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.hasCached = false
	r.cachedShiftID = ""
	r.mu.Unlock()
}

func (r *Resolver) resolve(ctx context.Context, sc shift.Context) (geo.Coordinate, error) {
	// 1. The shift context already carries a valid coordinate.
	if coord, ok := sc.Site.Coordinate(); ok {
		r.store(sc.ShiftID, coord)
		return coord, nil
	}

	// 2. The persisted site record may have one, and carries the address
	// fallback for step 3.
	address := sc.Site.Address
	stored, err := r.sites.GetByName(ctx, sc.Site.Name)
	switch {
	case err == nil:
		if coord, ok := stored.Coordinate(); ok {
			r.store(sc.ShiftID, coord)
			return coord, nil
		}
		if address == nil {
			address = stored.Address
		}
	case errors.Is(err, site.ErrSiteNotFound):
		// Fall through to geocoding with the context's address, if any.
	default:
		slog.Warn("site lookup failed during coordinate resolution",
			"site", sc.Site.Name, "error", err)
	}

	// 3. Geocode the free-text address.
	if address == nil || *address == "" {
		return geo.Coordinate{}, ErrUnresolved
	}

	coord, ok, err := r.geocoder.Geocode(ctx, *address)
	if err != nil {
		slog.Warn("geocoding failed during coordinate resolution",
			"site", sc.Site.Name, "error", err)
		return geo.Coordinate{}, ErrUnresolved
	}
	if !ok {
		return geo.Coordinate{}, ErrUnresolved
	}

	// Write-back is best-effort: a failed write must not fail resolution.
	if err := r.sites.UpdateCoordinates(ctx, sc.Site.Name, coord); err != nil {
		slog.Warn("failed to persist geocoded site coordinates",
			"site", sc.Site.Name, "error", err)
	}

	r.store(sc.ShiftID, coord)
	return coord, nil
}

func (r *Resolver) store(shiftID string, coord geo.Coordinate) {
	r.mu.Lock()
	r.cachedShiftID = shiftID
	r.cached = coord
	r.hasCached = true
	r.mu.Unlock()
}
