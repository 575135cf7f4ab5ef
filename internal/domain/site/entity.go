package site

import (
	"time"

	"github.com/tidycrew/fieldops-backend-go/internal/pkg/geo"
)

// Site is a building a shift is assigned to. The attendance core reads it
// and may write back a resolved coordinate; everything else about its
// lifecycle belongs to the administrative CRUD flows.
type Site struct {
	ID        string
	Name      string
	Address   *string
	Latitude  *float64
	Longitude *float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Coordinate returns the site's stored coordinate and whether it is usable.
func (s Site) Coordinate() (geo.Coordinate, bool) {
	if s.Latitude == nil || s.Longitude == nil {
		return geo.Coordinate{}, false
	}
	c := geo.Coordinate{Latitude: *s.Latitude, Longitude: *s.Longitude}
	return c, c.Valid()
}
