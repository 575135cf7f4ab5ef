package shift

import (
	"time"

	"github.com/tidycrew/fieldops-backend-go/internal/domain/site"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/geo"
)

// Shift status values the attendance core writes best-effort.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Context is the attendance core's view of one scheduled assignment.
// It is immutable for the duration of an attendance session.
type Context struct {
	ShiftID        string
	Site           site.Site
	ScheduledDate  time.Time
	ScheduledStart time.Time

	// RadiusFeet of zero means "use the default geofence radius".
	RadiusFeet float64
}

// GeofenceRadiusFeet resolves the effective radius for this shift.
func (c Context) GeofenceRadiusFeet() float64 {
	if c.RadiusFeet > 0 {
		return c.RadiusFeet
	}
	return geo.DefaultGeofenceRadiusFeet
}
