package attendance

import (
	"time"
)

// Record statuses. A record is created clocked-in and transitions exactly
// once to the terminal clocked-out status; it is never deleted by the core.
const (
	StatusClockedIn  = "clocked_in"
	StatusClockedOut = "clocked_out"
)

// Clock-out reasons.
const (
	ReasonManual       = "manual"
	ReasonAutoGeofence = "auto_geofence"
	ReasonAutoStale    = "auto_stale"
)

// Record is one cleaner's presence interval at one shift.
type Record struct {
	ID          string
	CleanerID   string
	CleanerName string
	ShiftID     string
	SiteName    string

	ClockIn           *time.Time
	ClockInLatitude   *float64
	ClockInLongitude  *float64
	ClockInDistanceFt *float64

	ClockOut           *time.Time
	ClockOutLatitude   *float64
	ClockOutLongitude  *float64
	ClockOutDistanceFt *float64
	ClockOutReason     *string

	MinutesWorked *int
	Status        string
	Notes         *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Open reports whether the record is still in the clocked-in status.
func (r Record) Open() bool {
	return r.Status == StatusClockedIn
}
