package attendance

import "errors"

// Attendance domain errors
var (
	// Clock-in errors
	ErrAlreadyClockedIn    = errors.New("an active clocked-in record already exists for this shift")
	ErrOutsideGeofence     = errors.New("you are outside the allowed radius for this site")
	ErrTooEarlyToClockIn   = errors.New("too early to clock in")
	ErrSiteLocationUnknown = errors.New("site location unknown, contact your supervisor")

	// Device location errors
	ErrLocationPermission  = errors.New("location permission denied")
	ErrLocationUnavailable = errors.New("current location unavailable")

	// Clock-out errors
	ErrNotClockedIn = errors.New("no active clocked-in record for this shift")

	// General errors
	ErrRecordNotFound = errors.New("attendance record not found")
	ErrNoSession      = errors.New("no attendance session for this shift")
)
