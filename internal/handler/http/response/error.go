package response

import (
	"errors"
	"net/http"

	"github.com/tidycrew/fieldops-backend-go/internal/domain/attendance"
	"github.com/tidycrew/fieldops-backend-go/internal/domain/shift"
	"github.com/tidycrew/fieldops-backend-go/internal/domain/site"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Location errors: permission is on the caller, availability is transient
	case errors.Is(err, attendance.ErrLocationPermission):
		Forbidden(w, "Location permission denied; enable location access to clock in")
	case errors.Is(err, attendance.ErrLocationUnavailable):
		ServiceUnavailable(w, "Current location is unavailable, try again shortly")

	// Site data quality
	case errors.Is(err, attendance.ErrSiteLocationUnknown):
		UnprocessableEntity(w, "SITE_LOCATION_UNKNOWN", "The site's location could not be determined")

	// State machine conflicts
	case errors.Is(err, attendance.ErrAlreadyClockedIn):
		Conflict(w, "Already clocked in for this shift")
	case errors.Is(err, attendance.ErrNotClockedIn):
		Conflict(w, "Not clocked in")
	case errors.Is(err, attendance.ErrOutsideGeofence):
		Conflict(w, "You are outside the site's geofence")
	case errors.Is(err, attendance.ErrTooEarlyToClockIn):
		Conflict(w, "The clock-in window has not opened yet")

	// Lookups
	case errors.Is(err, attendance.ErrNoSession):
		NotFound(w, "No active attendance session; send the shift context first")
	case errors.Is(err, attendance.ErrRecordNotFound):
		NotFound(w, "Attendance record not found")
	case errors.Is(err, site.ErrSiteNotFound):
		NotFound(w, "Site not found")
	case errors.Is(err, shift.ErrShiftNotFound):
		NotFound(w, "Shift not found")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
