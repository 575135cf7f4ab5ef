package attendance

import (
	"time"

	"github.com/tidycrew/fieldops-backend-go/internal/pkg/validator"
)

// State is the live, in-memory view of one attendance session that the
// mobile UI observes. It is rebuilt per shift context and never persisted.
type State struct {
	Loading            bool     `json:"loading"`
	Error              string   `json:"error,omitempty"`
	Record             *Record  `json:"-"`
	IsWithinGeofence   bool     `json:"is_within_geofence"`
	DistanceFromSiteFt float64  `json:"distance_from_site_ft"`
	CanClockIn         bool     `json:"can_clock_in"`
	StatusMessage      string   `json:"status_message"`
	Monitoring         bool     `json:"monitoring"`
	CurrentLatitude    *float64 `json:"current_latitude,omitempty"`
	CurrentLongitude   *float64 `json:"current_longitude,omitempty"`
}

// ========================================
// REQUESTS
// ========================================

// SessionRequest supplies the shift context the UI holds: site, scheduled
// time, known coordinates, and an optional geofence radius override.
type SessionRequest struct {
	ShiftID        string   `json:"shift_id"`
	SiteName       string   `json:"site_name"`
	SiteAddress    *string  `json:"site_address,omitempty"`
	SiteLatitude   *float64 `json:"site_latitude,omitempty"`
	SiteLongitude  *float64 `json:"site_longitude,omitempty"`
	ScheduledDate  string   `json:"scheduled_date"`
	ScheduledStart string   `json:"scheduled_start"`
	RadiusFeet     float64  `json:"radius_feet,omitempty"`
}

func (r *SessionRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.ShiftID) {
		errs = append(errs, validator.ValidationError{
			Field:   "shift_id",
			Message: "shift_id is required",
		})
	}

	if validator.IsEmpty(r.SiteName) {
		errs = append(errs, validator.ValidationError{
			Field:   "site_name",
			Message: "site_name is required",
		})
	}

	if _, ok := validator.IsValidDate(r.ScheduledDate); !ok {
		errs = append(errs, validator.ValidationError{
			Field:   "scheduled_date",
			Message: "scheduled_date must be in YYYY-MM-DD format",
		})
	}

	if _, ok := validator.IsValidDateTime(r.ScheduledStart); !ok {
		errs = append(errs, validator.ValidationError{
			Field:   "scheduled_start",
			Message: "scheduled_start must be an ISO8601 timestamp",
		})
	}

	if r.SiteLatitude != nil && r.SiteLongitude != nil {
		if !validator.IsValidLatLon(*r.SiteLatitude, *r.SiteLongitude) {
			errs = append(errs, validator.ValidationError{
				Field:   "site_latitude",
				Message: "site coordinates are out of range",
			})
		}
	}

	if r.RadiusFeet < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "radius_feet",
			Message: "radius_feet must not be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type ClockOutRequest struct {
	Reason *string `json:"reason,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

func (r *ClockOutRequest) Validate() error {
	var errs validator.ValidationErrors

	// Automatic reasons are set internally; a device may only clock out
	// manually.
	if r.Reason != nil && *r.Reason != ReasonManual {
		errs = append(errs, validator.ValidationError{
			Field:   "reason",
			Message: "reason must be: manual",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// ListFilter narrows a cleaner's attendance history.
type ListFilter struct {
	StartDate *string
	EndDate   *string
	Status    *string
	Page      int
	Limit     int
}

func (f *ListFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.StartDate != nil && *f.StartDate != "" {
		if _, ok := validator.IsValidDate(*f.StartDate); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "start_date",
				Message: "start_date must be in YYYY-MM-DD format",
			})
		}
	}

	if f.EndDate != nil && *f.EndDate != "" {
		if _, ok := validator.IsValidDate(*f.EndDate); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "end_date must be in YYYY-MM-DD format",
			})
		}
	}

	if f.Status != nil && *f.Status != "" {
		if !validator.IsInSlice(*f.Status, []string{StatusClockedIn, StatusClockedOut}) {
			errs = append(errs, validator.ValidationError{
				Field:   "status",
				Message: "status must be one of: clocked_in, clocked_out",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// ========================================
// RESPONSES
// ========================================

type RecordResponse struct {
	ID                 string   `json:"id"`
	CleanerID          string   `json:"cleaner_id"`
	CleanerName        string   `json:"cleaner_name"`
	ShiftID            string   `json:"shift_id"`
	SiteName           string   `json:"site_name"`
	ClockInTime        *string  `json:"clock_in_time"`
	ClockInLatitude    *float64 `json:"clock_in_latitude"`
	ClockInLongitude   *float64 `json:"clock_in_longitude"`
	ClockInDistanceFt  *float64 `json:"clock_in_distance_ft"`
	ClockOutTime       *string  `json:"clock_out_time"`
	ClockOutLatitude   *float64 `json:"clock_out_latitude"`
	ClockOutLongitude  *float64 `json:"clock_out_longitude"`
	ClockOutDistanceFt *float64 `json:"clock_out_distance_ft"`
	ClockOutReason     *string  `json:"clock_out_reason"`
	MinutesWorked      *int     `json:"minutes_worked"`
	Status             string   `json:"status"`
	Notes              *string  `json:"notes"`
}

// StateResponse is the State snapshot plus the active record and the
// cosmetic elapsed display.
type StateResponse struct {
	State
	Record  *RecordResponse `json:"record"`
	Elapsed string          `json:"elapsed"`
}

type ListRecordsResponse struct {
	TotalCount int64            `json:"total_count"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"total_pages"`
	Records    []RecordResponse `json:"records"`
}

func timePtrToString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	format := t.Format("2006-01-02 15:04:05")
	return &format
}

// MapRecordToResponse converts a Record entity to its response shape.
func MapRecordToResponse(r Record) RecordResponse {
	return RecordResponse{
		ID:                 r.ID,
		CleanerID:          r.CleanerID,
		CleanerName:        r.CleanerName,
		ShiftID:            r.ShiftID,
		SiteName:           r.SiteName,
		ClockInTime:        timePtrToString(r.ClockIn),
		ClockInLatitude:    r.ClockInLatitude,
		ClockInLongitude:   r.ClockInLongitude,
		ClockInDistanceFt:  r.ClockInDistanceFt,
		ClockOutTime:       timePtrToString(r.ClockOut),
		ClockOutLatitude:   r.ClockOutLatitude,
		ClockOutLongitude:  r.ClockOutLongitude,
		ClockOutDistanceFt: r.ClockOutDistanceFt,
		ClockOutReason:     r.ClockOutReason,
		MinutesWorked:      r.MinutesWorked,
		Status:             r.Status,
		Notes:              r.Notes,
	}
}
