package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tidycrew/fieldops-backend-go/internal/domain/attendance"
	"github.com/tidycrew/fieldops-backend-go/internal/domain/shift"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/geo"
	"github.com/tidycrew/fieldops-backend-go/internal/service/location"
	"github.com/tidycrew/fieldops-backend-go/internal/service/resolver"
)

// Cleaner is the worker identity attached to a session.
type Cleaner struct {
	ID   string
	Name string
}

// Notifier delivers user-facing notices outside the request/response cycle.
// The automatic clock-out must always reach the cleaner with its reason.
type Notifier interface {
	NotifyAutoClockOut(cleanerID string, record attendance.Record, message string)
}

// SessionConfig carries the attendance policy knobs.
type SessionConfig struct {
	// EarlyWindow is how long before the scheduled start clock-in opens.
	EarlyWindow time.Duration

	// DefaultRadiusFeet applies when the shift context carries no radius
	// override. Zero falls through to the package-level default.
	DefaultRadiusFeet float64

	WatchOpts location.WatchOptions
}

// Session is the attendance state machine for one (cleaner, shift) pair:
// not clocked in -> clocked in -> clocked out (terminal). A session's mutex
// serializes every state mutation, including monitoring callbacks, so the
// machine only ever advances one transition at a time.
type Session struct {
	cleaner Cleaner
	shift   shift.Context

	records   attendance.Repository
	shifts    shift.Repository
	resolver  *resolver.Resolver
	locations location.Provider
	notifier  Notifier
	cfg       SessionConfig
	now       func() time.Time

	mu        sync.Mutex
	state     attendance.State
	sub       location.Subscription
	wasInside bool
	closed    bool
}

func NewSession(
	cleaner Cleaner,
	sc shift.Context,
	records attendance.Repository,
	shifts shift.Repository,
	res *resolver.Resolver,
	locations location.Provider,
	notifier Notifier,
	cfg SessionConfig,
) *Session {
	if cfg.EarlyWindow <= 0 {
		cfg.EarlyWindow = 15 * time.Minute
	}
	if cfg.WatchOpts == (location.WatchOptions{}) {
		cfg.WatchOpts = location.DefaultWatchOptions
	}
	if sc.RadiusFeet <= 0 && cfg.DefaultRadiusFeet > 0 {
		sc.RadiusFeet = cfg.DefaultRadiusFeet
	}
	return &Session{
		cleaner:   cleaner,
		shift:     sc,
		records:   records,
		shifts:    shifts,
		resolver:  res,
		locations: locations,
		notifier:  notifier,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		state: attendance.State{
			StatusMessage: "Not clocked in.",
		},
	}
}

// Shift returns the immutable shift context this session was built for.
func (s *Session) Shift() shift.Context {
	return s.shift
}

// State returns a copy of the live attendance state.
func (s *Session) State() attendance.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateCopyLocked()
}

// Snapshot returns the state plus the active record and the elapsed display.
func (s *Session) Snapshot() attendance.StateResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := attendance.StateResponse{
		State:   s.stateCopyLocked(),
		Elapsed: s.elapsedLocked(),
	}
	if s.state.Record != nil {
		mapped := attendance.MapRecordToResponse(*s.state.Record)
		resp.Record = &mapped
	}
	return resp
}

// Elapsed returns the hours:minutes:seconds since clock-in, or an empty
// string when not clocked in. Purely cosmetic; never persisted.
func (s *Session) Elapsed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

func (s *Session) elapsedLocked() string {
	rec := s.state.Record
	if rec == nil || !rec.Open() || rec.ClockIn == nil {
		return ""
	}
	d := s.now().Sub(*rec.ClockIn)
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

func (s *Session) stateCopyLocked() attendance.State {
	st := s.state
	if s.state.Record != nil {
		rec := *s.state.Record
		st.Record = &rec
	}
	return st
}

// ClockIn validates every precondition and creates the clocked-in record:
// fresh device fix, resolved site coordinate, geofence containment, open
// clock-in window, and no existing open record for the pair. Any failure
// leaves no record behind.
func (s *Session) ClockIn(ctx context.Context) (attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec := s.state.Record; rec != nil && rec.Open() {
		return attendance.Record{}, s.failLocked(attendance.ErrAlreadyClockedIn)
	}

	s.state.Loading = true
	s.state.Error = ""
	defer func() { s.state.Loading = false }()

	fix, err := s.locations.Current(ctx, s.cleaner.ID)
	if err != nil {
		return attendance.Record{}, s.failLocked(mapLocationErr(err))
	}

	siteCoord, err := s.resolver.Resolve(ctx, s.shift)
	if err != nil {
		return attendance.Record{}, s.failLocked(attendance.ErrSiteLocationUnknown)
	}

	radius := s.shift.GeofenceRadiusFeet()
	res := geo.WithinGeofence(fix.Coordinate, siteCoord, radius)
	s.applyFixLocked(fix, res)

	if !res.IsWithinRadius {
		s.state.CanClockIn = false
		s.state.StatusMessage = fmt.Sprintf("You are %.0f ft from %s; you must be within %.0f ft to clock in.",
			res.DistanceFeet, s.shift.Site.Name, radius)
		s.state.Error = s.state.StatusMessage
		return attendance.Record{}, attendance.ErrOutsideGeofence
	}

	windowOK, windowMsg := geo.ClockInWindow(s.now(), s.shift.ScheduledStart, s.cfg.EarlyWindow)
	if !windowOK {
		s.state.CanClockIn = false
		s.state.StatusMessage = windowMsg
		s.state.Error = windowMsg
		return attendance.Record{}, attendance.ErrTooEarlyToClockIn
	}
	// The open-record lookup is the guard behind the one-session-per-pair
	// invariant; a true two-device race remains a known residual risk.
	_, err = s.records.GetOpenSession(ctx, s.cleaner.ID, s.shift.ShiftID)
	if err == nil {
		s.state.CanClockIn = false
		return attendance.Record{}, s.failLocked(attendance.ErrAlreadyClockedIn)
	}
	if !errors.Is(err, attendance.ErrRecordNotFound) {
		s.state.Error = "Failed to clock in, please try again."
		return attendance.Record{}, fmt.Errorf("failed to check for open session: %w", err)
	}

	now := s.now()
	rec := attendance.Record{
		ID:                uuid.NewString(),
		CleanerID:         s.cleaner.ID,
		CleanerName:       s.cleaner.Name,
		ShiftID:           s.shift.ShiftID,
		SiteName:          s.shift.Site.Name,
		ClockIn:           &now,
		ClockInLatitude:   &fix.Coordinate.Latitude,
		ClockInLongitude:  &fix.Coordinate.Longitude,
		ClockInDistanceFt: &res.DistanceFeet,
		Status:            attendance.StatusClockedIn,
	}

	created, err := s.records.Create(ctx, rec)
	if err != nil {
		s.state.Error = "Failed to clock in, please try again."
		return attendance.Record{}, fmt.Errorf("failed to create attendance record: %w", err)
	}

	s.state.CanClockIn = true
	s.state.Record = &created
	s.state.StatusMessage = fmt.Sprintf("Clocked in at %s.", now.Format("15:04"))

	if err := s.shifts.UpdateStatus(ctx, s.shift.ShiftID, shift.StatusInProgress); err != nil {
		slog.Warn("failed to mark shift in progress", "shift_id", s.shift.ShiftID, "error", err)
	}

	if err := s.startMonitoringLocked(); err != nil {
		// The clock-in itself stands; monitoring can be started manually.
		slog.Warn("failed to start monitoring after clock-in",
			"cleaner_id", s.cleaner.ID, "error", err)
	}

	return created, nil
}

// ClockOut is the manual clock-out path.
func (s *Session) ClockOut(ctx context.Context, reason string, notes *string) (attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reason == "" {
		reason = attendance.ReasonManual
	}
	return s.clockOutLocked(ctx, reason, notes)
}

// clockOutLocked performs the clocked_in -> clocked_out transition.
// Monitoring is stopped on every path out, including persistence failure.
func (s *Session) clockOutLocked(ctx context.Context, reason string, notes *string) (attendance.Record, error) {
	s.stopMonitoringLocked()

	rec := s.state.Record
	if rec == nil || !rec.Open() {
		// The session may have restarted; fall back to the durable record.
		stored, err := s.records.GetOpenSession(ctx, s.cleaner.ID, s.shift.ShiftID)
		if err != nil {
			if errors.Is(err, attendance.ErrRecordNotFound) {
				return attendance.Record{}, s.failLocked(attendance.ErrNotClockedIn)
			}
			s.state.Error = "Failed to clock out, please try again."
			return attendance.Record{}, fmt.Errorf("failed to look up open session: %w", err)
		}
		rec = &stored
	}

	now := s.now()
	updated := *rec
	updated.ClockOut = &now
	updated.ClockOutReason = &reason
	if notes != nil {
		updated.Notes = notes
	}

	if updated.ClockIn != nil {
		mins := geo.MinutesWorked(*updated.ClockIn, now)
		updated.MinutesWorked = &mins
	}

	// Final location capture is best-effort: the worker is leaving, so an
	// unavailable fix records an unknown distance rather than blocking.
	if fix, err := s.locations.Current(ctx, s.cleaner.ID); err == nil {
		updated.ClockOutLatitude = &fix.Coordinate.Latitude
		updated.ClockOutLongitude = &fix.Coordinate.Longitude
		if siteCoord, rerr := s.resolver.Resolve(ctx, s.shift); rerr == nil {
			d := geo.DistanceFeet(fix.Coordinate, siteCoord)
			updated.ClockOutDistanceFt = &d
		}
	}

	updated.Status = attendance.StatusClockedOut

	if err := s.records.Update(ctx, updated); err != nil {
		// The in-memory record stays clocked-in so the UI's belief matches
		// the durable store; monitoring is already stopped.
		s.state.Error = "Failed to clock out, please try again."
		return attendance.Record{}, fmt.Errorf("failed to update attendance record: %w", err)
	}

	s.state.Record = &updated
	s.state.Error = ""
	s.state.StatusMessage = fmt.Sprintf("Clocked out at %s (%s).", now.Format("15:04"), reason)

	if reason == attendance.ReasonManual {
		if err := s.shifts.UpdateStatus(ctx, s.shift.ShiftID, shift.StatusCompleted); err != nil {
			slog.Warn("failed to mark shift completed", "shift_id", s.shift.ShiftID, "error", err)
		}
	}

	return updated, nil
}

// RefreshLocation re-fetches the device position and forces coordinate
// re-resolution, then re-evaluates clock-in eligibility.
func (s *Session) RefreshLocation(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Loading = true
	s.state.Error = ""
	defer func() { s.state.Loading = false }()

	fix, err := s.locations.Current(ctx, s.cleaner.ID)
	if err != nil {
		return s.failLocked(mapLocationErr(err))
	}

	siteCoord, err := s.resolver.Refresh(ctx, s.shift)
	if err != nil {
		s.state.CurrentLatitude = &fix.Coordinate.Latitude
		s.state.CurrentLongitude = &fix.Coordinate.Longitude
		return s.failLocked(attendance.ErrSiteLocationUnknown)
	}

	res := geo.WithinGeofence(fix.Coordinate, siteCoord, s.shift.GeofenceRadiusFeet())
	s.applyFixLocked(fix, res)
	s.evaluateEligibilityLocked(res)
	return nil
}

// StartMonitoring begins the continuous geofence watch. It is a no-op when
// already monitoring.
func (s *Session) StartMonitoring() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startMonitoringLocked()
}

// StopMonitoring is idempotent and safe to call when not monitoring.
func (s *Session) StopMonitoring() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopMonitoringLocked()
}

// Close tears the session down, guaranteeing the location subscription is
// released. Called on navigation away and on shift context replacement.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopMonitoringLocked()
	s.resolver.Invalidate()
	s.closed = true
}

func (s *Session) startMonitoringLocked() error {
	if s.closed {
		return attendance.ErrNoSession
	}
	if s.sub != nil {
		return nil
	}

	sub, err := s.locations.Watch(s.cleaner.ID, s.cfg.WatchOpts, s.onFix)
	if err != nil {
		return mapLocationErr(err)
	}
	s.sub = sub
	s.wasInside = s.state.IsWithinGeofence
	s.state.Monitoring = true
	return nil
}

func (s *Session) stopMonitoringLocked() {
	if s.sub != nil {
		s.sub.Stop()
		s.sub = nil
	}
	s.state.Monitoring = false
}

// onFix is the monitoring callback. It recomputes the distance to the site,
// updates the live state, and fires the automatic clock-out exactly once on
// the inside-to-outside transition.
func (s *Session) onFix(fix location.Fix) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub == nil {
		return
	}
	rec := s.state.Record
	if rec == nil || !rec.Open() {
		return
	}

	siteCoord, err := s.resolver.Resolve(context.Background(), s.shift)
	if err != nil {
		// Cannot evaluate yet. Treating this as "outside" would auto-clock-out
		// a worker before their site location is even known.
		s.state.CurrentLatitude = &fix.Coordinate.Latitude
		s.state.CurrentLongitude = &fix.Coordinate.Longitude
		s.state.StatusMessage = "Waiting for site location to evaluate the geofence."
		return
	}

	res := geo.WithinGeofence(fix.Coordinate, siteCoord, s.shift.GeofenceRadiusFeet())
	s.applyFixLocked(fix, res)

	if res.IsWithinRadius {
		s.state.StatusMessage = fmt.Sprintf("On site, %.0f ft from %s.", res.DistanceFeet, s.shift.Site.Name)
	} else {
		s.state.StatusMessage = fmt.Sprintf("Outside the geofence, %.0f ft from %s.", res.DistanceFeet, s.shift.Site.Name)
	}

	exited := s.wasInside && !res.IsWithinRadius
	s.wasInside = res.IsWithinRadius

	if !exited {
		return
	}

	msg := fmt.Sprintf("You were clocked out automatically: you moved %.0f ft from %s, outside the %.0f ft geofence.",
		res.DistanceFeet, s.shift.Site.Name, s.shift.GeofenceRadiusFeet())

	updated, err := s.clockOutLocked(context.Background(), attendance.ReasonAutoGeofence, nil)
	if err != nil {
		// Best-effort trade-off: the durable record did not update, but the
		// watch is already stopped so the device is not left in a loop.
		slog.Error("automatic clock-out failed",
			"cleaner_id", s.cleaner.ID, "shift_id", s.shift.ShiftID, "error", err)
		if s.notifier != nil && s.state.Record != nil {
			s.notifier.NotifyAutoClockOut(s.cleaner.ID, *s.state.Record, msg)
		}
		return
	}

	slog.Info("automatic clock-out on geofence exit",
		"cleaner_id", s.cleaner.ID, "shift_id", s.shift.ShiftID,
		"distance_ft", res.DistanceFeet)

	if s.notifier != nil {
		s.notifier.NotifyAutoClockOut(s.cleaner.ID, updated, msg)
	}
}

func (s *Session) applyFixLocked(fix location.Fix, res geo.GeofenceResult) {
	s.state.CurrentLatitude = &fix.Coordinate.Latitude
	s.state.CurrentLongitude = &fix.Coordinate.Longitude
	s.state.IsWithinGeofence = res.IsWithinRadius
	s.state.DistanceFromSiteFt = res.DistanceFeet
}

func (s *Session) evaluateEligibilityLocked(res geo.GeofenceResult) {
	windowOK, windowMsg := geo.ClockInWindow(s.now(), s.shift.ScheduledStart, s.cfg.EarlyWindow)

	switch {
	case !res.IsWithinRadius:
		s.state.CanClockIn = false
		s.state.StatusMessage = fmt.Sprintf("You are %.0f ft from %s; you must be within %.0f ft to clock in.",
			res.DistanceFeet, s.shift.Site.Name, s.shift.GeofenceRadiusFeet())
	case !windowOK:
		s.state.CanClockIn = false
		s.state.StatusMessage = windowMsg
	default:
		s.state.CanClockIn = true
		s.state.StatusMessage = fmt.Sprintf("Ready to clock in, %.0f ft from %s.",
			res.DistanceFeet, s.shift.Site.Name)
	}
}

// failLocked records err on the state and returns it.
func (s *Session) failLocked(err error) error {
	s.state.Error = err.Error()
	return err
}

func mapLocationErr(err error) error {
	switch {
	case errors.Is(err, location.ErrPermissionDenied):
		return attendance.ErrLocationPermission
	case errors.Is(err, location.ErrUnavailable):
		return attendance.ErrLocationUnavailable
	default:
		return err
	}
}
