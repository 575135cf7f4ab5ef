package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidycrew/fieldops-backend-go/internal/domain/attendance"
	"github.com/tidycrew/fieldops-backend-go/internal/domain/shift"
	"github.com/tidycrew/fieldops-backend-go/internal/domain/site"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/geo"
	"github.com/tidycrew/fieldops-backend-go/internal/service/location"
	"github.com/tidycrew/fieldops-backend-go/internal/service/resolver"
)

// ===== FAKES =====

type fakeRecordRepo struct {
	mu          sync.Mutex
	records     map[string]attendance.Record
	createErr   error
	updateErr   error
	createCalls int
	updateCalls int
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: make(map[string]attendance.Record)}
}

func (f *fakeRecordRepo) Create(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return attendance.Record{}, f.createErr
	}
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeRecordRepo) Update(_ context.Context, rec attendance.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeRecordRepo) GetOpenSession(_ context.Context, cleanerID, shiftID string) (attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.CleanerID == cleanerID && rec.ShiftID == shiftID && rec.Open() {
			return rec, nil
		}
	}
	return attendance.Record{}, attendance.ErrRecordNotFound
}

func (f *fakeRecordRepo) ListByCleaner(_ context.Context, _ string, _ attendance.ListFilter) ([]attendance.Record, int64, error) {
	return nil, 0, nil
}

func (f *fakeRecordRepo) GetStaleOpenSessions(_ context.Context, _ time.Time) ([]attendance.Record, error) {
	return nil, nil
}

func (f *fakeRecordRepo) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rec := range f.records {
		if rec.Open() {
			n++
		}
	}
	return n
}

func (f *fakeRecordRepo) only() attendance.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		return rec
	}
	return attendance.Record{}
}

type fakeShiftRepo struct {
	mu       sync.Mutex
	statuses []string
	err      error
}

func (f *fakeShiftRepo) UpdateStatus(_ context.Context, _ string, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeShiftRepo) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return ""
	}
	return f.statuses[len(f.statuses)-1]
}

type fakeSiteRepo struct {
	mu    sync.Mutex
	sites map[string]site.Site
}

func newFakeSiteRepo() *fakeSiteRepo {
	return &fakeSiteRepo{sites: make(map[string]site.Site)}
}

func (f *fakeSiteRepo) GetByName(_ context.Context, name string) (site.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sites[name]
	if !ok {
		return site.Site{}, site.ErrSiteNotFound
	}
	return s, nil
}

func (f *fakeSiteRepo) UpdateCoordinates(_ context.Context, name string, coord geo.Coordinate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sites[name]
	s.Name = name
	s.Latitude = &coord.Latitude
	s.Longitude = &coord.Longitude
	f.sites[name] = s
	return nil
}

func (f *fakeSiteRepo) set(name string, coord geo.Coordinate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sites[name] = site.Site{Name: name, Latitude: &coord.Latitude, Longitude: &coord.Longitude}
}

type failingGeocoder struct{}

func (failingGeocoder) Geocode(context.Context, string) (geo.Coordinate, bool, error) {
	return geo.Coordinate{}, false, nil
}

// fakeProvider pushes fixes synchronously into the watch callback so the
// auto-clock-out path is deterministic under test.
type fakeProvider struct {
	mu         sync.Mutex
	fix        location.Fix
	currentErr error
	watchErr   error
	fn         func(location.Fix)
	stops      int
}

func (p *fakeProvider) Current(context.Context, string) (location.Fix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentErr != nil {
		return location.Fix{}, p.currentErr
	}
	return p.fix, nil
}

func (p *fakeProvider) Watch(_ string, _ location.WatchOptions, fn func(location.Fix)) (location.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watchErr != nil {
		return nil, p.watchErr
	}
	p.fn = fn
	return fakeSub{p}, nil
}

func (p *fakeProvider) setFix(c geo.Coordinate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fix = location.Fix{Coordinate: c, ReportedAt: time.Now()}
}

func (p *fakeProvider) push(c geo.Coordinate) {
	p.mu.Lock()
	fn := p.fn
	p.mu.Unlock()
	if fn != nil {
		fn(location.Fix{Coordinate: c, ReportedAt: time.Now()})
	}
}

type fakeSub struct{ p *fakeProvider }

func (s fakeSub) Stop() {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.stops++
	s.p.fn = nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	count    int
	lastMsg  string
	lastRec  attendance.Record
}

func (n *fakeNotifier) NotifyAutoClockOut(_ string, rec attendance.Record, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
	n.lastMsg = msg
	n.lastRec = rec
}

// ===== HARNESS =====

// Degrees of latitude per foot at the haversine earth radius; lets tests
// place a worker at an exact distance north of the site.
const feetPerDegreeLat = 364820.0

var siteCoord = geo.Coordinate{Latitude: 47.6000, Longitude: -122.3300}

func northOf(c geo.Coordinate, feet float64) geo.Coordinate {
	return geo.Coordinate{Latitude: c.Latitude + feet/feetPerDegreeLat, Longitude: c.Longitude}
}

type harness struct {
	records  *fakeRecordRepo
	shifts   *fakeShiftRepo
	sites    *fakeSiteRepo
	provider *fakeProvider
	notifier *fakeNotifier
	session  *Session
	now      time.Time
	clockMu  sync.Mutex
}

func (h *harness) advance(d time.Duration) {
	h.clockMu.Lock()
	h.now = h.now.Add(d)
	h.clockMu.Unlock()
}

var testStart = time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, siteKnown bool) *harness {
	t.Helper()

	h := &harness{
		records:  newFakeRecordRepo(),
		shifts:   &fakeShiftRepo{},
		sites:    newFakeSiteRepo(),
		provider: &fakeProvider{},
		notifier: &fakeNotifier{},
		now:      testStart,
	}
	if siteKnown {
		h.sites.set("Columbia Center", siteCoord)
	}

	sc := shift.Context{
		ShiftID:        "shift-1",
		Site:           site.Site{Name: "Columbia Center"},
		ScheduledDate:  testStart.Truncate(24 * time.Hour),
		ScheduledStart: testStart,
		RadiusFeet:     300,
	}

	h.rebuild(sc, SessionConfig{EarlyWindow: 15 * time.Minute})
	return h
}

// rebuild swaps in a fresh session over the same fakes, keeping the
// harness clock wired.
func (h *harness) rebuild(sc shift.Context, cfg SessionConfig) {
	h.session = NewSession(
		Cleaner{ID: "cleaner-1", Name: "Dana Reyes"},
		sc,
		h.records,
		h.shifts,
		resolver.NewResolver(h.sites, failingGeocoder{}),
		h.provider,
		h.notifier,
		cfg,
	)
	h.session.now = func() time.Time {
		h.clockMu.Lock()
		defer h.clockMu.Unlock()
		return h.now
	}
}

// ===== CLOCK-IN =====

func TestClockIn_Success(t *testing.T) {
	h := newHarness(t, true)
	h.provider.setFix(northOf(siteCoord, 250))

	rec, err := h.session.ClockIn(context.Background())
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusClockedIn, rec.Status)
	assert.Equal(t, "cleaner-1", rec.CleanerID)
	require.NotNil(t, rec.ClockInDistanceFt)
	assert.InDelta(t, 250, *rec.ClockInDistanceFt, 1)
	require.NotNil(t, rec.ClockIn)
	assert.Equal(t, testStart, *rec.ClockIn)

	st := h.session.State()
	assert.True(t, st.IsWithinGeofence)
	assert.True(t, st.CanClockIn)
	assert.True(t, st.Monitoring, "monitoring starts on clock-in")
	assert.Empty(t, st.Error)

	assert.Equal(t, shift.StatusInProgress, h.shifts.last())
	assert.Equal(t, 1, h.records.createCalls)
}

func TestClockIn_OutsideGeofence(t *testing.T) {
	h := newHarness(t, true)
	h.provider.setFix(northOf(siteCoord, 350))

	_, err := h.session.ClockIn(context.Background())
	assert.ErrorIs(t, err, attendance.ErrOutsideGeofence)
	assert.Zero(t, h.records.createCalls, "no record may be created")

	st := h.session.State()
	assert.False(t, st.IsWithinGeofence)
	assert.InDelta(t, 350, st.DistanceFromSiteFt, 1)
	assert.Contains(t, st.StatusMessage, "350 ft")
	assert.False(t, st.Monitoring)
}

func TestClockIn_BoundaryInclusive(t *testing.T) {
	h := newHarness(t, true)
	h.provider.setFix(northOf(siteCoord, 299))

	_, err := h.session.ClockIn(context.Background())
	assert.NoError(t, err, "just inside the radius clocks in")
}

func TestClockIn_ConfiguredDefaultRadius(t *testing.T) {
	h := newHarness(t, true)
	sc := h.session.Shift()
	sc.RadiusFeet = 0
	h.rebuild(sc, SessionConfig{EarlyWindow: 15 * time.Minute, DefaultRadiusFeet: 500})

	h.provider.setFix(northOf(siteCoord, 400))
	_, err := h.session.ClockIn(context.Background())
	assert.NoError(t, err, "the configured default governs a shift without a radius")
}

func TestClockIn_ShiftRadiusBeatsConfiguredDefault(t *testing.T) {
	h := newHarness(t, true)
	sc := h.session.Shift()
	sc.RadiusFeet = 300
	h.rebuild(sc, SessionConfig{EarlyWindow: 15 * time.Minute, DefaultRadiusFeet: 500})

	h.provider.setFix(northOf(siteCoord, 400))
	_, err := h.session.ClockIn(context.Background())
	assert.ErrorIs(t, err, attendance.ErrOutsideGeofence)
}

func TestClockIn_TooEarly(t *testing.T) {
	h := newHarness(t, true)
	h.provider.setFix(northOf(siteCoord, 100))
	h.advance(-30 * time.Minute)

	_, err := h.session.ClockIn(context.Background())
	assert.ErrorIs(t, err, attendance.ErrTooEarlyToClockIn)
	assert.Zero(t, h.records.createCalls)
	assert.Contains(t, h.session.State().StatusMessage, "window opens")
}

func TestClockIn_ArbitrarilyLate(t *testing.T) {
	h := newHarness(t, true)
	h.provider.setFix(northOf(siteCoord, 100))
	h.advance(9 * time.Hour)

	_, err := h.session.ClockIn(context.Background())
	assert.NoError(t, err, "there is no late cutoff")
}

func TestClockIn_LocationUnavailable(t *testing.T) {
	h := newHarness(t, true)
	h.provider.currentErr = location.ErrUnavailable

	_, err := h.session.ClockIn(context.Background())
	assert.ErrorIs(t, err, attendance.ErrLocationUnavailable)
	assert.Zero(t, h.records.createCalls)
	assert.NotEmpty(t, h.session.State().Error)
}

func TestClockIn_PermissionDenied(t *testing.T) {
	h := newHarness(t, true)
	h.provider.currentErr = location.ErrPermissionDenied

	_, err := h.session.ClockIn(context.Background())
	assert.ErrorIs(t, err, attendance.ErrLocationPermission)
	assert.NotErrorIs(t, err, attendance.ErrLocationUnavailable)
}

func TestClockIn_SiteLocationUnknown(t *testing.T) {
	// No stored coordinate, no address, geocoder finds nothing.
	h := newHarness(t, false)
	h.provider.setFix(northOf(siteCoord, 100))

	_, err := h.session.ClockIn(context.Background())
	assert.ErrorIs(t, err, attendance.ErrSiteLocationUnknown,
		"exhausted resolution is a data-quality error, not a location failure")
	assert.Zero(t, h.records.createCalls)
}

func TestClockIn_DuplicateOpenRecord(t *testing.T) {
	h := newHarness(t, true)
	h.provider.setFix(northOf(siteCoord, 100))

	in := testStart.Add(-time.Hour)
	h.records.records["existing"] = attendance.Record{
		ID: "existing", CleanerID: "cleaner-1", ShiftID: "shift-1",
		ClockIn: &in, Status: attendance.StatusClockedIn,
	}

	_, err := h.session.ClockIn(context.Background())
	assert.ErrorIs(t, err, attendance.ErrAlreadyClockedIn)
	assert.Equal(t, 1, h.records.openCount(), "no second record is created")

	st := h.session.State()
	assert.False(t, st.CanClockIn, "a refused clock-in must not advertise eligibility")
	assert.NotEmpty(t, st.Error)
}

func TestClockIn_PersistFailure(t *testing.T) {
	h := newHarness(t, true)
	h.provider.setFix(northOf(siteCoord, 100))
	h.records.createErr = errors.New("store offline")

	_, err := h.session.ClockIn(context.Background())
	require.Error(t, err)

	st := h.session.State()
	assert.Nil(t, st.Record, "state does not advance without a confirmed write")
	assert.False(t, st.Monitoring)
	assert.NotEmpty(t, st.Error)
}

// ===== AUTO CLOCK-OUT =====

func TestAutoClockOut_FiresOnceOnGeofenceExit(t *testing.T) {
	h := newHarness(t, true)
	h.provider.setFix(northOf(siteCoord, 250))

	_, err := h.session.ClockIn(context.Background())
	require.NoError(t, err)

	h.advance(42 * time.Minute)
	h.provider.setFix(northOf(siteCoord, 350))
	h.provider.push(northOf(siteCoord, 350))

	rec := h.records.only()
	assert.Equal(t, attendance.StatusClockedOut, rec.Status)
	require.NotNil(t, rec.ClockOutReason)
	assert.Equal(t, attendance.ReasonAutoGeofence, *rec.ClockOutReason)
	require.NotNil(t, rec.MinutesWorked)
	assert.Equal(t, 42, *rec.MinutesWorked)

	st := h.session.State()
	assert.False(t, st.Monitoring, "monitoring stops with the auto clock-out")
	assert.Equal(t, 1, h.provider.stops)
	assert.Equal(t, 1, h.notifier.count, "the worker is told why they were clocked out")
	assert.Contains(t, h.notifier.lastMsg, "automatically")

	// Staying outside must not fire again.
	updates := h.records.updateCalls
	h.provider.push(northOf(siteCoord, 400))
	h.provider.push(northOf(siteCoord, 500))
	assert.Equal(t, updates, h.records.updateCalls)
	assert.Equal(t, 1, h.notifier.count)
}

func TestAutoClockOut_NoFireWhileInside(t *testing.T) {
	h := newHarness(t, true)
	h.provider.setFix(northOf(siteCoord, 250))

	_, err := h.session.ClockIn(context.Background())
	require.NoError(t, err)

	h.provider.push(northOf(siteCoord, 280))
	h.provider.push(northOf(siteCoord, 299))

	assert.Equal(t, 1, h.records.openCount())
	assert.Zero(t, h.notifier.count)

	st := h.session.State()
	assert.True(t, st.IsWithinGeofence)
	assert.InDelta(t, 299, st.DistanceFromSiteFt, 1)
}

func TestAutoClockOut_UnresolvedSiteMeansCannotEvaluate(t *testing.T) {
	// The resolver has nothing to offer yet; monitoring updates must treat
	// that as "cannot evaluate", never as "outside the geofence".
	h := newHarness(t, false)

	in := testStart
	rec := attendance.Record{
		ID: "rec-1", CleanerID: "cleaner-1", ShiftID: "shift-1",
		ClockIn: &in, Status: attendance.StatusClockedIn,
	}
	h.records.records["rec-1"] = rec
	h.session.state.Record = &rec
	h.session.state.IsWithinGeofence = true

	require.NoError(t, h.session.StartMonitoring())

	h.provider.push(northOf(siteCoord, 5000))
	assert.Equal(t, 1, h.records.openCount(), "no auto clock-out without a resolved site")
	assert.Zero(t, h.notifier.count)
	assert.Contains(t, h.session.State().StatusMessage, "Waiting for site location")

	// Once the site becomes known, the exit transition works again.
	h.sites.set("Columbia Center", siteCoord)
	h.provider.push(northOf(siteCoord, 100)) // inside
	h.provider.push(northOf(siteCoord, 400)) // exit

	assert.Zero(t, h.records.openCount())
	assert.Equal(t, 1, h.notifier.count)
}

func TestAutoClockOut_PersistFailureStillStopsMonitoring(t *testing.T) {
	h := newHarness(t, true)
	h.provider.setFix(northOf(siteCoord, 250))

	_, err := h.session.ClockIn(context.Background())
	require.NoError(t, err)

	h.records.updateErr = errors.New("store offline")
	h.provider.push(northOf(siteCoord, 400))

	st := h.session.State()
	assert.False(t, st.Monitoring, "the watch must not keep running")
	assert.Equal(t, 1, h.provider.stops)
	require.NotNil(t, st.Record)
	assert.True(t, st.Record.Open(), "durable state did not change, so neither does the session's belief")
	assert.Equal(t, 1, h.notifier.count, "the worker is still told")
}

// ===== MANUAL CLOCK-OUT =====

func TestClockOut_Manual(t *testing.T) {
	h := newHarness(t, true)
	h.provider.setFix(northOf(siteCoord, 250))

	_, err := h.session.ClockIn(context.Background())
	require.NoError(t, err)

	h.advance(2*time.Hour + 34*time.Minute + 45*time.Second)
	notes := "supply closet restocked"
	rec, err := h.session.ClockOut(context.Background(), attendance.ReasonManual, &notes)
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusClockedOut, rec.Status)
	require.NotNil(t, rec.ClockOutReason)
	assert.Equal(t, attendance.ReasonManual, *rec.ClockOutReason)
	require.NotNil(t, rec.MinutesWorked)
	assert.Equal(t, 154, *rec.MinutesWorked)
	require.NotNil(t, rec.Notes)
	assert.Equal(t, notes, *rec.Notes)
	require.NotNil(t, rec.ClockOutDistanceFt)
	assert.InDelta(t, 250, *rec.ClockOutDistanceFt, 1)

	assert.Equal(t, shift.StatusCompleted, h.shifts.last())
	assert.False(t, h.session.State().Monitoring)
	assert.Zero(t, h.notifier.count, "manual clock-out needs no auto notice")
}

func TestClockOut_NotClockedIn(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.session.ClockOut(context.Background(), attendance.ReasonManual, nil)
	assert.ErrorIs(t, err, attendance.ErrNotClockedIn)
}

func TestClockOut_FinalLocationBestEffort(t *testing.T) {
	h := newHarness(t, true)
	h.provider.setFix(northOf(siteCoord, 250))

	_, err := h.session.ClockIn(context.Background())
	require.NoError(t, err)

	// The device goes dark; clock-out must still succeed.
	h.provider.currentErr = location.ErrUnavailable

	rec, err := h.session.ClockOut(context.Background(), attendance.ReasonManual, nil)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusClockedOut, rec.Status)
	assert.Nil(t, rec.ClockOutLatitude)
	assert.Nil(t, rec.ClockOutDistanceFt)
}

// ===== REFRESH / ELAPSED / MANAGER =====

func TestRefreshLocation(t *testing.T) {
	h := newHarness(t, true)
	h.provider.setFix(northOf(siteCoord, 120))

	require.NoError(t, h.session.RefreshLocation(context.Background()))

	st := h.session.State()
	assert.True(t, st.IsWithinGeofence)
	assert.True(t, st.CanClockIn)
	assert.InDelta(t, 120, st.DistanceFromSiteFt, 1)
	require.NotNil(t, st.CurrentLatitude)
}

func TestRefreshLocation_SiteUnknown(t *testing.T) {
	h := newHarness(t, false)
	h.provider.setFix(northOf(siteCoord, 120))

	err := h.session.RefreshLocation(context.Background())
	assert.ErrorIs(t, err, attendance.ErrSiteLocationUnknown)
}

func TestElapsed(t *testing.T) {
	h := newHarness(t, true)
	assert.Empty(t, h.session.Elapsed())

	h.provider.setFix(northOf(siteCoord, 100))
	_, err := h.session.ClockIn(context.Background())
	require.NoError(t, err)

	h.advance(1*time.Hour + 2*time.Minute + 3*time.Second)
	assert.Equal(t, "01:02:03", h.session.Elapsed())
}

func TestStopMonitoring_Idempotent(t *testing.T) {
	h := newHarness(t, true)
	h.session.StopMonitoring()
	h.session.StopMonitoring()
	assert.Zero(t, h.provider.stops)
}

func TestManager_ReplacesSessionOnShiftChange(t *testing.T) {
	records := newFakeRecordRepo()
	shifts := &fakeShiftRepo{}
	sites := newFakeSiteRepo()
	sites.set("Columbia Center", siteCoord)
	provider := &fakeProvider{}

	m := NewManager(records, shifts, sites, failingGeocoder{}, provider, &fakeNotifier{}, SessionConfig{})
	cleaner := Cleaner{ID: "cleaner-1", Name: "Dana Reyes"}

	scA := shift.Context{ShiftID: "shift-A", Site: site.Site{Name: "Columbia Center"}, ScheduledStart: testStart}
	scB := shift.Context{ShiftID: "shift-B", Site: site.Site{Name: "Columbia Center"}, ScheduledStart: testStart}

	sessA := m.Open(cleaner, scA)
	require.NoError(t, sessA.StartMonitoring())

	same := m.Open(cleaner, scA)
	assert.Same(t, sessA, same, "same shift reuses the session")

	sessB := m.Open(cleaner, scB)
	assert.NotSame(t, sessA, sessB)
	assert.Equal(t, 1, provider.stops, "replacing the shift context tears the old session down")

	got, ok := m.Get("cleaner-1")
	require.True(t, ok)
	assert.Same(t, sessB, got)

	m.Close("cleaner-1")
	_, ok = m.Get("cleaner-1")
	assert.False(t, ok)
}
