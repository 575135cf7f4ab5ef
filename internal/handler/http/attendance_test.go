package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidycrew/fieldops-backend-go/internal/domain/attendance"
	"github.com/tidycrew/fieldops-backend-go/internal/domain/site"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/geo"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/jwt"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/sse"
	attendancesvc "github.com/tidycrew/fieldops-backend-go/internal/service/attendance"
	"github.com/tidycrew/fieldops-backend-go/internal/service/location"
)

const (
	testSecret       = "test-secret-key-for-jwt"
	testProvisionKey = "test-provision-key"
)

var testSite = geo.Coordinate{Latitude: 40.7128, Longitude: -74.0060}

type memRecordRepo struct {
	mu      sync.Mutex
	records map[string]attendance.Record
}

func (m *memRecordRepo) Create(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memRecordRepo) Update(_ context.Context, rec attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

func (m *memRecordRepo) GetOpenSession(_ context.Context, cleanerID, shiftID string) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.CleanerID == cleanerID && rec.ShiftID == shiftID && rec.Open() {
			return rec, nil
		}
	}
	return attendance.Record{}, attendance.ErrRecordNotFound
}

func (m *memRecordRepo) ListByCleaner(_ context.Context, cleanerID string, _ attendance.ListFilter) ([]attendance.Record, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attendance.Record
	for _, rec := range m.records {
		if rec.CleanerID == cleanerID {
			out = append(out, rec)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memRecordRepo) GetStaleOpenSessions(_ context.Context, _ time.Time) ([]attendance.Record, error) {
	return nil, nil
}

type memShiftRepo struct{}

func (memShiftRepo) UpdateStatus(context.Context, string, string) error { return nil }

type memSiteRepo struct{}

func (memSiteRepo) GetByName(_ context.Context, name string) (site.Site, error) {
	return site.Site{
		Name:      name,
		Latitude:  &testSite.Latitude,
		Longitude: &testSite.Longitude,
	}, nil
}

func (memSiteRepo) UpdateCoordinates(context.Context, string, geo.Coordinate) error { return nil }

type noGeocoder struct{}

func (noGeocoder) Geocode(context.Context, string) (geo.Coordinate, bool, error) {
	return geo.Coordinate{}, false, nil
}

func newTestRouter(t *testing.T) (http.Handler, *memRecordRepo) {
	t.Helper()

	records := &memRecordRepo{records: make(map[string]attendance.Record)}
	feed := location.NewFeed(5 * time.Minute)
	hub := sse.NewHub()
	jwtService := jwt.NewJWTService(testSecret, "1h")

	manager := attendancesvc.NewManager(
		records, memShiftRepo{}, memSiteRepo{}, noGeocoder{}, feed, hub,
		attendancesvc.SessionConfig{EarlyWindow: 15 * time.Minute},
	)

	router := NewRouter(
		jwtService,
		"test",
		[]string{"http://localhost:3000"},
		NewAuthHandler(jwtService, testProvisionKey),
		NewAttendanceHandler(manager, records),
		NewLocationHandler(feed),
		NewStreamHandler(jwtService, hub),
	)
	return router, records
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, "body: %s", rr.Body.String())
	return envelope.Data
}

func issueToken(t *testing.T, router http.Handler) string {
	t.Helper()

	rr := doJSON(t, router, http.MethodPost, "/api/v1/auth/token", "", map[string]string{
		"cleaner_id":    "cleaner-1",
		"name":          "Dana Reyes",
		"provision_key": testProvisionKey,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	data := decodeData(t, rr)
	token, _ := data["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func sessionBody(radiusFeet float64) map[string]interface{} {
	now := time.Now().UTC()
	return map[string]interface{}{
		"shift_id":        "shift-1",
		"site_name":       "Harbor Tower",
		"scheduled_date":  now.Format("2006-01-02"),
		"scheduled_start": now.Format(time.RFC3339),
		"radius_feet":     radiusFeet,
	}
}

func TestToken_BadProvisionKey(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/api/v1/auth/token", "", map[string]string{
		"cleaner_id":    "cleaner-1",
		"provision_key": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAttendance_RequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/api/v1/attendance/state", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAttendance_StateWithoutSession(t *testing.T) {
	router, _ := newTestRouter(t)
	token := issueToken(t, router)

	rr := doJSON(t, router, http.MethodGet, "/api/v1/attendance/state", token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAttendance_FullFlow(t *testing.T) {
	router, records := newTestRouter(t)
	token := issueToken(t, router)

	// Establish the shift context.
	rr := doJSON(t, router, http.MethodPut, "/api/v1/attendance/session", token, sessionBody(300))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// The device reports a position at the site.
	rr = doJSON(t, router, http.MethodPost, "/api/v1/location", token, map[string]interface{}{
		"latitude":  testSite.Latitude,
		"longitude": testSite.Longitude,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Clock in.
	rr = doJSON(t, router, http.MethodPost, "/api/v1/attendance/clock-in", token, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	data := decodeData(t, rr)
	assert.Equal(t, true, data["monitoring"])
	assert.Equal(t, true, data["is_within_geofence"])
	require.NotNil(t, data["record"])

	// State reflects the open record.
	rr = doJSON(t, router, http.MethodGet, "/api/v1/attendance/state", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	data = decodeData(t, rr)
	rec, ok := data["record"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, attendance.StatusClockedIn, rec["status"])

	// A second clock-in conflicts.
	rr = doJSON(t, router, http.MethodPost, "/api/v1/attendance/clock-in", token, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	// Clock out with a note.
	rr = doJSON(t, router, http.MethodPost, "/api/v1/attendance/clock-out", token, map[string]interface{}{
		"notes": "all floors done",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// History shows the closed record.
	rr = doJSON(t, router, http.MethodGet, "/api/v1/attendance/records", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	data = decodeData(t, rr)
	assert.EqualValues(t, 1, data["total_count"])

	records.mu.Lock()
	defer records.mu.Unlock()
	require.Len(t, records.records, 1)
	for _, stored := range records.records {
		assert.Equal(t, attendance.StatusClockedOut, stored.Status)
		require.NotNil(t, stored.ClockOutReason)
		assert.Equal(t, attendance.ReasonManual, *stored.ClockOutReason)
	}
}

func TestAttendance_ClockInOutsideGeofence(t *testing.T) {
	router, _ := newTestRouter(t)
	token := issueToken(t, router)

	rr := doJSON(t, router, http.MethodPut, "/api/v1/attendance/session", token, sessionBody(300))
	require.Equal(t, http.StatusOK, rr.Code)

	// Roughly two miles north of the site.
	rr = doJSON(t, router, http.MethodPost, "/api/v1/location", token, map[string]interface{}{
		"latitude":  testSite.Latitude + 0.03,
		"longitude": testSite.Longitude,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/v1/attendance/clock-in", token, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestAttendance_ClockInWithoutLocation(t *testing.T) {
	router, _ := newTestRouter(t)
	token := issueToken(t, router)

	rr := doJSON(t, router, http.MethodPut, "/api/v1/attendance/session", token, sessionBody(300))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/v1/attendance/clock-in", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAttendance_SessionValidation(t *testing.T) {
	router, _ := newTestRouter(t)
	token := issueToken(t, router)

	rr := doJSON(t, router, http.MethodPut, "/api/v1/attendance/session", token, map[string]interface{}{
		"shift_id": "",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestAttendance_ClockOutRejectsAutomaticReason(t *testing.T) {
	router, _ := newTestRouter(t)
	token := issueToken(t, router)

	rr := doJSON(t, router, http.MethodPut, "/api/v1/attendance/session", token, sessionBody(300))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/v1/attendance/clock-out", token, map[string]interface{}{
		"reason": attendance.ReasonAutoGeofence,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "only a manual reason may come from the device")
}

func TestSSEToken_AndStreamAuth(t *testing.T) {
	router, _ := newTestRouter(t)
	token := issueToken(t, router)

	rr := doJSON(t, router, http.MethodPost, "/api/v1/auth/sse-token", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	data := decodeData(t, rr)
	sseToken, _ := data["token"].(string)
	assert.NotEmpty(t, sseToken)
	assert.EqualValues(t, 300, data["expires_in"])

	rr = doJSON(t, router, http.MethodGet, "/api/v1/attendance/stream?token=not-a-token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/v1/attendance/stream", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLocation_PermissionDenied(t *testing.T) {
	router, _ := newTestRouter(t)
	token := issueToken(t, router)

	rr := doJSON(t, router, http.MethodPut, "/api/v1/attendance/session", token, sessionBody(300))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/v1/location", token, map[string]interface{}{
		"permission_denied": true,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/v1/attendance/clock-in", token, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestLocation_RejectsBadCoordinates(t *testing.T) {
	router, _ := newTestRouter(t)
	token := issueToken(t, router)

	rr := doJSON(t, router, http.MethodPost, "/api/v1/location", token, map[string]interface{}{
		"latitude":  200.0,
		"longitude": 10.0,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestLocation_ReportedAtParsing(t *testing.T) {
	router, _ := newTestRouter(t)
	token := issueToken(t, router)

	rr := doJSON(t, router, http.MethodPost, "/api/v1/location", token, map[string]interface{}{
		"latitude":    testSite.Latitude,
		"longitude":   testSite.Longitude,
		"reported_at": time.Now().UTC().Format(time.RFC3339),
		"accuracy_m":  8.5,
	})
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}
