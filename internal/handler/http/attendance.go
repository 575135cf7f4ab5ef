package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/jwtauth/v5"

	"github.com/tidycrew/fieldops-backend-go/internal/domain/attendance"
	"github.com/tidycrew/fieldops-backend-go/internal/domain/shift"
	"github.com/tidycrew/fieldops-backend-go/internal/domain/site"
	"github.com/tidycrew/fieldops-backend-go/internal/handler/http/response"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/validator"
	attendancesvc "github.com/tidycrew/fieldops-backend-go/internal/service/attendance"
)

type AttendanceHandler interface {
	SetSession(w http.ResponseWriter, r *http.Request)
	CloseSession(w http.ResponseWriter, r *http.Request)
	GetState(w http.ResponseWriter, r *http.Request)
	ClockIn(w http.ResponseWriter, r *http.Request)
	ClockOut(w http.ResponseWriter, r *http.Request)
	RefreshLocation(w http.ResponseWriter, r *http.Request)
	StartMonitoring(w http.ResponseWriter, r *http.Request)
	StopMonitoring(w http.ResponseWriter, r *http.Request)
	ListRecords(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	manager *attendancesvc.Manager
	records attendance.Repository
}

func NewAttendanceHandler(manager *attendancesvc.Manager, records attendance.Repository) AttendanceHandler {
	return &attendanceHandlerImpl{
		manager: manager,
		records: records,
	}
}

// getCleanerFromContext extracts the cleaner identity from JWT claims
func getCleanerFromContext(r *http.Request) (attendancesvc.Cleaner, bool) {
	_, claims, _ := jwtauth.FromContext(r.Context())
	id, ok := claims["cleaner_id"].(string)
	if !ok || id == "" {
		return attendancesvc.Cleaner{}, false
	}
	name, _ := claims["name"].(string)
	return attendancesvc.Cleaner{ID: id, Name: name}, true
}

func (h *attendanceHandlerImpl) session(w http.ResponseWriter, r *http.Request) (*attendancesvc.Session, bool) {
	cleaner, ok := getCleanerFromContext(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return nil, false
	}
	sess, ok := h.manager.Get(cleaner.ID)
	if !ok {
		response.HandleError(w, attendance.ErrNoSession)
		return nil, false
	}
	return sess, true
}

// SetSession implements AttendanceHandler. The UI sends the shift context it
// holds; a changed shift replaces the previous session wholesale.
func (h *attendanceHandlerImpl) SetSession(w http.ResponseWriter, r *http.Request) {
	cleaner, ok := getCleanerFromContext(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req attendance.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	scheduledDate, _ := validator.IsValidDate(req.ScheduledDate)
	scheduledStart, _ := validator.IsValidDateTime(req.ScheduledStart)

	sc := shift.Context{
		ShiftID: req.ShiftID,
		Site: site.Site{
			Name:      req.SiteName,
			Address:   req.SiteAddress,
			Latitude:  req.SiteLatitude,
			Longitude: req.SiteLongitude,
		},
		ScheduledDate:  scheduledDate,
		ScheduledStart: scheduledStart.UTC(),
		RadiusFeet:     req.RadiusFeet,
	}

	sess := h.manager.Open(cleaner, sc)
	response.Success(w, sess.Snapshot())
}

// CloseSession implements AttendanceHandler.
func (h *attendanceHandlerImpl) CloseSession(w http.ResponseWriter, r *http.Request) {
	cleaner, ok := getCleanerFromContext(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}
	h.manager.Close(cleaner.ID)
	response.SuccessWithMessage(w, "Session closed", nil)
}

// GetState implements AttendanceHandler.
func (h *attendanceHandlerImpl) GetState(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	response.Success(w, sess.Snapshot())
}

// ClockIn implements AttendanceHandler.
func (h *attendanceHandlerImpl) ClockIn(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	if _, err := sess.ClockIn(r.Context()); err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Clock in successful", sess.Snapshot())
}

// ClockOut implements AttendanceHandler.
func (h *attendanceHandlerImpl) ClockOut(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	// An empty body is a plain manual clock-out.
	var req attendance.ClockOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	reason := attendance.ReasonManual
	if req.Reason != nil {
		reason = *req.Reason
	}

	if _, err := sess.ClockOut(r.Context(), reason, req.Notes); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Clock out successful", sess.Snapshot())
}

// RefreshLocation implements AttendanceHandler.
func (h *attendanceHandlerImpl) RefreshLocation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := sess.RefreshLocation(r.Context()); err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, sess.Snapshot())
}

// StartMonitoring implements AttendanceHandler.
func (h *attendanceHandlerImpl) StartMonitoring(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := sess.StartMonitoring(); err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, sess.Snapshot())
}

// StopMonitoring implements AttendanceHandler.
func (h *attendanceHandlerImpl) StopMonitoring(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	sess.StopMonitoring()
	response.Success(w, sess.Snapshot())
}

// ListRecords implements AttendanceHandler.
func (h *attendanceHandlerImpl) ListRecords(w http.ResponseWriter, r *http.Request) {
	cleaner, ok := getCleanerFromContext(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	q := r.URL.Query()
	filter := attendance.ListFilter{
		Page:  1,
		Limit: 20,
	}
	if v := q.Get("page"); v != "" {
		if page, err := strconv.Atoi(v); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}
	if v := q.Get("status"); v != "" {
		filter.Status = &v
	}
	if v := q.Get("start_date"); v != "" {
		filter.StartDate = &v
	}
	if v := q.Get("end_date"); v != "" {
		filter.EndDate = &v
	}

	if err := filter.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	records, total, err := h.records.ListByCleaner(r.Context(), cleaner.ID, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	mapped := make([]attendance.RecordResponse, 0, len(records))
	for _, rec := range records {
		mapped = append(mapped, attendance.MapRecordToResponse(rec))
	}

	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	response.Success(w, attendance.ListRecordsResponse{
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
		Records:    mapped,
	})
}
