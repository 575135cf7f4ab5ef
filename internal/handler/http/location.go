package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tidycrew/fieldops-backend-go/internal/handler/http/response"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/geo"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/validator"
	"github.com/tidycrew/fieldops-backend-go/internal/service/location"
)

type LocationHandler interface {
	Report(w http.ResponseWriter, r *http.Request)
}

type locationHandlerImpl struct {
	feed *location.Feed
}

func NewLocationHandler(feed *location.Feed) LocationHandler {
	return &locationHandlerImpl{feed: feed}
}

// locationReportRequest is one device position report. The device posts these
// continuously while the app is open; the feed fans them out to whichever
// session is watching.
type locationReportRequest struct {
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	AccuracyMeters   *float64 `json:"accuracy_m,omitempty"`
	ReportedAt       *string  `json:"reported_at,omitempty"`
	PermissionDenied bool     `json:"permission_denied,omitempty"`
}

// Report implements LocationHandler.
func (h *locationHandlerImpl) Report(w http.ResponseWriter, r *http.Request) {
	cleaner, ok := getCleanerFromContext(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req locationReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	if req.PermissionDenied {
		h.feed.ReportPermissionDenied(cleaner.ID)
		response.SuccessWithMessage(w, "Permission state recorded", nil)
		return
	}

	if !validator.IsValidLatLon(req.Latitude, req.Longitude) {
		response.ValidationError(w, map[string]string{
			"latitude": "coordinates are out of range",
		})
		return
	}

	reportedAt := time.Now().UTC()
	if req.ReportedAt != nil {
		if t, ok := validator.IsValidDateTime(*req.ReportedAt); ok {
			reportedAt = t.UTC()
		}
	}

	fix := location.Fix{
		Coordinate: geo.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude},
		ReportedAt: reportedAt,
	}
	if req.AccuracyMeters != nil {
		fix.AccuracyMeters = *req.AccuracyMeters
	}

	h.feed.Report(cleaner.ID, fix)
	response.SuccessWithMessage(w, "Location recorded", nil)
}
