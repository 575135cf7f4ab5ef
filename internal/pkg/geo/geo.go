package geo

import (
	"fmt"
	"math"
	"time"
)

const (
	earthRadiusMeters = 6371000
	feetPerMeter      = 3.28084

	// DefaultGeofenceRadiusFeet applies when a shift carries no radius of its own.
	DefaultGeofenceRadiusFeet = 300.0
)

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// IsValidLatLon reports whether lat/lon fall inside the valid WGS84 ranges.
func IsValidLatLon(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Valid reports whether the coordinate is usable: in range and not the
// (0, 0) null-island placeholder that unset records carry.
func (c Coordinate) Valid() bool {
	if !IsValidLatLon(c.Latitude, c.Longitude) {
		return false
	}
	return c.Latitude != 0 || c.Longitude != 0
}

// DistanceFeet computes the great-circle distance between two coordinates
// in feet using the haversine formula.
func DistanceFeet(a, b Coordinate) float64 {
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)

	// Guard against floating point drift pushing h past 1 for antipodal points.
	if h > 1 {
		h = 1
	}

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c * feetPerMeter
}

// DistanceMeters is DistanceFeet in meters, for callers whose thresholds
// are metric (movement throttling).
func DistanceMeters(a, b Coordinate) float64 {
	return DistanceFeet(a, b) / feetPerMeter
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// GeofenceResult is the outcome of a containment test.
type GeofenceResult struct {
	IsWithinRadius bool
	DistanceFeet   float64
}

// WithinGeofence tests whether current lies within radiusFt of target.
// The boundary is inclusive: a point exactly at the radius is inside.
func WithinGeofence(current, target Coordinate, radiusFt float64) GeofenceResult {
	d := DistanceFeet(current, target)
	return GeofenceResult{
		IsWithinRadius: d <= radiusFt,
		DistanceFeet:   d,
	}
}

// ClockInWindow reports whether a clock-in attempted at now is allowed
// against the scheduled shift start. The window opens `early` before the
// start and never closes: there is no late cutoff.
func ClockInWindow(now, scheduledStart time.Time, early time.Duration) (bool, string) {
	opensAt := scheduledStart.Add(-early)
	if now.Before(opensAt) {
		wait := opensAt.Sub(now)
		mins := int(math.Ceil(wait.Minutes()))
		return false, fmt.Sprintf("Too early to clock in. The window opens in %d minute(s), %d minute(s) before the %s start.",
			mins, int(early.Minutes()), scheduledStart.Format("15:04"))
	}
	return true, "Clock-in window is open."
}

// MinutesWorked returns the whole minutes between start and end, floored.
// A clock-out preceding its clock-in is a data anomaly; it clamps to 0.
func MinutesWorked(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Minutes())
}
