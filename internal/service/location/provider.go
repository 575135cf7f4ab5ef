package location

import (
	"context"
	"errors"
	"time"

	"github.com/tidycrew/fieldops-backend-go/internal/pkg/geo"
)

var (
	// ErrPermissionDenied means the device reported that foreground location
	// permission is not granted. Actionable by the user, not retryable here.
	ErrPermissionDenied = errors.New("location permission denied on device")

	// ErrUnavailable means no sufficiently fresh fix exists for the cleaner.
	ErrUnavailable = errors.New("no current location available")
)

// Fix is one device position reading.
type Fix struct {
	Coordinate     geo.Coordinate
	AccuracyMeters float64
	ReportedAt     time.Time
}

// WatchOptions bound how often a subscription callback fires: a callback is
// delivered only when the device has moved at least MinDistanceMeters and at
// least MinInterval has elapsed since the previous delivery.
type WatchOptions struct {
	MinDistanceMeters float64
	MinInterval       time.Duration
}

// DefaultWatchOptions is the standard monitoring throttle.
var DefaultWatchOptions = WatchOptions{
	MinDistanceMeters: 10,
	MinInterval:       10 * time.Second,
}

// Subscription is a handle on a continuous position watch. Stop is
// idempotent and safe to call from inside the subscription's own callback.
type Subscription interface {
	Stop()
}

// Provider abstracts the device location service: one-shot position fetch
// and a throttled continuous watch.
type Provider interface {
	// Current returns the cleaner's latest fresh fix, ErrPermissionDenied
	// when the device reports denied permission, or ErrUnavailable.
	Current(ctx context.Context, cleanerID string) (Fix, error)

	// Watch begins a continuous subscription for the cleaner's fixes.
	Watch(cleanerID string, opts WatchOptions, fn func(Fix)) (Subscription, error)
}
