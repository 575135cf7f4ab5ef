package attendance

import (
	"context"
	"time"
)

// Repository defines data access for attendance records. The open-session
// lookup by (cleaner, shift) is the composite key backing the one-open-record
// invariant.
type Repository interface {
	// Create inserts a new clocked-in record.
	Create(ctx context.Context, record Record) (Record, error)

	// Update persists the clock-out fields and terminal status.
	Update(ctx context.Context, record Record) error

	// GetOpenSession retrieves the clocked-in record for a (cleaner, shift)
	// pair, or ErrRecordNotFound when none is open.
	GetOpenSession(ctx context.Context, cleanerID, shiftID string) (Record, error)

	// ListByCleaner retrieves a cleaner's records with filters and pagination.
	ListByCleaner(ctx context.Context, cleanerID string, filter ListFilter) ([]Record, int64, error)

	// GetStaleOpenSessions returns clocked-in records older than the cutoff,
	// for the auto-close sweep.
	GetStaleOpenSessions(ctx context.Context, olderThan time.Time) ([]Record, error)
}
