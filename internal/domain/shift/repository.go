package shift

import "context"

// Repository exposes the slice of the scheduling store the attendance core
// touches. Schedule CRUD lives elsewhere.
type Repository interface {
	// UpdateStatus sets the shift's status field ("in_progress"/"completed").
	// Callers treat failures as best-effort.
	UpdateStatus(ctx context.Context, shiftID string, status string) error
}
