package postgresql

import (
	"context"
	"fmt"

	"github.com/tidycrew/fieldops-backend-go/internal/domain/shift"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/database"
)

type shiftRepository struct {
	db *database.DB
}

func NewShiftRepository(db *database.DB) shift.Repository {
	return &shiftRepository{db: db}
}

// UpdateStatus implements shift.Repository.
func (s *shiftRepository) UpdateStatus(ctx context.Context, shiftID string, status string) error {
	q := GetQuerier(ctx, s.db)

	query := `
		UPDATE shifts
		SET status = $2,
			updated_at = NOW()
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query, shiftID, status)
	if err != nil {
		return fmt.Errorf("failed to update shift status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shift.ErrShiftNotFound
	}

	return nil
}
