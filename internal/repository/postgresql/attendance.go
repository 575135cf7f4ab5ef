package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tidycrew/fieldops-backend-go/internal/domain/attendance"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/database"
)

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

const attendanceColumns = `
	id, cleaner_id, cleaner_name, shift_id, site_name,
	clock_in, clock_in_latitude, clock_in_longitude, clock_in_distance_ft,
	clock_out, clock_out_latitude, clock_out_longitude, clock_out_distance_ft,
	clock_out_reason, minutes_worked, status, notes,
	created_at, updated_at`

func scanRecord(row pgx.Row) (attendance.Record, error) {
	var rec attendance.Record
	err := row.Scan(
		&rec.ID, &rec.CleanerID, &rec.CleanerName, &rec.ShiftID, &rec.SiteName,
		&rec.ClockIn, &rec.ClockInLatitude, &rec.ClockInLongitude, &rec.ClockInDistanceFt,
		&rec.ClockOut, &rec.ClockOutLatitude, &rec.ClockOutLongitude, &rec.ClockOutDistanceFt,
		&rec.ClockOutReason, &rec.MinutesWorked, &rec.Status, &rec.Notes,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}

// Create implements attendance.Repository.
func (a *attendanceRepository) Create(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		INSERT INTO attendance_records (
			id, cleaner_id, cleaner_name, shift_id, site_name,
			clock_in, clock_in_latitude, clock_in_longitude, clock_in_distance_ft,
			status, notes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		) RETURNING created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		rec.ID,
		rec.CleanerID,
		rec.CleanerName,
		rec.ShiftID,
		rec.SiteName,
		rec.ClockIn,
		rec.ClockInLatitude,
		rec.ClockInLongitude,
		rec.ClockInDistanceFt,
		rec.Status,
		rec.Notes,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)

	if err != nil {
		return attendance.Record{}, fmt.Errorf("failed to create attendance record: %w", err)
	}

	return rec, nil
}

// Update implements attendance.Repository.
func (a *attendanceRepository) Update(ctx context.Context, rec attendance.Record) error {
	q := GetQuerier(ctx, a.db)

	query := `
		UPDATE attendance_records
		SET clock_out = $2,
			clock_out_latitude = $3,
			clock_out_longitude = $4,
			clock_out_distance_ft = $5,
			clock_out_reason = $6,
			minutes_worked = $7,
			status = $8,
			notes = $9,
			updated_at = NOW()
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query,
		rec.ID,
		rec.ClockOut,
		rec.ClockOutLatitude,
		rec.ClockOutLongitude,
		rec.ClockOutDistanceFt,
		rec.ClockOutReason,
		rec.MinutesWorked,
		rec.Status,
		rec.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to update attendance record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return attendance.ErrRecordNotFound
	}

	return nil
}

// GetOpenSession implements attendance.Repository.
func (a *attendanceRepository) GetOpenSession(ctx context.Context, cleanerID, shiftID string) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance_records
		WHERE cleaner_id = $1
		  AND shift_id = $2
		  AND status = $3
		ORDER BY clock_in DESC
		LIMIT 1
	`

	rec, err := scanRecord(q.QueryRow(ctx, query, cleanerID, shiftID, attendance.StatusClockedIn))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Record{}, attendance.ErrRecordNotFound
		}
		return attendance.Record{}, fmt.Errorf("failed to get open session: %w", err)
	}

	return rec, nil
}

// ListByCleaner implements attendance.Repository.
func (a *attendanceRepository) ListByCleaner(ctx context.Context, cleanerID string, filter attendance.ListFilter) ([]attendance.Record, int64, error) {
	q := GetQuerier(ctx, a.db)

	where := "WHERE cleaner_id = $1"
	args := []interface{}{cleanerID}

	if filter.Status != nil && *filter.Status != "" {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.StartDate != nil && *filter.StartDate != "" {
		args = append(args, *filter.StartDate)
		where += fmt.Sprintf(" AND clock_in >= $%d::date", len(args))
	}
	if filter.EndDate != nil && *filter.EndDate != "" {
		args = append(args, *filter.EndDate)
		where += fmt.Sprintf(" AND clock_in < $%d::date + INTERVAL '1 day'", len(args))
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM attendance_records " + where
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendance records: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM attendance_records
		%s
		ORDER BY clock_in DESC
		LIMIT $%d OFFSET $%d
	`, attendanceColumns, where, len(args)-1, len(args))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attendance records: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate attendance records: %w", err)
	}

	return records, total, nil
}

// GetStaleOpenSessions implements attendance.Repository.
func (a *attendanceRepository) GetStaleOpenSessions(ctx context.Context, olderThan time.Time) ([]attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance_records
		WHERE status = $1
		  AND clock_in < $2
		ORDER BY clock_in ASC
	`

	rows, err := q.Query(ctx, query, attendance.StatusClockedIn, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale open sessions: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stale session: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stale sessions: %w", err)
	}

	return records, nil
}
