package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tidycrew/fieldops-backend-go/internal/domain/attendance"
	"github.com/tidycrew/fieldops-backend-go/internal/domain/shift"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/database"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/geo"
)

// Notifier mirrors the session-level notifier so the sweep can reach
// cleaners whose automatic clock-out never made it to the store.
type Notifier interface {
	NotifyAutoClockOut(cleanerID string, record attendance.Record, message string)
}

// Transactor runs fn inside a database transaction.
type Transactor func(ctx context.Context, db *database.DB, fn func(tx pgx.Tx) error) error

// AttendanceJobs closes sessions that were left open past any plausible
// shift length: a crashed device, a dead battery, or a failed automatic
// clock-out all end up here.
type AttendanceJobs struct {
	records  attendance.Repository
	shifts   shift.Repository
	notifier Notifier
	db       *database.DB
	inTx     Transactor
	maxAge   time.Duration
	interval time.Duration
}

func NewAttendanceJobs(
	records attendance.Repository,
	shifts shift.Repository,
	notifier Notifier,
	db *database.DB,
	inTx Transactor,
	maxAge time.Duration,
	interval time.Duration,
) *AttendanceJobs {
	return &AttendanceJobs{
		records:  records,
		shifts:   shifts,
		notifier: notifier,
		db:       db,
		inTx:     inTx,
		maxAge:   maxAge,
		interval: interval,
	}
}

func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("auto_close_stale_sessions", j.interval, j.AutoCloseStaleSessions)
}

func (j *AttendanceJobs) AutoCloseStaleSessions(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.maxAge)

	stale, err := j.records.GetStaleOpenSessions(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to get stale sessions: %w", err)
	}

	if len(stale) == 0 {
		return nil
	}

	closedCount := 0
	for _, rec := range stale {
		closed, err := j.closeSession(ctx, rec)
		if err != nil {
			slog.Error("Cron: Failed to auto-close stale session",
				"record_id", rec.ID,
				"cleaner_id", rec.CleanerID,
				"error", err)
			continue
		}

		if j.notifier != nil {
			j.notifier.NotifyAutoClockOut(closed.CleanerID, closed,
				"Your shift was closed automatically because no clock-out was recorded.")
		}
		closedCount++
	}

	slog.Info("Cron: Auto-closed stale sessions", "count", closedCount)
	return nil
}

// closeSession clocks the record out at clock-in plus the maximum session
// age, inside one transaction with the shift status update.
func (j *AttendanceJobs) closeSession(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	if rec.ClockIn == nil {
		return attendance.Record{}, fmt.Errorf("stale session %s has no clock-in time", rec.ID)
	}

	clockOut := rec.ClockIn.Add(j.maxAge)
	minutes := geo.MinutesWorked(*rec.ClockIn, clockOut)
	reason := attendance.ReasonAutoStale
	notes := "Closed by the stale-session sweep; no clock-out was recorded."

	rec.ClockOut = &clockOut
	rec.ClockOutReason = &reason
	rec.MinutesWorked = &minutes
	rec.Status = attendance.StatusClockedOut
	rec.Notes = &notes

	err := j.inTx(ctx, j.db, func(tx pgx.Tx) error {
		txCtx := context.WithValue(ctx, "tx", tx)
		if err := j.records.Update(txCtx, rec); err != nil {
			return err
		}
		return j.shifts.UpdateStatus(txCtx, rec.ShiftID, shift.StatusCompleted)
	})
	if err != nil {
		return attendance.Record{}, err
	}

	return rec, nil
}
