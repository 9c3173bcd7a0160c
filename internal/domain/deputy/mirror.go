package deputy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hrpay/internal/domain/timesheet"
)

var ErrUnknownEmployee = errors.New("deputy employee not linked to staff")

// MirrorStats counts what a mirror pass did.
type MirrorStats struct {
	Fetched  int `json:"fetched"`
	Upserted int `json:"upserted"`
	Skipped  int `json:"skipped"`
}

// Mirror copies Deputy timesheets for [start, end) into the local cache the
// payslip engine reads from. Rows that cannot be mapped are skipped.
func (s *Service) Mirror(ctx context.Context, store timesheet.StoreAPI, start, end time.Time) (MirrorStats, error) {
	var stats MirrorStats
	rows, err := s.api.TimesheetsBetween(ctx, start, end)
	if err != nil {
		return stats, fmt.Errorf("fetch deputy timesheets: %w", err)
	}
	stats.Fetched = len(rows)

	for _, r := range rows {
		if !r.valid() {
			stats.Skipped++
			continue
		}
		staffID, err := s.dir.StaffByDeputyEmployee(ctx, r.EmployeeID)
		if err != nil {
			if errors.Is(err, ErrUnknownEmployee) {
				stats.Skipped++
				continue
			}
			return stats, err
		}
		outletID, err := s.dir.OutletByOperationalUnit(ctx, r.OperationalUnitID)
		if err != nil {
			if errors.Is(err, ErrOutletNotFound) {
				stats.Skipped++
				continue
			}
			return stats, err
		}

		begin := time.Unix(r.StartTime, 0).In(s.location)
		ts, err := timesheet.New(timesheet.Timesheet{
			DeputyID:     r.ID,
			StaffID:      staffID,
			OutletID:     outletID,
			Date:         time.Date(begin.Year(), begin.Month(), begin.Day(), 0, 0, 0, 0, s.location),
			Start:        begin,
			End:          time.Unix(r.EndTime, 0).In(s.location),
			BreakMinutes: r.BreakSeconds / 60,
			Approved:     r.Approved,
		})
		if err != nil {
			slog.Warn("deputy mirror skipped row", "timesheetId", r.ID, "error", err)
			stats.Skipped++
			continue
		}
		if err := store.UpsertFromDeputy(ctx, ts); err != nil {
			return stats, fmt.Errorf("upsert timesheet %d: %w", r.ID, err)
		}
		stats.Upserted++
	}

	slog.Info("deputy mirror complete", "fetched", stats.Fetched, "upserted", stats.Upserted, "skipped", stats.Skipped)
	return stats, nil
}
