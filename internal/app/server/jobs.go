package server

import (
	"context"
	"time"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/payroll"
	"hrpay/internal/platform/config"
	"hrpay/internal/platform/jobs"
)

// scheduleJobs registers every background job. Jobs whose upstream is not
// configured are left out so they cannot be triggered by hand either.
func scheduleJobs(cfg config.Config, s *services) error {
	loc := cfg.Location()

	if s.deputy != nil {
		err := s.jobs.Schedule(cfg.DeputyResyncSchedule, jobs.JobDeputyResync, func(ctx context.Context) (any, error) {
			return s.amendments.ResyncFailed(ctx, resyncBatch)
		})
		if err != nil {
			return err
		}
		err = s.jobs.Schedule(cfg.TimesheetMirrorSchedule, jobs.JobTimesheetSync, func(ctx context.Context) (any, error) {
			end := time.Now().In(loc)
			start := end.AddDate(0, 0, -cfg.TimesheetMirrorDays)
			return s.deputy.Mirror(ctx, s.timesheets, start, end)
		})
		if err != nil {
			return err
		}
	}

	if cfg.VendConfigured() {
		err := s.jobs.Schedule(cfg.VendRetrySchedule, jobs.JobVendRetry, func(ctx context.Context) (any, error) {
			return s.vend.RetryAllFailed(ctx, auth.System)
		})
		if err != nil {
			return err
		}
		err = s.jobs.Schedule("", jobs.JobVendAllocate, func(ctx context.Context) (any, error) {
			return s.vend.AllocateAllPending(ctx, auth.System)
		})
		if err != nil {
			return err
		}
	}

	return s.jobs.Schedule(cfg.PayslipBatchSchedule, jobs.JobPayslipBatch, func(ctx context.Context) (any, error) {
		return s.payroll.CalculateAll(ctx, auth.System, payroll.PreviousWeek(time.Now().In(loc)))
	})
}
