package reports

import (
	"context"
	"fmt"
	"time"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/payroll"
)

type Dashboard struct {
	PayslipsCalculated     int `json:"payslipsCalculated"`
	PayslipsReviewed       int `json:"payslipsReviewed"`
	PayslipsAwaitingExport int `json:"payslipsAwaitingExport"`
	AmendmentsPending      int `json:"amendmentsPending"`
	AmendmentsUnsynced     int `json:"amendmentsUnsynced"`
	MonthlyBonusesPending  int `json:"monthlyBonusesPending"`
	VendPending            int `json:"vendPending"`
	VendFailed             int `json:"vendFailed"`
	JobFailuresThisWeek    int `json:"jobFailuresThisWeek"`
}

type JobRun struct {
	ID          string         `json:"id"`
	JobType     string         `json:"jobType"`
	Status      string         `json:"status"`
	Details     map[string]any `json:"details"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

type PayslipLister interface {
	List(ctx context.Context, f payroll.ListFilter) ([]payroll.Payslip, error)
}

type Service struct {
	store    StoreAPI
	payslips PayslipLister
}

func NewService(store StoreAPI, payslips PayslipLister) *Service {
	return &Service{store: store, payslips: payslips}
}

// Register builds the payroll register workbook for payslips whose period
// falls inside period.
func (s *Service) Register(ctx context.Context, actor auth.Actor, period payroll.Period) ([]byte, error) {
	if err := actor.Require(auth.PermReportsRead); err != nil {
		return nil, err
	}
	if err := period.Validate(); err != nil {
		return nil, err
	}
	items, err := s.payslips.List(ctx, payroll.ListFilter{PeriodStart: period.Start, PeriodEnd: period.End, Limit: 10000})
	if err != nil {
		return nil, fmt.Errorf("list payslips: %w", err)
	}
	return BuildRegister(items)
}

func (s *Service) Dashboard(ctx context.Context, actor auth.Actor) (Dashboard, error) {
	if err := actor.Require(auth.PermReportsRead); err != nil {
		return Dashboard{}, err
	}
	return s.store.Dashboard(ctx)
}

func (s *Service) JobRuns(ctx context.Context, actor auth.Actor, filter JobRunFilter, limit, offset int) ([]JobRun, int, error) {
	if err := actor.Require(auth.PermReportsRead); err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountJobRuns(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	runs, err := s.store.ListJobRuns(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

func (s *Service) JobRun(ctx context.Context, actor auth.Actor, id string) (JobRun, error) {
	if err := actor.Require(auth.PermReportsRead); err != nil {
		return JobRun{}, err
	}
	return s.store.JobRunByID(ctx, id)
}
