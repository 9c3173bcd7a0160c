package payroll

import (
	"context"

	"hrpay/internal/domain/bonus"
	"hrpay/internal/domain/money"
)

type StoreAPI interface {
	Get(ctx context.Context, id int64) (Payslip, error)
	List(ctx context.Context, f ListFilter) ([]Payslip, error)
	Count(ctx context.Context, f ListFilter) (int, error)
	// Transition moves a payslip from one of from to to. It returns
	// ErrInvalidTransition when the current status is not in from.
	Transition(ctx context.Context, id int64, from []Status, to Status, actorID string) (Payslip, error)
}

// Tx is the unit of work one payslip calculation runs in. Everything read
// through it after LockStaff is consistent for that staff member.
type Tx interface {
	LockStaff(ctx context.Context, staffID int64) error
	// Existing returns the payslip already stored for the period, or
	// ErrPayslipNotFound.
	Existing(ctx context.Context, staffID int64, period Period) (Payslip, error)
	BonusSummary(ctx context.Context, staffID int64, period Period, payslipID int64) (bonus.Summary, error)
	MarkBonusesPaid(ctx context.Context, staffID, payslipID int64, period Period) (bonus.Claimed, error)
	Advances(ctx context.Context, staffID int64, period Period) (money.Cents, error)
	PendingVendDeductions(ctx context.Context, staffID int64) (money.Cents, error)
	UnpaidLeaveMinutes(ctx context.Context, staffID int64, period Period) (int64, error)
	UpsertPayslip(ctx context.Context, p Payslip) (Payslip, error)
}

type Transactor interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
