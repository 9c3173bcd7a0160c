package payroll

import (
	"hrpay/internal/domain/money"
	"hrpay/internal/domain/nzlaw"
)

// DeductionInput is everything the deduction step reads besides gross pay.
type DeductionInput struct {
	Rate               money.Cents
	UnpaidLeaveMinutes int64
	Advances           money.Cents
	VendAccount        money.Cents
	Other              money.Cents
	KiwiSaverEnrolled  bool
	StudentLoan        bool
	Weeks              int
}

// ComputeDeductions applies statutory and voluntary deductions to gross.
func ComputeDeductions(gross money.Cents, in DeductionInput) Deductions {
	d := Deductions{
		UnpaidLeave: money.Wage(in.Rate, in.UnpaidLeaveMinutes, nzlaw.OrdinaryPercent).Round(),
		Advances:    in.Advances,
		VendAccount: in.VendAccount,
		Other:       in.Other,
	}
	if in.KiwiSaverEnrolled {
		d.KiwiSaver, d.KiwiSaverEmployer = nzlaw.KiwiSaver(gross)
	}
	if in.StudentLoan {
		d.StudentLoan = nzlaw.StudentLoanForWeeks(gross, in.Weeks)
	}
	return d
}
