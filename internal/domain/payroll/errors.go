package payroll

import "errors"

var (
	ErrPayslipNotFound   = errors.New("payslip not found")
	ErrInvalidTransition = errors.New("invalid payslip status transition")
	ErrPayslipLocked     = errors.New("payslip is approved or exported and cannot be recalculated")
	ErrInvalidPeriod     = errors.New("period end must not be before period start")
)
