package payroll

type Status string

const (
	StatusCalculated Status = "calculated"
	StatusReviewed   Status = "reviewed"
	StatusApproved   Status = "approved"
	StatusExported   Status = "exported"
)

const (
	WarningInvalidTimesheet   = "invalid_timesheet"
	WarningNoWorkedMinutes    = "no_worked_minutes"
	WarningBelowMinimumWage   = "below_minimum_wage"
	WarningNegativeNet        = "negative_net"
	WarningMissingBankAccount = "missing_bank_account"
	WarningNoTimesheets       = "no_timesheets"
)

// advisoryLockNamespace is the first key of pg_advisory_xact_lock for
// per-staff payslip calculation.
const advisoryLockNamespace int32 = 7301
