package nzlaw

import "hrpay/internal/domain/money"

const (
	// MinimumWage is the adult minimum hourly rate.
	MinimumWage money.Cents = 2315

	KiwiSaverEmployeeBasisPoints = 300
	KiwiSaverEmployerBasisPoints = 300

	StudentLoanBasisPoints = 1200
	// StudentLoanWeeklyThreshold is the weekly repayment threshold.
	StudentLoanWeeklyThreshold money.Cents = 43200

	PublicHolidayPercent = 150
	OvertimePercent      = 150
	NightLoadingPercent  = 20
	OrdinaryPercent      = 100

	// OvertimeAfterMinutes is the daily ordinary-hours ceiling.
	OvertimeAfterMinutes = 8 * 60
)

// CheckMinimumWage reports whether rate complies and by how much it falls short.
func CheckMinimumWage(rate money.Cents) (bool, money.Cents) {
	if rate >= MinimumWage {
		return true, 0
	}
	return false, MinimumWage - rate
}

// KiwiSaver returns the employee and employer contributions on gross.
func KiwiSaver(gross money.Cents) (employee, employer money.Cents) {
	if gross <= 0 {
		return 0, 0
	}
	return money.Percent(gross, KiwiSaverEmployeeBasisPoints), money.Percent(gross, KiwiSaverEmployerBasisPoints)
}

func StudentLoan(weeklyGross money.Cents) money.Cents {
	return StudentLoanForWeeks(weeklyGross, 1)
}

// StudentLoanForWeeks scales the threshold to a pay period of n weeks.
func StudentLoanForWeeks(gross money.Cents, weeks int) money.Cents {
	if weeks < 1 {
		weeks = 1
	}
	threshold := StudentLoanWeeklyThreshold * money.Cents(weeks)
	if gross <= threshold {
		return 0
	}
	return money.Percent(gross-threshold, StudentLoanBasisPoints)
}
