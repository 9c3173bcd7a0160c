package xero

import (
	"fmt"
	"time"

	"hrpay/internal/domain/money"
	"hrpay/internal/domain/payroll"
)

// BuildPayRun turns approved payslips into a draft Xero pay run. Payslips
// whose staff member has no entry in employees are listed in skipped.
func BuildPayRun(calendarID string, period payroll.Period, paymentDate time.Time, payslips []payroll.Payslip, employees map[int64]string, rates EarningsRates) (PayRunRequest, []string, error) {
	if rates.Ordinary == "" {
		return PayRunRequest{}, nil, fmt.Errorf("%w: ordinary", ErrMissingRateCode)
	}
	run := PayRun{
		PayrollCalendarID:     calendarID,
		PayRunPeriodStartDate: period.Start.Format(xeroDate),
		PayRunPeriodEndDate:   period.End.Format(xeroDate),
		PayRunStatus:          "Draft",
		PaymentDate:           paymentDate.Format(xeroDate),
	}
	var skipped []string
	for _, p := range payslips {
		employeeID := employees[p.StaffID]
		if employeeID == "" {
			skipped = append(skipped, fmt.Sprintf("payslip %d: staff %d has no Xero employee", p.ID, p.StaffID))
			continue
		}
		lines, err := earningsLines(p, rates)
		if err != nil {
			return PayRunRequest{}, nil, fmt.Errorf("payslip %d: %w", p.ID, err)
		}
		run.Payslips = append(run.Payslips, PayslipLines{EmployeeID: employeeID, EarningsLines: lines})
	}
	return PayRunRequest{PayRuns: []PayRun{run}}, skipped, nil
}

func earningsLines(p payroll.Payslip, rates EarningsRates) ([]EarningsLine, error) {
	var out []EarningsLine
	add := func(rateID, name string, minutes int64, percent int64) error {
		if minutes <= 0 {
			return nil
		}
		if rateID == "" {
			return fmt.Errorf("%w: %s", ErrMissingRateCode, name)
		}
		out = append(out, EarningsLine{
			EarningsRateID: rateID,
			RatePerUnit:    money.Percent(p.HourlyRate, percent*100).Dollars(),
			NumberOfUnits:  money.Hours(minutes),
		})
		return nil
	}
	if err := add(rates.Ordinary, "ordinary", p.OrdinaryMinutes, OrdinaryPercent); err != nil {
		return nil, err
	}
	if err := add(rates.Overtime, "overtime", p.OvertimeMinutes, OvertimePercent); err != nil {
		return nil, err
	}
	if err := add(rates.NightShift, "night shift", p.NightMinutes, NightLoadingPercent); err != nil {
		return nil, err
	}
	if err := add(rates.PublicHoliday, "public holiday", p.PublicHolidayMinutes, PublicHolidayPercent); err != nil {
		return nil, err
	}
	if bonus := p.Bonuses.Total(); bonus > 0 {
		if rates.Bonus == "" {
			return nil, fmt.Errorf("%w: bonus", ErrMissingRateCode)
		}
		out = append(out, EarningsLine{EarningsRateID: rates.Bonus, FixedAmount: bonus.Dollars()})
	}
	return out, nil
}
