package xero

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpay/internal/domain/payroll"
)

var rates = EarningsRates{Ordinary: "ord", Overtime: "ot", NightShift: "night", PublicHoliday: "ph", Bonus: "bonus"}

func date(m time.Month, d int) time.Time { return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC) }

func TestBuildPayRunEarningsLines(t *testing.T) {
	period := payroll.Period{Start: date(3, 3), End: date(3, 16)}
	slips := []payroll.Payslip{
		{
			ID: 11, StaffID: 7, HourlyRate: 2500,
			OrdinaryMinutes: 2400, OvertimeMinutes: 90, NightMinutes: 120,
			Bonuses: payroll.Bonuses{VapeDrops: 600, MonthlyBonus: 400},
		},
		{ID: 12, StaffID: 8, HourlyRate: 2400, OrdinaryMinutes: 600},
	}

	req, skipped, err := BuildPayRun("cal-1", period, date(3, 19), slips, map[int64]string{7: "emp-7"}, rates)
	require.NoError(t, err)
	require.Len(t, req.PayRuns, 1)
	run := req.PayRuns[0]
	assert.Equal(t, "Draft", run.PayRunStatus)
	assert.Equal(t, "cal-1", run.PayrollCalendarID)
	assert.Equal(t, "2025-03-03T00:00:00", run.PayRunPeriodStartDate)
	assert.Equal(t, "2025-03-16T00:00:00", run.PayRunPeriodEndDate)
	assert.Equal(t, "2025-03-19T00:00:00", run.PaymentDate)

	require.Len(t, run.Payslips, 1)
	assert.Equal(t, "emp-7", run.Payslips[0].EmployeeID)
	assert.Equal(t, []EarningsLine{
		{EarningsRateID: "ord", RatePerUnit: 25, NumberOfUnits: 40},
		{EarningsRateID: "ot", RatePerUnit: 37.5, NumberOfUnits: 1.5},
		{EarningsRateID: "night", RatePerUnit: 5, NumberOfUnits: 2},
		{EarningsRateID: "bonus", FixedAmount: 10},
	}, run.Payslips[0].EarningsLines)

	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0], "staff 8")
}

func TestBuildPayRunPublicHoliday(t *testing.T) {
	slips := []payroll.Payslip{{ID: 1, StaffID: 7, HourlyRate: 2315, PublicHolidayMinutes: 480}}
	req, _, err := BuildPayRun("cal", payroll.Period{Start: date(12, 22), End: date(12, 28)}, date(12, 31), slips, map[int64]string{7: "e"}, rates)
	require.NoError(t, err)
	assert.Equal(t, []EarningsLine{{EarningsRateID: "ph", RatePerUnit: 34.73, NumberOfUnits: 8}}, req.PayRuns[0].Payslips[0].EarningsLines)
}

func TestBuildPayRunMissingRate(t *testing.T) {
	slips := []payroll.Payslip{{ID: 1, StaffID: 7, HourlyRate: 2500, OvertimeMinutes: 60, OrdinaryMinutes: 480}}
	_, _, err := BuildPayRun("cal", payroll.Period{Start: date(3, 3), End: date(3, 9)}, date(3, 12), slips, map[int64]string{7: "e"}, EarningsRates{Ordinary: "ord"})
	assert.ErrorIs(t, err, ErrMissingRateCode)

	_, _, err = BuildPayRun("cal", payroll.Period{}, time.Time{}, nil, nil, EarningsRates{})
	assert.ErrorIs(t, err, ErrMissingRateCode)
}
