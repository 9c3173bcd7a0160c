package reports

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/payroll"
)

func samplePayslips() []payroll.Payslip {
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 6)
	return []payroll.Payslip{
		{
			ID: 1, StaffID: 7, StaffName: "Aroha Ngata", PeriodStart: start, PeriodEnd: end, Status: payroll.StatusApproved,
			OrdinaryMinutes: 2400, OrdinaryHours: 40, OrdinaryPay: 92600,
			Bonuses:    payroll.Bonuses{VapeDrops: 600},
			Deductions: payroll.Deductions{KiwiSaver: 2796, VendAccount: 1500},
			GrossPay:   93200, NetPay: 88904,
		},
		{
			ID: 2, StaffID: 8, StaffName: "Sam Lee", PeriodStart: start, PeriodEnd: end, Status: payroll.StatusApproved,
			OrdinaryMinutes: 600, OrdinaryHours: 10, OrdinaryPay: 23150,
			GrossPay: 23150, NetPay: 23150,
		},
	}
}

func TestBuildRegisterRowsAndTotals(t *testing.T) {
	data, err := BuildRegister(samplePayslips())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(registerSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, registerHeaders[0], rows[0][0])
	assert.Equal(t, "Aroha Ngata", rows[1][2])
	assert.Equal(t, "Total", rows[3][0])
	assert.Equal(t, "2 payslips", rows[3][2])

	gross, err := f.GetCellValue(registerSheet, "P4")
	require.NoError(t, err)
	assert.Equal(t, "1163.5", gross)
	hours, err := f.GetCellValue(registerSheet, "G4")
	require.NoError(t, err)
	assert.Equal(t, "50", hours)
}

func TestBuildRegisterEmpty(t *testing.T) {
	data, err := BuildRegister(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{registerSheet}, f.GetSheetList())
	rows, err := f.GetRows(registerSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

type listerFunc func(ctx context.Context, f payroll.ListFilter) ([]payroll.Payslip, error)

func (fn listerFunc) List(ctx context.Context, f payroll.ListFilter) ([]payroll.Payslip, error) {
	return fn(ctx, f)
}

func TestRegisterRequiresPermissionAndPeriod(t *testing.T) {
	var got payroll.ListFilter
	svc := NewService(nil, listerFunc(func(_ context.Context, f payroll.ListFilter) ([]payroll.Payslip, error) {
		got = f
		return samplePayslips(), nil
	}))
	period := payroll.Period{Start: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)}

	_, err := svc.Register(context.Background(), auth.Actor{UserID: "u1", Role: auth.RoleStaff}, period)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = svc.Register(context.Background(), auth.Actor{UserID: "u1", Role: auth.RolePayrollAdmin}, payroll.Period{})
	assert.ErrorIs(t, err, payroll.ErrInvalidPeriod)

	data, err := svc.Register(context.Background(), auth.Actor{UserID: "u1", Role: auth.RolePayrollAdmin}, period)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, period.Start, got.PeriodStart)
	assert.Equal(t, period.End, got.PeriodEnd)
}
