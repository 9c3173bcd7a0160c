package reports

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"hrpay/internal/domain/money"
	"hrpay/internal/domain/payroll"
)

const registerSheet = "Register"

var registerHeaders = []string{
	"Payslip", "Staff ID", "Name", "Period Start", "Period End", "Status",
	"Ordinary Hours", "Overtime Hours", "Night Hours", "Public Holiday Hours",
	"Ordinary Pay", "Overtime Pay", "Night Pay", "Public Holiday Pay", "Bonuses",
	"Gross", "Other Deductions", "KiwiSaver", "Student Loan", "Vend Account", "Net",
	"Exported",
}

// BuildRegister renders one row per payslip and a totals row. Money columns
// are written as dollars.
func BuildRegister(payslips []payroll.Payslip) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(registerSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	for i, header := range registerHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(registerSheet, cell, header); err != nil {
			return nil, err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(registerHeaders), 1)
	if err := f.SetCellStyle(registerSheet, "A1", last, bold); err != nil {
		return nil, err
	}

	var (
		ordMin, otMin, nightMin, phMin     int64
		ord, ot, night, ph, bonuses, gross money.Cents
		other, kiwi, loan, vendAcct, net   money.Cents
	)
	row := 2
	for _, p := range payslips {
		rowOther := p.Deductions.UnpaidLeave + p.Deductions.Advances + p.Deductions.Other
		values := []any{
			p.ID, p.StaffID, p.StaffName,
			p.PeriodStart.Format("2006-01-02"), p.PeriodEnd.Format("2006-01-02"), string(p.Status),
			p.OrdinaryHours, p.OvertimeHours, p.NightHours, p.PublicHolidayHours,
			p.OrdinaryPay.Dollars(), p.OvertimePay.Dollars(), p.NightPay.Dollars(), p.PublicHolidayPay.Dollars(),
			p.Bonuses.Total().Dollars(), p.GrossPay.Dollars(), rowOther.Dollars(),
			p.Deductions.KiwiSaver.Dollars(), p.Deductions.StudentLoan.Dollars(), p.Deductions.VendAccount.Dollars(),
			p.NetPay.Dollars(), p.ExportedToBank,
		}
		if err := writeRow(f, row, values); err != nil {
			return nil, err
		}
		row++

		ordMin += p.OrdinaryMinutes
		otMin += p.OvertimeMinutes
		nightMin += p.NightMinutes
		phMin += p.PublicHolidayMinutes
		ord += p.OrdinaryPay
		ot += p.OvertimePay
		night += p.NightPay
		ph += p.PublicHolidayPay
		bonuses += p.Bonuses.Total()
		gross += p.GrossPay
		other += rowOther
		kiwi += p.Deductions.KiwiSaver
		loan += p.Deductions.StudentLoan
		vendAcct += p.Deductions.VendAccount
		net += p.NetPay
	}

	totalRow := []any{
		"Total", nil, fmt.Sprintf("%d payslips", len(payslips)), nil, nil, nil,
		money.Hours(ordMin), money.Hours(otMin), money.Hours(nightMin), money.Hours(phMin),
		ord.Dollars(), ot.Dollars(), night.Dollars(), ph.Dollars(),
		bonuses.Dollars(), gross.Dollars(), other.Dollars(),
		kiwi.Dollars(), loan.Dollars(), vendAcct.Dollars(),
		net.Dollars(), nil,
	}
	if err := writeRow(f, row, totalRow); err != nil {
		return nil, err
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	end, _ := excelize.CoordinatesToCellName(len(registerHeaders), row)
	if err := f.SetCellStyle(registerSheet, first, end, bold); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(registerSheet, "C", "C", 24); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write register: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, values []any) error {
	for col, v := range values {
		if v == nil {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		if err := f.SetCellValue(registerSheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}
