package payroll

import (
	"time"

	"hrpay/internal/domain/money"
)

// Period is an inclusive range of civil dates.
type Period struct {
	Start time.Time `json:"periodStart"`
	End   time.Time `json:"periodEnd"`
}

func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() || p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Weeks is the number of pay weeks the period spans, rounded up.
func (p Period) Weeks() int {
	days := int(p.End.Sub(p.Start).Hours()/24) + 1
	return (days + 6) / 7
}

// Exclusive returns the instant after the last day of the period.
func (p Period) Exclusive() time.Time {
	return p.End.AddDate(0, 0, 1)
}

// PreviousWeek is the Monday to Sunday week before the one containing now,
// as civil dates in now's location.
func PreviousWeek(now time.Time) Period {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset-7)
	return Period{Start: monday, End: monday.AddDate(0, 0, 6)}
}

type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Date    string `json:"date,omitempty"`
}

// Line is the per-row breakdown kept for the payslip PDF and for support.
type Line struct {
	TimesheetID          int64       `json:"timesheetId,omitempty"`
	Date                 string      `json:"date"`
	Start                time.Time   `json:"start"`
	End                  time.Time   `json:"end"`
	TotalMinutes         int64       `json:"totalMinutes"`
	BreakMinutes         int64       `json:"breakMinutes"`
	BreakReason          string      `json:"breakReason"`
	WorkedMinutes        int64       `json:"workedMinutes"`
	OrdinaryMinutes      int64       `json:"ordinaryMinutes"`
	OvertimeMinutes      int64       `json:"overtimeMinutes"`
	NightMinutes         int64       `json:"nightMinutes"`
	PublicHolidayMinutes int64       `json:"publicHolidayMinutes"`
	Rate                 money.Cents `json:"rate"`
	Holiday              string      `json:"holiday,omitempty"`
}

// Earnings is the engine output. Pay fields are rounded once from exact sums.
type Earnings struct {
	WorkedMinutes        int64       `json:"workedMinutes"`
	OrdinaryMinutes      int64       `json:"ordinaryMinutes"`
	OvertimeMinutes      int64       `json:"overtimeMinutes"`
	NightMinutes         int64       `json:"nightMinutes"`
	PublicHolidayMinutes int64       `json:"publicHolidayMinutes"`
	OrdinaryPay          money.Cents `json:"ordinaryPay"`
	OvertimePay          money.Cents `json:"overtimePay"`
	NightPay             money.Cents `json:"nightPay"`
	PublicHolidayPay     money.Cents `json:"publicHolidayPay"`
	ActingPay            money.Cents `json:"actingPay"`
	AlternativeHolidays  int         `json:"alternativeHolidays"`
	Rate                 money.Cents `json:"rate"`
	Lines                []Line      `json:"lines"`
	Warnings             []Warning   `json:"warnings,omitempty"`
}

func (e Earnings) WagePay() money.Cents {
	return e.OrdinaryPay + e.OvertimePay + e.NightPay + e.PublicHolidayPay
}

type Bonuses struct {
	VapeDrops     money.Cents `json:"vapeDrops"`
	VapeDropCount int         `json:"vapeDropCount"`
	GoogleReviews money.Cents `json:"googleReviews"`
	ReviewCount   int         `json:"googleReviewCount"`
	MonthlyBonus  money.Cents `json:"monthlyBonus"`
	Commission    money.Cents `json:"commission"`
	ActingPay     money.Cents `json:"actingPay"`
}

func (b Bonuses) Total() money.Cents {
	return b.VapeDrops + b.GoogleReviews + b.MonthlyBonus + b.Commission + b.ActingPay
}

type Deductions struct {
	UnpaidLeave       money.Cents `json:"unpaidLeave"`
	Advances          money.Cents `json:"advances"`
	StudentLoan       money.Cents `json:"studentLoan"`
	KiwiSaver         money.Cents `json:"kiwiSaver"`
	KiwiSaverEmployer money.Cents `json:"kiwiSaverEmployer"`
	VendAccount       money.Cents `json:"vendAccount"`
	Other             money.Cents `json:"other"`
}

// Total is what comes out of the employee's pay. The employer KiwiSaver
// contribution is reported but not deducted.
func (d Deductions) Total() money.Cents {
	return d.UnpaidLeave + d.Advances + d.StudentLoan + d.KiwiSaver + d.VendAccount + d.Other
}

type Payslip struct {
	ID                   int64       `json:"id"`
	StaffID              int64       `json:"staffId"`
	StaffName            string      `json:"staffName,omitempty"`
	PeriodStart          time.Time   `json:"periodStart"`
	PeriodEnd            time.Time   `json:"periodEnd"`
	HourlyRate           money.Cents `json:"hourlyRate"`
	OrdinaryMinutes      int64       `json:"ordinaryMinutes"`
	OvertimeMinutes      int64       `json:"overtimeMinutes"`
	NightMinutes         int64       `json:"nightMinutes"`
	PublicHolidayMinutes int64       `json:"publicHolidayMinutes"`
	OrdinaryHours        float64     `json:"ordinaryHours"`
	OvertimeHours        float64     `json:"overtimeHours"`
	NightHours           float64     `json:"nightHours"`
	PublicHolidayHours   float64     `json:"publicHolidayHours"`
	OrdinaryPay          money.Cents `json:"ordinaryPay"`
	OvertimePay          money.Cents `json:"overtimePay"`
	NightPay             money.Cents `json:"nightPay"`
	PublicHolidayPay     money.Cents `json:"publicHolidayPay"`
	Bonuses              Bonuses     `json:"bonuses"`
	Deductions           Deductions  `json:"deductions"`
	GrossPay             money.Cents `json:"grossPay"`
	TotalDeductions      money.Cents `json:"totalDeductions"`
	NetPay               money.Cents `json:"netPay"`
	AlternativeHolidays  int         `json:"alternativeHolidays"`
	Status               Status      `json:"status"`
	ExportedToBank       bool        `json:"exportedToBank"`
	Warnings             []Warning   `json:"warnings"`
	Lines                []Line      `json:"lines,omitempty"`
	CalculatedBy         string      `json:"calculatedBy"`
	CalculatedAt         time.Time   `json:"calculatedAt"`
	ReviewedBy           string      `json:"reviewedBy,omitempty"`
	ApprovedBy           string      `json:"approvedBy,omitempty"`
	ApprovedAt           *time.Time  `json:"approvedAt,omitempty"`
}

// fillHours derives the rendered hour fields from stored minutes.
func (p *Payslip) fillHours() {
	p.OrdinaryHours = money.Hours(p.OrdinaryMinutes)
	p.OvertimeHours = money.Hours(p.OvertimeMinutes)
	p.NightHours = money.Hours(p.NightMinutes)
	p.PublicHolidayHours = money.Hours(p.PublicHolidayMinutes)
}

func (p Payslip) Period() Period {
	return Period{Start: p.PeriodStart, End: p.PeriodEnd}
}

type ListFilter struct {
	StaffID     int64
	PeriodStart time.Time
	PeriodEnd   time.Time
	Status      Status
	Limit       int
	Offset      int
}

// BatchResult reports a CalculateAll run. One staff failure does not stop
// the others.
type BatchResult struct {
	Calculated []int64          `json:"calculated"`
	Failed     map[int64]string `json:"failed"`
}
