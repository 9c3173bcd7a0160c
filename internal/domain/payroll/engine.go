package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"hrpay/internal/domain/amendment"
	"hrpay/internal/domain/breakpolicy"
	"hrpay/internal/domain/money"
	"hrpay/internal/domain/nzlaw"
	"hrpay/internal/domain/timesheet"
)

const (
	nightStartHour = 22
	nightEndHour   = 6
)

// ColleagueChecker answers whether a shift was worked with nobody else on
// site. timesheet.Store and timesheet.Roster both satisfy it.
type ColleagueChecker interface {
	WorkedAlone(ctx context.Context, t timesheet.Timesheet) (bool, error)
}

// Engine turns timesheet rows into earnings. It holds no per-run state and is
// safe for concurrent use.
type Engine struct {
	Breaks   breakpolicy.Policy
	Calendar *nzlaw.Calendar

	ActingPayStaff        map[int64]bool
	ActingPayCentsPerHour money.Cents
	CommissionStaff       map[int64]bool
	CommissionBasisPoints int64
}

type EngineConfig struct {
	Breaks                breakpolicy.Policy
	Calendar              *nzlaw.Calendar
	ActingPayStaffIDs     []int64
	ActingPayCentsPerHour int64
	CommissionStaffIDs    []int64
	CommissionBasisPoints int64
}

func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		Breaks:                cfg.Breaks,
		Calendar:              cfg.Calendar,
		ActingPayStaff:        map[int64]bool{},
		ActingPayCentsPerHour: money.Cents(cfg.ActingPayCentsPerHour),
		CommissionStaff:       map[int64]bool{},
		CommissionBasisPoints: cfg.CommissionBasisPoints,
	}
	if e.Calendar == nil {
		e.Calendar = nzlaw.DefaultCalendar()
	}
	for _, id := range cfg.ActingPayStaffIDs {
		e.ActingPayStaff[id] = true
	}
	for _, id := range cfg.CommissionStaffIDs {
		e.CommissionStaff[id] = true
	}
	return e
}

type EngineInput struct {
	StaffID  int64
	BaseRate money.Cents
	Workdays []time.Weekday
	Rows     []timesheet.Timesheet
}

// AdjustBaseRate lifts a rate below the adult minimum wage.
func AdjustBaseRate(rate money.Cents) (money.Cents, bool) {
	if ok, _ := nzlaw.CheckMinimumWage(rate); ok {
		return rate, false
	}
	return nzlaw.MinimumWage, true
}

// Calculate runs every row through the break, holiday, overtime and night
// rules. Rows are processed in start order so the daily ordinary ceiling is
// consumed deterministically.
func (e *Engine) Calculate(ctx context.Context, in EngineInput, checker ColleagueChecker) (Earnings, error) {
	rows := append([]timesheet.Timesheet(nil), in.Rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Start.Equal(rows[j].Start) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].Start.Before(rows[j].Start)
	})

	var out Earnings
	var ordinary, overtime, night, holiday, acting money.Exact
	dailyOrdinary := map[string]int64{}
	altDates := map[string]bool{}
	belowMinimum := false

	out.Rate = in.BaseRate
	if adjusted, lifted := AdjustBaseRate(in.BaseRate); lifted {
		out.Rate = adjusted
		belowMinimum = true
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return Earnings{}, err
		}
		date := row.DateKey()
		total := row.TotalMinutes()
		if total <= 0 {
			slog.Warn("payslip skipped invalid timesheet", "staffId", in.StaffID, "timesheetId", row.ID, "date", date)
			out.Warnings = append(out.Warnings, Warning{
				Code:    WarningInvalidTimesheet,
				Message: fmt.Sprintf("timesheet %d has a non-positive duration", row.ID),
				Date:    date,
			})
			continue
		}

		breakMin, reason, err := e.breakFor(ctx, row, total, checker)
		if err != nil {
			return Earnings{}, fmt.Errorf("break check for timesheet %d: %w", row.ID, err)
		}
		worked := total - breakMin
		if worked <= 0 {
			slog.Warn("payslip skipped timesheet with no worked minutes", "staffId", in.StaffID, "timesheetId", row.ID, "date", date)
			out.Warnings = append(out.Warnings, Warning{
				Code:    WarningNoWorkedMinutes,
				Message: fmt.Sprintf("timesheet %d has no worked minutes after a %d minute break", row.ID, breakMin),
				Date:    date,
			})
			continue
		}

		rate := out.Rate
		if row.HourlyRate > 0 {
			var lifted bool
			rate, lifted = AdjustBaseRate(row.HourlyRate)
			belowMinimum = belowMinimum || lifted
		}

		line := Line{
			TimesheetID:   row.ID,
			Date:          date,
			Start:         row.Start,
			End:           timesheet.WrapEnd(row.Start, row.End),
			TotalMinutes:  total,
			BreakMinutes:  breakMin,
			BreakReason:   string(reason),
			WorkedMinutes: worked,
			Rate:          rate,
		}

		if e.Calendar.IsPublicHoliday(row.Date) {
			line.Holiday = e.Calendar.HolidayName(row.Date)
			line.PublicHolidayMinutes = worked
			holiday += money.Wage(rate, worked, nzlaw.PublicHolidayPercent)
			if e.earnsAlternative(row.Date, in.Workdays) {
				altDates[date] = true
			}
		} else {
			remaining := max(0, nzlaw.OvertimeAfterMinutes-dailyOrdinary[date])
			line.OrdinaryMinutes = min(worked, remaining)
			line.OvertimeMinutes = worked - line.OrdinaryMinutes
			dailyOrdinary[date] += line.OrdinaryMinutes
			ordinary += money.Wage(rate, line.OrdinaryMinutes, nzlaw.OrdinaryPercent)
			overtime += money.Wage(rate, line.OvertimeMinutes, nzlaw.OvertimePercent)
		}

		line.NightMinutes = NightMinutes(line.Start, line.End, total, worked)
		night += money.Wage(rate, line.NightMinutes, nzlaw.NightLoadingPercent)

		if e.ActingPayStaff[in.StaffID] {
			acting += money.Wage(e.ActingPayCentsPerHour, worked, nzlaw.OrdinaryPercent)
		}

		out.WorkedMinutes += worked
		out.OrdinaryMinutes += line.OrdinaryMinutes
		out.OvertimeMinutes += line.OvertimeMinutes
		out.NightMinutes += line.NightMinutes
		out.PublicHolidayMinutes += line.PublicHolidayMinutes
		out.Lines = append(out.Lines, line)
	}

	if belowMinimum {
		out.Warnings = append(out.Warnings, Warning{
			Code:    WarningBelowMinimumWage,
			Message: fmt.Sprintf("rate below minimum wage, paid at %s", nzlaw.MinimumWage),
		})
	}
	if len(rows) == 0 {
		out.Warnings = append(out.Warnings, Warning{Code: WarningNoTimesheets, Message: "no timesheets in period"})
	}

	out.OrdinaryPay = ordinary.Round()
	out.OvertimePay = overtime.Round()
	out.NightPay = night.Round()
	out.PublicHolidayPay = holiday.Round()
	out.ActingPay = acting.Round()
	out.AlternativeHolidays = len(altDates)
	return out, nil
}

// breakFor only asks the checker when the outcome depends on it.
func (e *Engine) breakFor(ctx context.Context, row timesheet.Timesheet, total int64, checker ColleagueChecker) (int64, breakpolicy.Reason, error) {
	shift := breakpolicy.Shift{
		StaffID:      row.StaffID,
		OutletID:     row.OutletID,
		TotalMinutes: total,
		BreakMinutes: row.BreakMinutes,
	}
	breakMin, reason := e.Breaks.Deduction(shift, false)
	if reason != breakpolicy.ReasonStep || breakMin == 0 || checker == nil {
		return breakMin, reason, nil
	}
	alone, err := checker.WorkedAlone(ctx, row)
	if err != nil {
		return 0, "", err
	}
	if alone {
		breakMin, reason = e.Breaks.Deduction(shift, true)
	}
	return breakMin, reason, nil
}

// earnsAlternative treats an empty workday list as working every day.
func (e *Engine) earnsAlternative(date time.Time, workdays []time.Weekday) bool {
	if len(workdays) == 0 {
		return e.Calendar.IsPublicHoliday(date)
	}
	return e.Calendar.IsEntitledToAlternativeHoliday(date, workdays)
}

// NightMinutes is the part of [start, end) inside a 22:00-06:00 window,
// reduced by the break in proportion to worked/total and clamped to worked.
func NightMinutes(start, end time.Time, total, worked int64) int64 {
	if total <= 0 || worked <= 0 || !end.After(start) {
		return 0
	}
	var raw time.Duration
	loc := start.Location()
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -1)
	for !day.After(end) {
		windowStart := time.Date(day.Year(), day.Month(), day.Day(), nightStartHour, 0, 0, 0, loc)
		windowEnd := time.Date(day.Year(), day.Month(), day.Day()+1, nightEndHour, 0, 0, 0, loc)
		raw += timesheet.Overlap(start, end, windowStart, windowEnd)
		day = day.AddDate(0, 0, 1)
	}
	rawMin := int64(raw / time.Minute)
	scaled := (rawMin*worked + total/2) / total
	return min(max(scaled, 0), worked)
}

// Commission is the configured share of a staff member's sales, or zero for
// staff not on commission.
func (e *Engine) Commission(staffID int64, sales money.Cents) money.Cents {
	if !e.CommissionStaff[staffID] || sales <= 0 {
		return 0
	}
	return money.Percent(sales, e.CommissionBasisPoints)
}

// ApplyAmendments overlays approved amendments on the mirrored rows. An
// amendment whose original start matches a row moves that row; otherwise it
// adds a new row. Amendments already synced to Deputy are skipped: the mirror
// carries their effect.
func ApplyAmendments(rows []timesheet.Timesheet, amendments []amendment.Amendment) []timesheet.Timesheet {
	out := append([]timesheet.Timesheet(nil), rows...)
	index := make(map[string]int, len(out))
	for i, r := range out {
		key := r.Start.Format(amendment.MatchKeyLayout)
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}
	for _, a := range amendments {
		if a.Status != amendment.StatusApproved || a.SyncedToDeputy {
			continue
		}
		start := a.NewStart
		date := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
		if i, ok := index[a.MatchKey()]; ok {
			out[i].Date = date
			out[i].Start = a.NewStart
			out[i].End = a.NewEnd
			out[i].BreakMinutes = 0
			if a.OutletID > 0 {
				out[i].OutletID = a.OutletID
			}
			continue
		}
		out = append(out, timesheet.Timesheet{
			StaffID:  a.StaffID,
			OutletID: a.OutletID,
			Date:     date,
			Start:    a.NewStart,
			End:      a.NewEnd,
			Approved: true,
		})
	}
	return out
}
