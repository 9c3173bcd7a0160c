package timesheet

import (
	"time"

	"hrpay/internal/domain/money"
	"hrpay/internal/platform/validation"
)

// Timesheet is a worked shift mirrored from Deputy.
type Timesheet struct {
	ID           int64       `json:"id"`
	DeputyID     int64       `json:"deputyId,omitempty"`
	StaffID      int64       `json:"staffId" validate:"required,gt=0"`
	OutletID     int64       `json:"outletId" validate:"required,gt=0"`
	Date         time.Time   `json:"date" validate:"required"`
	Start        time.Time   `json:"start" validate:"required"`
	End          time.Time   `json:"end" validate:"required"`
	BreakMinutes int64       `json:"breakMinutes" validate:"gte=0"`
	HourlyRate   money.Cents `json:"hourlyRate" validate:"gte=0"`
	Approved     bool        `json:"approved"`
}

// New validates t and applies the overnight wrap: an end before the start
// is taken to be on the following day.
func New(t Timesheet) (Timesheet, error) {
	if err := validation.Struct(t); err != nil {
		return Timesheet{}, err
	}
	t.End = WrapEnd(t.Start, t.End)
	return t, nil
}

func WrapEnd(start, end time.Time) time.Time {
	if end.Before(start) {
		return end.Add(24 * time.Hour)
	}
	return end
}

// TotalMinutes is end minus start after the overnight wrap. It can be zero.
func (t Timesheet) TotalMinutes() int64 {
	return int64(WrapEnd(t.Start, t.End).Sub(t.Start) / time.Minute)
}

// DateKey is the civil date the shift belongs to.
func (t Timesheet) DateKey() string {
	return t.Date.Format("2006-01-02")
}

// Overlap is the length of the intersection of [aStart,aEnd) and [bStart,bEnd).
func Overlap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}
