// Package breakpolicy holds the unpaid-break rules shared by payslip
// calculation and Deputy timesheet sync.
package breakpolicy

const (
	shortShiftMinutes = 5 * 60
	longShiftMinutes  = 12 * 60

	StandardBreakMinutes = 30
	LongBreakMinutes     = 60
)

// StepMinutes returns the unpaid break owed for a shift of the given length:
// none under 5h, 30 minutes from 5h, 60 minutes from 12h.
func StepMinutes(workedMinutes int64) int64 {
	switch {
	case workedMinutes >= longShiftMinutes:
		return LongBreakMinutes
	case workedMinutes >= shortShiftMinutes:
		return StandardBreakMinutes
	default:
		return 0
	}
}

// Shift is the minimal view of a timesheet row the policy needs.
type Shift struct {
	StaffID      int64
	OutletID     int64
	TotalMinutes int64
	BreakMinutes int64
}

type Reason string

const (
	ReasonExplicit   Reason = "explicit_break"
	ReasonPaidOutlet Reason = "paid_break_outlet"
	ReasonPaidStaff  Reason = "paid_break_staff"
	ReasonAlone      Reason = "worked_alone"
	ReasonStep       Reason = "auto_deducted"
)

// Policy carries the paid-break allowlists.
type Policy struct {
	PaidBreakOutlets map[int64]bool
	PaidBreakStaff   map[int64]bool
}

func New(outlets, staff []int64) Policy {
	p := Policy{PaidBreakOutlets: map[int64]bool{}, PaidBreakStaff: map[int64]bool{}}
	for _, id := range outlets {
		p.PaidBreakOutlets[id] = true
	}
	for _, id := range staff {
		p.PaidBreakStaff[id] = true
	}
	return p
}

// Deduction decides how many break minutes come off a shift. A break already
// recorded on the row always wins.
func (p Policy) Deduction(s Shift, workedAlone bool) (int64, Reason) {
	if s.BreakMinutes > 0 {
		return s.BreakMinutes, ReasonExplicit
	}
	if p.PaidBreakOutlets[s.OutletID] {
		return 0, ReasonPaidOutlet
	}
	if p.PaidBreakStaff[s.StaffID] {
		return 0, ReasonPaidStaff
	}
	if workedAlone {
		return 0, ReasonAlone
	}
	return StepMinutes(s.TotalMinutes), ReasonStep
}
