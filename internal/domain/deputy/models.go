package deputy

import (
	"context"
	"errors"
	"time"
)

// MaxTimesheetAgeDays is how far back Deputy edits are expected to be quick.
const MaxTimesheetAgeDays = 21

var ErrOutletNotFound = errors.New("outlet not found")

// Row is a Deputy timesheet. Times are UNIX seconds.
type Row struct {
	ID                int64
	EmployeeID        int64
	StartTime         int64
	EndTime           int64
	BreakSeconds      int64
	OperationalUnitID int64
	Approved          bool
}

func (r Row) valid() bool {
	return r.StartTime > 0 && r.EndTime > 0 && r.EndTime > r.StartTime
}

// TimesheetInput is the body for create and update calls.
type TimesheetInput struct {
	EmployeeID        int64
	StartTime         int64
	EndTime           int64
	BreakSeconds      int64
	OperationalUnitID int64
	Comment           string
}

// API is the narrow Deputy surface the reconciler needs.
type API interface {
	TimesheetsForDay(ctx context.Context, employeeID int64, day time.Time) ([]Row, error)
	TimesheetsBetween(ctx context.Context, start, end time.Time) ([]Row, error)
	CreateTimesheet(ctx context.Context, in TimesheetInput) (int64, error)
	UpdateTimesheet(ctx context.Context, id int64, in TimesheetInput) error
	ApproveTimesheet(ctx context.Context, id int64) error
}

// Directory resolves local outlets and staff to their Deputy counterparts.
type Directory interface {
	// DeputyLocationID returns 0 when the outlet exists but is unmapped.
	DeputyLocationID(ctx context.Context, outletID int64) (int64, error)
	StaffByDeputyEmployee(ctx context.Context, employeeID int64) (int64, error)
	OutletByOperationalUnit(ctx context.Context, operationalUnitID int64) (int64, error)
}

// PickedShift is one timesheet the reviewer explicitly selected. Zero
// start or end means the amendment window applies.
type PickedShift struct {
	ID    int64     `json:"id"`
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// Request is one amendment to push into Deputy.
type Request struct {
	AmendmentID      int64
	StaffID          int64
	DeputyEmployeeID int64
	OutletID         int64
	Start            time.Time
	End              time.Time
	Shifts           []PickedShift
}

type Action string

const (
	ActionCreate          Action = "create"
	ActionUpdate          Action = "update"
	ActionReplace         Action = "replace_approved"
	ActionMerge           Action = "merge"
	ActionSelectiveUpdate Action = "selective_update"
)

type Detail struct {
	Action            Action  `json:"action"`
	TimesheetID       int64   `json:"timesheetId,omitempty"`
	OperationalUnitID int64   `json:"operationalUnitId,omitempty"`
	BreakMinutes      int64   `json:"breakMinutes"`
	WasApproved       bool    `json:"wasApproved"`
	ReplacedIDs       []int64 `json:"replacedIds,omitempty"`
	Note              string  `json:"note,omitempty"`
	Error             string  `json:"error,omitempty"`
}

func (d Detail) ok() bool {
	return d.Error == ""
}

// Result is the outcome of one sync attempt. Failures are reported here and
// never returned as errors.
type Result struct {
	Synced        bool     `json:"synced"`
	Action        Action   `json:"action,omitempty"`
	Details       []Detail `json:"details"`
	Warnings      []string `json:"warnings,omitempty"`
	FailureReason string   `json:"failureReason,omitempty"`
}

// Superseded lists the Deputy rows replaced by successful details.
func (r Result) Superseded() []int64 {
	var ids []int64
	for _, d := range r.Details {
		if d.ok() {
			ids = append(ids, d.ReplacedIDs...)
		}
	}
	return ids
}
