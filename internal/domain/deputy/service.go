package deputy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"hrpay/internal/domain/breakpolicy"
)

type Service struct {
	api      API
	dir      Directory
	location *time.Location
	now      func() time.Time
}

func NewService(api API, dir Directory, location *time.Location) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{api: api, dir: dir, location: location, now: time.Now}
}

// PickBest returns the valid row with the largest overlap with [start, end).
// Equal overlaps go to the lowest Deputy ID. Rows with no overlap never win.
func PickBest(rows []Row, start, end int64) (Row, bool) {
	var best Row
	var bestOverlap int64
	found := false
	for _, r := range rows {
		if !r.valid() {
			continue
		}
		overlap := min(end, r.EndTime) - max(start, r.StartTime)
		if overlap <= 0 {
			continue
		}
		if !found || overlap > bestOverlap || (overlap == bestOverlap && r.ID < best.ID) {
			best, bestOverlap, found = r, overlap, true
		}
	}
	return best, found
}

// covered returns the rows lying entirely inside [start, end), ordered by ID.
func covered(rows []Row, start, end int64) []Row {
	var out []Row
	for _, r := range rows {
		if r.StartTime <= 0 || r.EndTime <= 0 {
			continue
		}
		if start <= r.StartTime && end >= r.EndTime {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func breakFor(start, end int64) int64 {
	return breakpolicy.StepMinutes(max(0, end-start) / 60)
}

// UpdateTimesheet moves one Deputy row to a new window. Approved rows are
// locked in Deputy, so a replacement is created and approved instead.
func (s *Service) UpdateTimesheet(ctx context.Context, row Row, start, end int64, overrideBreak *int64) Detail {
	if row.ID <= 0 || row.OperationalUnitID <= 0 {
		return Detail{Action: ActionUpdate, Error: "Deputy row missing Id or OperationalUnit ID"}
	}
	breakMin := breakFor(start, end)
	if overrideBreak != nil {
		breakMin = max(0, *overrideBreak)
	}
	in := TimesheetInput{
		EmployeeID:        row.EmployeeID,
		StartTime:         start,
		EndTime:           end,
		BreakSeconds:      breakMin * 60,
		OperationalUnitID: row.OperationalUnitID,
	}

	if row.Approved {
		in.Comment = fmt.Sprintf("Replaced approved timesheet via payroll amendment (original ID: %d)", row.ID)
		newID, err := s.api.CreateTimesheet(ctx, in)
		if err != nil {
			return Detail{Action: ActionReplace, Error: "Cannot update approved timesheet: " + err.Error()}
		}
		if newID <= 0 {
			return Detail{Action: ActionReplace, Error: "Failed to create replacement timesheet for approved timesheet"}
		}
		if err := s.api.ApproveTimesheet(ctx, newID); err != nil {
			return Detail{Action: ActionReplace, TimesheetID: newID, Error: "Created replacement but approval failed: " + err.Error()}
		}
		slog.Info("deputy approved timesheet superseded", "oldTimesheetId", row.ID, "newTimesheetId", newID)
		return Detail{
			Action:            ActionReplace,
			TimesheetID:       newID,
			OperationalUnitID: row.OperationalUnitID,
			BreakMinutes:      breakMin,
			WasApproved:       true,
			ReplacedIDs:       []int64{row.ID},
		}
	}

	in.Comment = "Auto via payroll: amendment commit"
	if err := s.api.UpdateTimesheet(ctx, row.ID, in); err != nil {
		return Detail{Action: ActionUpdate, TimesheetID: row.ID, Error: "Failed to update timesheet: " + err.Error()}
	}
	return Detail{
		Action:            ActionUpdate,
		TimesheetID:       row.ID,
		OperationalUnitID: row.OperationalUnitID,
		BreakMinutes:      breakMin,
	}
}

// Sync pushes one amendment window into Deputy.
func (s *Service) Sync(ctx context.Context, req Request) Result {
	res := Result{Details: []Detail{}}
	start, end := req.Start.Unix(), req.End.Unix()
	slog.Info("deputy sync amendment", "amendmentId", req.AmendmentID, "staffId", req.StaffID,
		"start", req.Start, "end", req.End)

	if req.DeputyEmployeeID <= 0 {
		return s.fail(res, "Employee has no Deputy ID linked")
	}
	if end <= start {
		return s.fail(res, "Amendment window is empty")
	}

	day := req.Start.In(s.location)
	if age := s.now().Sub(req.Start); age > MaxTimesheetAgeDays*24*time.Hour {
		warning := fmt.Sprintf("Amendment is %.1f days old - Deputy API may be slow", age.Hours()/24)
		slog.Warn("deputy sync old amendment", "amendmentId", req.AmendmentID, "ageDays", age.Hours()/24)
		res.Warnings = append(res.Warnings, warning)
	}

	rows, err := s.api.TimesheetsForDay(ctx, req.DeputyEmployeeID, day)
	if err != nil {
		return s.fail(res, "Deputy API timeout or error: "+err.Error())
	}

	if len(req.Shifts) > 0 {
		return s.syncPicked(ctx, req, rows, res)
	}

	if len(rows) == 0 {
		return s.createFor(ctx, req, res)
	}

	if cov := covered(rows, start, end); len(cov) >= 2 {
		return s.merge(ctx, req, cov, res)
	}

	best, ok := PickBest(rows, start, end)
	if !ok {
		return s.fail(res, fmt.Sprintf("No overlapping timesheet for window %s-%s (found %d timesheets)",
			req.Start.In(s.location).Format("15:04"), req.End.In(s.location).Format("15:04"), len(rows)))
	}
	detail := s.UpdateTimesheet(ctx, best, start, end, nil)
	res.Action = detail.Action
	res.Details = append(res.Details, detail)
	if !detail.ok() {
		return s.fail(res, detail.Error)
	}
	res.Synced = true
	return res
}

func (s *Service) syncPicked(ctx context.Context, req Request, rows []Row, res Result) Result {
	res.Action = ActionSelectiveUpdate
	byID := make(map[int64]Row, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	for _, p := range req.Shifts {
		row, ok := byID[p.ID]
		if !ok {
			continue
		}
		start, end := req.Start, req.End
		if !p.Start.IsZero() {
			start = p.Start
		}
		if !p.End.IsZero() {
			end = p.End
		}
		if !end.After(start) {
			continue
		}
		res.Details = append(res.Details, s.UpdateTimesheet(ctx, row, start.Unix(), end.Unix(), nil))
	}
	if len(res.Details) == 0 {
		return s.fail(res, "No valid multi-shift timesheets found to update")
	}
	var failed []string
	for _, d := range res.Details {
		if !d.ok() {
			failed = append(failed, d.Error)
		}
	}
	if len(failed) == len(res.Details) {
		return s.fail(res, strings.Join(failed, "; "))
	}
	res.Synced = true
	return res
}

func (s *Service) createFor(ctx context.Context, req Request, res Result) Result {
	res.Action = ActionCreate
	if req.OutletID <= 0 {
		return s.fail(res, "Cannot create timesheet: Amendment has no outlet")
	}
	locationID, err := s.dir.DeputyLocationID(ctx, req.OutletID)
	if errors.Is(err, ErrOutletNotFound) || (err == nil && locationID <= 0) {
		return s.fail(res, fmt.Sprintf("Cannot create timesheet: Outlet %d has no deputy_location_id", req.OutletID))
	}
	if err != nil {
		return s.fail(res, "Cannot create timesheet: outlet lookup failed: "+err.Error())
	}

	start, end := req.Start.Unix(), req.End.Unix()
	breakMin := breakFor(start, end)
	id, err := s.api.CreateTimesheet(ctx, TimesheetInput{
		EmployeeID:        req.DeputyEmployeeID,
		StartTime:         start,
		EndTime:           end,
		BreakSeconds:      breakMin * 60,
		OperationalUnitID: locationID,
		Comment:           "Created via payroll: amendment commit (no existing timesheet)",
	})
	if err != nil {
		return s.fail(res, "Failed to create timesheet: "+err.Error())
	}
	if id <= 0 {
		return s.fail(res, "Deputy API returned no timesheet ID")
	}
	if err := s.api.ApproveTimesheet(ctx, id); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("created timesheet %d but approval failed: %v", id, err))
	}
	res.Details = append(res.Details, Detail{Action: ActionCreate, TimesheetID: id, OperationalUnitID: locationID, BreakMinutes: breakMin})
	res.Synced = true
	return res
}

// merge folds the covered rows into one new timesheet. The old rows are left
// in place for manual cleanup.
func (s *Service) merge(ctx context.Context, req Request, rows []Row, res Result) Result {
	res.Action = ActionMerge
	ouID := rows[0].OperationalUnitID
	if ouID <= 0 {
		return s.fail(res, "Cannot merge timesheets: Missing OperationalUnit ID")
	}
	var ids []string
	var replaced []int64
	anyApproved := false
	for _, r := range rows {
		ids = append(ids, strconv.FormatInt(r.ID, 10))
		replaced = append(replaced, r.ID)
		anyApproved = anyApproved || r.Approved
	}

	start, end := req.Start.Unix(), req.End.Unix()
	breakMin := breakFor(start, end)
	id, err := s.api.CreateTimesheet(ctx, TimesheetInput{
		EmployeeID:        req.DeputyEmployeeID,
		StartTime:         start,
		EndTime:           end,
		BreakSeconds:      breakMin * 60,
		OperationalUnitID: ouID,
		Comment:           fmt.Sprintf("Merged via payroll: Combined %d shifts. Old IDs: %s", len(rows), strings.Join(ids, ",")),
	})
	if err != nil {
		return s.fail(res, "Failed to create merged timesheet: "+err.Error())
	}
	if id <= 0 {
		return s.fail(res, "Deputy API returned no timesheet ID")
	}
	if anyApproved {
		if err := s.api.ApproveTimesheet(ctx, id); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("merged timesheet %d approval failed: %v", id, err))
		}
	}
	res.Details = append(res.Details, Detail{
		Action:            ActionMerge,
		TimesheetID:       id,
		OperationalUnitID: ouID,
		BreakMinutes:      breakMin,
		WasApproved:       anyApproved,
		ReplacedIDs:       replaced,
		Note:              "Old timesheets not auto-deleted - clean up in Deputy if needed",
	})
	res.Synced = true
	return res
}

func (s *Service) fail(res Result, reason string) Result {
	res.Synced = false
	res.FailureReason = reason
	slog.Warn("deputy sync failed", "reason", reason)
	return res
}
