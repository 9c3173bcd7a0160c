package payroll

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/sync/errgroup"

	"hrpay/internal/domain/amendment"
	"hrpay/internal/domain/audit"
	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/money"
	"hrpay/internal/domain/notifications"
	"hrpay/internal/domain/staff"
	"hrpay/internal/domain/timesheet"
	cryptoutil "hrpay/internal/platform/crypto"
)

type StaffLookup interface {
	Get(ctx context.Context, staffID int64) (staff.Staff, error)
	ListActive(ctx context.Context) ([]staff.Staff, error)
}

type AmendmentSource interface {
	ApprovedForPeriod(ctx context.Context, staffID int64, start, end time.Time) ([]amendment.Amendment, error)
}

// SalesSource reports a staff member's sales for commission.
type SalesSource interface {
	StaffSales(ctx context.Context, s staff.Staff, start, end time.Time) (money.Cents, error)
}

type Deps struct {
	Store       StoreAPI
	Tx          Transactor
	Engine      *Engine
	Staff       StaffLookup
	Timesheets  timesheet.StoreAPI
	Amendments  AmendmentSource
	Sales       SalesSource
	Audit       audit.Recorder
	Notifier    notifications.Notifier
	Crypto      *cryptoutil.Service
	PayslipDir  string
	Concurrency int
}

type Service struct {
	store       StoreAPI
	tx          Transactor
	engine      *Engine
	staff       StaffLookup
	timesheets  timesheet.StoreAPI
	amendments  AmendmentSource
	sales       SalesSource
	audit       audit.Recorder
	notifier    notifications.Notifier
	crypto      *cryptoutil.Service
	payslipDir  string
	concurrency int
	locks       *keyedMutex
}

func NewService(d Deps) *Service {
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	if d.Notifier == nil {
		d.Notifier = notifications.Nop{}
	}
	if d.Concurrency < 1 {
		d.Concurrency = 4
	}
	if d.PayslipDir == "" {
		d.PayslipDir = "storage/payslips"
	}
	return &Service{
		store:       d.Store,
		tx:          d.Tx,
		engine:      d.Engine,
		staff:       d.Staff,
		timesheets:  d.Timesheets,
		amendments:  d.Amendments,
		sales:       d.Sales,
		audit:       d.Audit,
		notifier:    d.Notifier,
		crypto:      d.Crypto,
		payslipDir:  d.PayslipDir,
		concurrency: d.Concurrency,
		locks:       newKeyedMutex(),
	}
}

// Calculate computes and stores the payslip for one staff member and period.
// Runs for the same staff member never overlap: the keyed lock covers this
// process and the advisory lock taken in the transaction covers the rest.
func (s *Service) Calculate(ctx context.Context, actor auth.Actor, staffID int64, period Period) (Payslip, error) {
	if err := actor.Require(auth.PermPayrollCalculate); err != nil {
		return Payslip{}, err
	}
	if err := period.Validate(); err != nil {
		return Payslip{}, err
	}

	unlock := s.locks.Lock(staffID)
	defer unlock()

	member, err := s.staff.Get(ctx, staffID)
	if err != nil {
		return Payslip{}, err
	}
	rows, err := s.timesheets.ListForStaff(ctx, staffID, period.Start, period.End)
	if err != nil {
		return Payslip{}, fmt.Errorf("load timesheets: %w", err)
	}
	if s.amendments != nil {
		approved, err := s.amendments.ApprovedForPeriod(ctx, staffID, period.Start, period.Exclusive())
		if err != nil {
			return Payslip{}, fmt.Errorf("load amendments: %w", err)
		}
		rows = ApplyAmendments(rows, approved)
	}

	earnings, err := s.engine.Calculate(ctx, EngineInput{
		StaffID:  staffID,
		BaseRate: member.HourlyRate,
		Workdays: member.Workdays,
		Rows:     rows,
	}, s.timesheets)
	if err != nil {
		return Payslip{}, err
	}

	var commission money.Cents
	if s.sales != nil && s.engine.CommissionStaff[staffID] {
		sales, err := s.sales.StaffSales(ctx, member, period.Start, period.Exclusive())
		if err != nil {
			return Payslip{}, fmt.Errorf("load sales for commission: %w", err)
		}
		commission = s.engine.Commission(staffID, sales)
	}

	var before any
	var result Payslip
	err = s.tx.InTx(ctx, func(tx Tx) error {
		if err := tx.LockStaff(ctx, staffID); err != nil {
			return fmt.Errorf("lock staff %d: %w", staffID, err)
		}
		var existingID int64
		existing, err := tx.Existing(ctx, staffID, period)
		switch {
		case err == nil:
			if existing.ExportedToBank || existing.Status == StatusApproved || existing.Status == StatusExported {
				return ErrPayslipLocked
			}
			existingID = existing.ID
			before = existing
		case !errors.Is(err, ErrPayslipNotFound):
			return err
		}

		summary, err := tx.BonusSummary(ctx, staffID, period, existingID)
		if err != nil {
			return fmt.Errorf("bonus summary: %w", err)
		}
		advances, err := tx.Advances(ctx, staffID, period)
		if err != nil {
			return fmt.Errorf("advances: %w", err)
		}
		vendAccount, err := tx.PendingVendDeductions(ctx, staffID)
		if err != nil {
			return fmt.Errorf("vend deductions: %w", err)
		}
		leaveMinutes, err := tx.UnpaidLeaveMinutes(ctx, staffID, period)
		if err != nil {
			return fmt.Errorf("unpaid leave: %w", err)
		}

		p := assemble(member, period, earnings, summary.VapeDropAmount, summary.GoogleReviewAmount, summary.MonthlyBonusAmount, commission)
		p.Bonuses.VapeDropCount = summary.VapeDrops
		p.Bonuses.ReviewCount = summary.GoogleReviews
		p.Deductions = ComputeDeductions(p.GrossPay, DeductionInput{
			Rate:               earnings.Rate,
			UnpaidLeaveMinutes: leaveMinutes,
			Advances:           advances,
			VendAccount:        vendAccount,
			KiwiSaverEnrolled:  member.KiwiSaverEnrolled,
			StudentLoan:        member.StudentLoan,
			Weeks:              period.Weeks(),
		})
		p.TotalDeductions = p.Deductions.Total()
		p.NetPay = p.GrossPay - p.TotalDeductions
		if p.NetPay < 0 {
			p.Warnings = append(p.Warnings, Warning{
				Code:    WarningNegativeNet,
				Message: fmt.Sprintf("deductions %s exceed gross %s", p.TotalDeductions, p.GrossPay),
			})
		}
		if member.BankAccount == "" {
			p.Warnings = append(p.Warnings, Warning{Code: WarningMissingBankAccount, Message: "no bank account on file"})
		}
		p.CalculatedBy = actor.UserID

		stored, err := tx.UpsertPayslip(ctx, p)
		if err != nil {
			return err
		}
		if _, err := tx.MarkBonusesPaid(ctx, staffID, stored.ID, period); err != nil {
			return fmt.Errorf("mark bonuses paid: %w", err)
		}
		result = stored
		return nil
	})
	if err != nil {
		return Payslip{}, err
	}

	slog.Info("payslip calculated", "staffId", staffID, "payslipId", result.ID,
		"gross", result.GrossPay.String(), "net", result.NetPay.String(), "warnings", len(result.Warnings))
	s.record(ctx, actor, audit.ActionPayslipCalculated, result.ID, before, result)
	return result, nil
}

func assemble(member staff.Staff, period Period, e Earnings, vape, reviews, monthly, commission money.Cents) Payslip {
	p := Payslip{
		StaffID:              member.ID,
		StaffName:            member.FullName(),
		PeriodStart:          period.Start,
		PeriodEnd:            period.End,
		HourlyRate:           e.Rate,
		OrdinaryMinutes:      e.OrdinaryMinutes,
		OvertimeMinutes:      e.OvertimeMinutes,
		NightMinutes:         e.NightMinutes,
		PublicHolidayMinutes: e.PublicHolidayMinutes,
		OrdinaryPay:          e.OrdinaryPay,
		OvertimePay:          e.OvertimePay,
		NightPay:             e.NightPay,
		PublicHolidayPay:     e.PublicHolidayPay,
		Bonuses: Bonuses{
			VapeDrops:     vape,
			GoogleReviews: reviews,
			MonthlyBonus:  monthly,
			Commission:    commission,
			ActingPay:     e.ActingPay,
		},
		AlternativeHolidays: e.AlternativeHolidays,
		Status:              StatusCalculated,
		Warnings:            append([]Warning{}, e.Warnings...),
		Lines:               e.Lines,
	}
	p.GrossPay = e.WagePay() + p.Bonuses.Total()
	p.fillHours()
	return p
}

// CalculateAll runs Calculate for every active staff member. A failure for
// one staff member is reported and does not stop the others.
func (s *Service) CalculateAll(ctx context.Context, actor auth.Actor, period Period) (BatchResult, error) {
	if err := actor.Require(auth.PermPayrollCalculate); err != nil {
		return BatchResult{}, err
	}
	if err := period.Validate(); err != nil {
		return BatchResult{}, err
	}
	members, err := s.staff.ListActive(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list staff: %w", err)
	}

	result := BatchResult{Calculated: []int64{}, Failed: map[int64]string{}}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, m := range members {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := s.Calculate(gctx, actor, m.ID, period)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("payslip batch staff failed", "staffId", m.ID, "err", err)
				result.Failed[m.ID] = err.Error()
				return nil
			}
			result.Calculated = append(result.Calculated, m.ID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	slog.Info("payslip batch complete", "calculated", len(result.Calculated), "failed", len(result.Failed))
	return result, nil
}

func (s *Service) Review(ctx context.Context, actor auth.Actor, id int64) (Payslip, error) {
	return s.transition(ctx, actor, id, auth.PermPayrollCalculate, []Status{StatusCalculated}, StatusReviewed, audit.ActionPayslipReviewed)
}

func (s *Service) Approve(ctx context.Context, actor auth.Actor, id int64) (Payslip, error) {
	p, err := s.transition(ctx, actor, id, auth.PermPayrollApprove, []Status{StatusReviewed}, StatusApproved, audit.ActionPayslipApproved)
	if err != nil {
		return Payslip{}, err
	}
	body := fmt.Sprintf("Your payslip for %s to %s has been approved. Net pay %s.",
		p.PeriodStart.Format("02/01/2006"), p.PeriodEnd.Format("02/01/2006"), p.NetPay)
	if err := s.notifier.Notify(ctx, p.StaffID, notifications.TypePayslipApproved, "Payslip approved", body); err != nil {
		slog.Warn("payslip approval notification failed", "payslipId", id, "err", err)
	}
	return p, nil
}

// Revert sends an approved payslip back to review. Exported payslips are
// immutable.
func (s *Service) Revert(ctx context.Context, actor auth.Actor, id int64) (Payslip, error) {
	return s.transition(ctx, actor, id, auth.PermPayrollApprove, []Status{StatusApproved}, StatusReviewed, audit.ActionPayslipReverted)
}

func (s *Service) transition(ctx context.Context, actor auth.Actor, id int64, perm string, from []Status, to Status, action string) (Payslip, error) {
	if err := actor.Require(perm); err != nil {
		return Payslip{}, err
	}
	before, err := s.store.Get(ctx, id)
	if err != nil {
		return Payslip{}, err
	}
	after, err := s.store.Transition(ctx, id, from, to, actor.UserID)
	if err != nil {
		return Payslip{}, err
	}
	s.record(ctx, actor, action, id, before, after)
	return after, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id int64) (Payslip, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Payslip{}, err
	}
	if !actor.Can(auth.PermPayrollRead) && (actor.StaffID == 0 || actor.StaffID != p.StaffID) {
		return Payslip{}, fmt.Errorf("%w: payslip belongs to another staff member", auth.ErrForbidden)
	}
	return p, nil
}

// List returns one page and the total. Actors without payroll.read only see
// their own payslips.
func (s *Service) List(ctx context.Context, actor auth.Actor, f ListFilter) ([]Payslip, int, error) {
	if !actor.Can(auth.PermPayrollRead) {
		if actor.StaffID == 0 {
			return nil, 0, auth.ErrForbidden
		}
		f.StaffID = actor.StaffID
	}
	total, err := s.store.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.store.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// PayslipPDF renders a payslip. When encryption is configured an encrypted
// copy is kept under the payslip directory.
func (s *Service) PayslipPDF(ctx context.Context, actor auth.Actor, id int64) ([]byte, error) {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	data, err := RenderPDF(p)
	if err != nil {
		return nil, err
	}

	if s.crypto != nil && s.crypto.Configured() {
		if err := os.MkdirAll(s.payslipDir, 0o750); err != nil {
			return nil, err
		}
		encrypted, err := s.crypto.Encrypt(data)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(s.payslipDir, strconv.FormatInt(p.ID, 10)+".pdf.enc")
		if err := os.WriteFile(path, encrypted, 0o600); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func RenderPDF(p Payslip) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s", p.StaffName))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Period: %s to %s", p.PeriodStart.Format("02/01/2006"), p.PeriodEnd.Format("02/01/2006")))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Hourly rate: $%s", p.HourlyRate))
	pdf.Ln(10)

	row := func(label string, hours float64, amount money.Cents) {
		pdf.CellFormat(90, 7, label, "", 0, "L", false, 0, "")
		if hours > 0 {
			pdf.CellFormat(30, 7, fmt.Sprintf("%.2fh", hours), "", 0, "R", false, 0, "")
		} else {
			pdf.CellFormat(30, 7, "", "", 0, "R", false, 0, "")
		}
		pdf.CellFormat(40, 7, "$"+amount.String(), "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Earnings")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	row("Ordinary", p.OrdinaryHours, p.OrdinaryPay)
	row("Overtime (1.5x)", p.OvertimeHours, p.OvertimePay)
	row("Night loading", p.NightHours, p.NightPay)
	row("Public holiday (1.5x)", p.PublicHolidayHours, p.PublicHolidayPay)
	for _, b := range []struct {
		label  string
		amount money.Cents
	}{
		{"Vape drops", p.Bonuses.VapeDrops},
		{"Google reviews", p.Bonuses.GoogleReviews},
		{"Monthly bonus", p.Bonuses.MonthlyBonus},
		{"Commission", p.Bonuses.Commission},
		{"Acting pay", p.Bonuses.ActingPay},
	} {
		if b.amount != 0 {
			row(b.label, 0, b.amount)
		}
	}
	row("Gross pay", 0, p.GrossPay)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Deductions")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	for _, d := range []struct {
		label  string
		amount money.Cents
	}{
		{"Unpaid leave", p.Deductions.UnpaidLeave},
		{"Advances", p.Deductions.Advances},
		{"Student loan", p.Deductions.StudentLoan},
		{"KiwiSaver", p.Deductions.KiwiSaver},
		{"Vend account", p.Deductions.VendAccount},
		{"Other", p.Deductions.Other},
	} {
		if d.amount != 0 {
			row(d.label, 0, d.amount)
		}
	}
	row("Total deductions", 0, p.TotalDeductions)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	row("Net pay", 0, p.NetPay)
	if p.AlternativeHolidays > 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.Ln(4)
		pdf.Cell(0, 7, fmt.Sprintf("Alternative holidays earned: %d", p.AlternativeHolidays))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render payslip %d: %w", p.ID, err)
	}
	return buf.Bytes(), nil
}

func (s *Service) record(ctx context.Context, actor auth.Actor, action string, id int64, before, after any) {
	if err := s.audit.Record(ctx, actor, action, "payslip", strconv.FormatInt(id, 10), before, after); err != nil {
		slog.Warn("payslip audit failed", "payslipId", id, "action", action, "err", err)
	}
}
