package xero

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"hrpay/internal/domain/audit"
	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/money"
	"hrpay/internal/domain/payroll"
	"hrpay/internal/domain/staff"
	"hrpay/internal/domain/vend"
)

const stateTTL = 10 * time.Minute

type PayslipLister interface {
	List(ctx context.Context, f payroll.ListFilter) ([]payroll.Payslip, error)
}

type StaffLookup interface {
	Get(ctx context.Context, staffID int64) (staff.Staff, error)
}

// VendAllocator settles Vend account deductions once a pay run exists.
type VendAllocator interface {
	AllocateToPayRun(ctx context.Context, actor auth.Actor, payRunID string, lines []vend.PayRunLine) (vend.PayRunResult, error)
}

// Connector runs the OAuth authorization-code flow.
type Connector interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) error
}

type StateStore interface {
	GetJSON(ctx context.Context, key string, target any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Config struct {
	CalendarID      string
	Rates           EarningsRates
	BankAccountCode string
}

type Deps struct {
	Store     StoreAPI
	API       API
	Connector Connector
	States    StateStore
	Payslips  PayslipLister
	Staff     StaffLookup
	Vend      VendAllocator
	Audit     audit.Recorder
	Config    Config
}

type Service struct {
	store     StoreAPI
	api       API
	connector Connector
	states    StateStore
	payslips  PayslipLister
	staff     StaffLookup
	vend      VendAllocator
	audit     audit.Recorder
	cfg       Config
}

func NewService(d Deps) *Service {
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	return &Service{
		store:     d.Store,
		api:       d.API,
		connector: d.Connector,
		states:    d.States,
		payslips:  d.Payslips,
		staff:     d.Staff,
		vend:      d.Vend,
		audit:     d.Audit,
		cfg:       d.Config,
	}
}

// ConnectURL starts the OAuth flow. The returned state is bound to the actor
// and accepted once.
func (s *Service) ConnectURL(ctx context.Context, actor auth.Actor) (string, error) {
	if err := actor.Require(auth.PermXeroSync); err != nil {
		return "", err
	}
	if s.connector == nil {
		return "", ErrNotConnected
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	if err := s.states.SetJSON(ctx, stateKey(state), actor.UserID, stateTTL); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return s.connector.AuthCodeURL(state), nil
}

// Callback completes the OAuth flow started by ConnectURL.
func (s *Service) Callback(ctx context.Context, state, code string) error {
	if s.connector == nil {
		return ErrNotConnected
	}
	var userID string
	if err := s.states.GetJSON(ctx, stateKey(state), &userID); err != nil || userID == "" {
		return ErrInvalidState
	}
	if err := s.states.Delete(ctx, stateKey(state)); err != nil {
		slog.Warn("xero oauth state cleanup failed", "err", err)
	}
	if err := s.connector.Exchange(ctx, code); err != nil {
		return fmt.Errorf("exchange xero code: %w", err)
	}
	actor := auth.Actor{UserID: userID}
	if err := s.audit.Record(ctx, actor, audit.ActionXeroConnected, "xero", "tenant", nil, nil); err != nil {
		slog.Warn("xero connect audit failed", "err", err)
	}
	slog.Info("xero connected", "userId", userID)
	return nil
}

func stateKey(state string) string { return "xero:oauth_state:" + state }

// payable returns approved or exported payslips for exactly this period.
func (s *Service) payable(ctx context.Context, period payroll.Period) ([]payroll.Payslip, error) {
	all, err := s.payslips.List(ctx, payroll.ListFilter{PeriodStart: period.Start, PeriodEnd: period.End})
	if err != nil {
		return nil, err
	}
	var out []payroll.Payslip
	for _, p := range all {
		if !p.PeriodStart.Equal(period.Start) || !p.PeriodEnd.Equal(period.End) {
			continue
		}
		if p.Status == payroll.StatusApproved || p.Status == payroll.StatusExported {
			out = append(out, p)
		}
	}
	return out, nil
}

// CreatePayRun pushes the period's approved payslips to Xero as a draft pay
// run, then allocates any Vend account deductions against it.
func (s *Service) CreatePayRun(ctx context.Context, actor auth.Actor, period payroll.Period, paymentDate time.Time) (PayRunResult, error) {
	if err := actor.Require(auth.PermXeroSync); err != nil {
		return PayRunResult{}, err
	}
	if s.api == nil {
		return PayRunResult{}, ErrNotConnected
	}
	if err := period.Validate(); err != nil {
		return PayRunResult{}, err
	}
	payslips, err := s.payable(ctx, period)
	if err != nil {
		return PayRunResult{}, fmt.Errorf("load payslips: %w", err)
	}
	if len(payslips) == 0 {
		return PayRunResult{}, ErrNoPayslips
	}

	employees := make(map[int64]string, len(payslips))
	for _, p := range payslips {
		member, err := s.staff.Get(ctx, p.StaffID)
		if err != nil {
			return PayRunResult{}, fmt.Errorf("load staff %d: %w", p.StaffID, err)
		}
		if member.XeroEmployeeID != "" {
			employees[p.StaffID] = member.XeroEmployeeID
		}
	}

	req, skipped, err := BuildPayRun(s.cfg.CalendarID, period, paymentDate, payslips, employees, s.cfg.Rates)
	if err != nil {
		return PayRunResult{}, err
	}
	if len(req.PayRuns[0].Payslips) == 0 {
		return PayRunResult{Skipped: skipped}, ErrNoPayslips
	}

	xeroID, err := s.api.CreatePayRun(ctx, req)
	if err != nil {
		return PayRunResult{}, fmt.Errorf("create xero pay run: %w", err)
	}

	var ids []int64
	var total money.Cents
	var lines []vend.PayRunLine
	for _, p := range payslips {
		if employees[p.StaffID] == "" {
			continue
		}
		ids = append(ids, p.ID)
		total += p.GrossPay
		if p.Deductions.VendAccount > 0 {
			lines = append(lines, vend.PayRunLine{StaffID: p.StaffID, PayslipNumber: strconv.FormatInt(p.ID, 10), Amount: p.Deductions.VendAccount})
		}
	}
	record, err := s.store.InsertPayRun(ctx, PayRunRecord{
		XeroPayRunID: xeroID,
		PeriodStart:  period.Start,
		PeriodEnd:    period.End,
		PaymentDate:  paymentDate,
		Status:       "draft",
		PayslipIDs:   ids,
		Total:        total,
		CreatedBy:    actor.UserID,
	})
	if err != nil {
		slog.Error("xero pay run created but not recorded", "xeroPayRunId", xeroID, "err", err)
		return PayRunResult{}, err
	}
	res := PayRunResult{PayRun: record, Skipped: skipped}

	if err := s.audit.Record(ctx, actor, audit.ActionXeroPayRunCreated, "xero_pay_run", strconv.FormatInt(record.ID, 10), nil, record); err != nil {
		slog.Warn("xero pay run audit failed", "payRunId", record.ID, "err", err)
	}
	slog.Info("xero pay run created", "payRunId", record.ID, "xeroPayRunId", xeroID, "payslips", len(ids), "skipped", len(skipped))

	if s.vend != nil && len(lines) > 0 {
		alloc, err := s.vend.AllocateToPayRun(ctx, actor, xeroID, lines)
		if err != nil {
			res.Warnings = append(res.Warnings, "vend allocation: "+err.Error())
		} else {
			res.Warnings = append(res.Warnings, alloc.Warnings...)
			for _, a := range alloc.Results {
				if !a.Success {
					res.Warnings = append(res.Warnings, fmt.Sprintf("vend deduction %d: %s", a.DeductionID, a.Error))
				}
			}
		}
	}
	return res, nil
}

func (s *Service) PostPayRun(ctx context.Context, actor auth.Actor, id int64) (PayRunRecord, error) {
	if err := actor.Require(auth.PermXeroSync); err != nil {
		return PayRunRecord{}, err
	}
	if s.api == nil {
		return PayRunRecord{}, ErrNotConnected
	}
	record, err := s.store.GetPayRun(ctx, id)
	if err != nil {
		return PayRunRecord{}, err
	}
	if record.Status != "draft" {
		return PayRunRecord{}, ErrAlreadyPosted
	}
	if err := s.api.PostPayRun(ctx, record.XeroPayRunID); err != nil {
		return PayRunRecord{}, fmt.Errorf("post xero pay run: %w", err)
	}
	posted, err := s.store.MarkPosted(ctx, id)
	if err != nil {
		return PayRunRecord{}, err
	}
	if err := s.audit.Record(ctx, actor, audit.ActionXeroPayRunPosted, "xero_pay_run", strconv.FormatInt(id, 10), record, posted); err != nil {
		slog.Warn("xero pay run audit failed", "payRunId", id, "err", err)
	}
	return posted, nil
}

// CreateBatchPayment sends net pay for the period to Xero as one batch
// payment from the configured bank account.
func (s *Service) CreateBatchPayment(ctx context.Context, actor auth.Actor, period payroll.Period) (BatchRecord, error) {
	if err := actor.Require(auth.PermXeroSync); err != nil {
		return BatchRecord{}, err
	}
	if s.api == nil {
		return BatchRecord{}, ErrNotConnected
	}
	if s.cfg.BankAccountCode == "" {
		return BatchRecord{}, errors.New("xero bank account code not configured")
	}
	payslips, err := s.payable(ctx, period)
	if err != nil {
		return BatchRecord{}, err
	}
	bp := BatchPayment{
		Account:   s.cfg.BankAccountCode,
		Reference: "Payroll " + period.End.Format("02/01/06"),
		Details:   "Staff Payroll",
	}
	var total money.Cents
	for _, p := range payslips {
		if p.NetPay <= 0 {
			continue
		}
		member, err := s.staff.Get(ctx, p.StaffID)
		if err != nil {
			return BatchRecord{}, err
		}
		if member.BankAccount == "" {
			slog.Warn("xero batch payment skipped staff without bank account", "staffId", p.StaffID, "payslipId", p.ID)
			continue
		}
		bp.Payments = append(bp.Payments, BatchPaymentLine{
			Amount:        p.NetPay.Dollars(),
			Reference:     "Pay " + period.End.Format("02/01/06"),
			AccountNumber: member.BankAccount,
		})
		total += p.NetPay
	}
	if len(bp.Payments) == 0 {
		return BatchRecord{}, ErrNoBankPayments
	}
	batchID, err := s.api.CreateBatchPayment(ctx, bp)
	if err != nil {
		return BatchRecord{}, fmt.Errorf("create xero batch payment: %w", err)
	}
	return s.store.InsertBatch(ctx, BatchRecord{
		XeroBatchID:  batchID,
		PeriodEnd:    period.End,
		PaymentCount: len(bp.Payments),
		Total:        total,
		CreatedBy:    actor.UserID,
	})
}

func (s *Service) ListPayRuns(ctx context.Context, actor auth.Actor, limit int) ([]PayRunRecord, error) {
	if err := actor.Require(auth.PermXeroSync); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListPayRuns(ctx, limit)
}
