package vend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"hrpay/internal/domain/audit"
	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/money"
	"hrpay/internal/domain/staff"
	"hrpay/internal/platform/validation"
)

const staleAllocation = 15 * time.Minute

type StaffLookup interface {
	Get(ctx context.Context, staffID int64) (staff.Staff, error)
}

// Limiter admits a bounded number of allocations per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Service struct {
	store   StoreAPI
	tx      Transactor
	api     API
	staff   StaffLookup
	limiter Limiter
	audit   audit.Recorder
	now     func() time.Time
}

func NewService(store StoreAPI, tx Transactor, api API, staff StaffLookup, limiter Limiter, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		store:   store,
		tx:      tx,
		api:     api,
		staff:   staff,
		limiter: limiter,
		audit:   recorder,
		now:     time.Now,
	}
}

// Create records a pending deduction for a staff member.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in Deduction) (Deduction, error) {
	if err := actor.Require(auth.PermVendAllocate); err != nil {
		return Deduction{}, err
	}
	d, err := NewDeduction(in)
	if err != nil {
		return Deduction{}, err
	}
	if _, err := s.staff.Get(ctx, d.StaffID); err != nil {
		return Deduction{}, err
	}
	return s.store.Create(ctx, d)
}

// AllocateDeduction settles one deduction against the customer's open
// on-account sales. An attempt that applies nothing leaves the deduction
// failed and is reported in the returned Allocation, not as an error.
func (s *Service) AllocateDeduction(ctx context.Context, actor auth.Actor, id int64) (Allocation, error) {
	if err := actor.Require(auth.PermVendAllocate); err != nil {
		return Allocation{}, err
	}
	return s.allocate(ctx, actor, id)
}

func (s *Service) allocate(ctx context.Context, actor auth.Actor, id int64) (Allocation, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return Allocation{}, err
	}
	if d.Status == StatusAllocated || d.Status == StatusAllocating {
		return Allocation{}, ErrAlreadyAllocated
	}
	if d.Amount <= 0 {
		return Allocation{}, ErrInvalidAmount
	}
	if d.VendCustomerID == "" {
		return Allocation{}, ErrNoVendCustomer
	}
	if s.api == nil {
		return Allocation{}, ErrNotConfigured
	}
	if err := s.admit(ctx, d.StaffID); err != nil {
		return Allocation{}, err
	}

	d, err = s.store.Claim(ctx, id)
	if err != nil {
		return Allocation{}, err
	}

	label := fmt.Sprintf("Payroll deduction #%d", d.ID)
	if d.PayRunID != "" {
		label = fmt.Sprintf("Payroll deduction #%d (pay run %s)", d.ID, d.PayRunID)
	}
	res := s.apply(ctx, d.VendCustomerID, d.Amount, label)
	res.DeductionID = d.ID

	status := StatusFailed
	if res.Success {
		status = StatusAllocated
	}
	// The Vend side has already happened; the bookkeeping must land even if
	// the caller has gone away.
	bg := context.WithoutCancel(ctx)
	err = s.tx.InTx(bg, func(tx TxAPI) error {
		if err := tx.Finish(bg, d.ID, status, res.Applied, res.PaymentIDs, res.Error); err != nil {
			return fmt.Errorf("update deduction: %w", err)
		}
		return tx.Log(bg, LogEntry{
			DeductionID:    d.ID,
			VendCustomerID: d.VendCustomerID,
			Action:         "allocate",
			Amount:         res.Applied,
			PaymentIDs:     res.PaymentIDs,
			Success:        res.Success,
			Error:          res.Error,
			PerformedBy:    actor.UserID,
		})
	})
	if err != nil {
		slog.Error("vend allocation bookkeeping failed", "deductionId", d.ID, "paymentIds", res.PaymentIDs, "err", err)
		return res, err
	}

	if res.Success {
		slog.Info("vend deduction allocated", "deductionId", d.ID, "staffId", d.StaffID, "applied", res.Applied.String(), "remaining", res.Remaining.String())
		if err := s.audit.Record(ctx, actor, audit.ActionVendAllocated, "vend_deduction", strconv.FormatInt(d.ID, 10), nil, res); err != nil {
			slog.Warn("vend allocation audit failed", "deductionId", d.ID, "err", err)
		}
	} else {
		slog.Warn("vend deduction allocation failed", "deductionId", d.ID, "staffId", d.StaffID, "err", res.Error)
	}
	return res, nil
}

func (s *Service) admit(ctx context.Context, staffID int64) error {
	if s.limiter == nil {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, "vend:staff:"+strconv.FormatInt(staffID, 10))
	if err != nil {
		slog.Warn("vend rate limiter unavailable", "staffId", staffID, "err", err)
		return nil
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}

// apply spreads amount over open sales, newest first. A payment that Vend
// rejects is logged and the next sale is tried.
func (s *Service) apply(ctx context.Context, customerID string, amount money.Cents, label string) Allocation {
	res := Allocation{Remaining: amount}
	fail := func(err error) Allocation {
		res.Error = err.Error()
		res.Log = append(res.Log, err.Error())
		return res
	}

	paymentType, err := s.api.AccountPaymentTypeID(ctx)
	if err != nil {
		return fail(fmt.Errorf("resolve account payment type: %w", err))
	}
	sales, err := s.api.OpenAccountSales(ctx, customerID)
	if err != nil {
		return fail(fmt.Errorf("fetch open sales: %w", err))
	}
	if len(sales) == 0 {
		return fail(ErrNoOpenSales)
	}
	newestFirst(sales)
	res.Log = append(res.Log, fmt.Sprintf("found %d open on-account sale(s)", len(sales)))

	for _, sale := range sales {
		if res.Remaining <= 0 {
			break
		}
		if sale.ID == "" {
			res.Log = append(res.Log, "skipped sale with empty id")
			continue
		}
		due := sale.Due()
		if due <= 0 {
			res.Log = append(res.Log, fmt.Sprintf("sale %s already paid", sale.ID))
			continue
		}
		portion := min(due, res.Remaining)
		paymentID, err := s.api.RecordPayment(ctx, Payment{
			SaleID:        sale.ID,
			Amount:        portion,
			PaymentTypeID: paymentType,
			PaidAt:        s.now(),
			Label:         label,
		})
		if err != nil {
			if ctx.Err() != nil {
				res.Log = append(res.Log, "cancelled: "+ctx.Err().Error())
				break
			}
			res.Log = append(res.Log, fmt.Sprintf("payment to sale %s failed: %v", sale.ID, err))
			continue
		}
		res.PaymentIDs = append(res.PaymentIDs, paymentID)
		res.Applied += portion
		res.Remaining -= portion
		res.Log = append(res.Log, fmt.Sprintf("applied %s to sale %s (payment %s), due %s -> %s",
			portion, sale.ID, paymentID, due, due-portion))
	}

	if res.Applied > 0 {
		res.Success = true
		return res
	}
	res.Error = ErrNothingApplied.Error()
	return res
}

// AllocateAllForCustomer allocates every pending deduction of one Vend
// customer in ID order.
func (s *Service) AllocateAllForCustomer(ctx context.Context, actor auth.Actor, customerID string) (BatchStats, error) {
	if err := actor.Require(auth.PermVendAllocate); err != nil {
		return BatchStats{}, err
	}
	if strings.TrimSpace(customerID) == "" {
		return BatchStats{}, validation.New("customerId", "required", "customerId is required")
	}
	pending, err := s.store.Pending(ctx, customerID)
	if err != nil {
		return BatchStats{}, err
	}
	return s.allocateEach(ctx, actor, pending)
}

func (s *Service) AllocateAllPending(ctx context.Context, actor auth.Actor) (BatchStats, error) {
	if err := actor.Require(auth.PermVendAllocate); err != nil {
		return BatchStats{}, err
	}
	pending, err := s.store.Pending(ctx, "")
	if err != nil {
		return BatchStats{}, err
	}
	return s.allocateEach(ctx, actor, pending)
}

func (s *Service) allocateEach(ctx context.Context, actor auth.Actor, list []Deduction) (BatchStats, error) {
	stats := BatchStats{Total: len(list)}
	for _, d := range list {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		res, err := s.allocate(ctx, actor, d.ID)
		switch {
		case err != nil:
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("deduction %d: %v", d.ID, err))
		case !res.Success:
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("deduction %d: %s", d.ID, res.Error))
		default:
			stats.Successful++
		}
	}
	slog.Info("vend batch allocation finished", "total", stats.Total, "successful", stats.Successful, "failed", stats.Failed)
	return stats, nil
}

// RetryFailed puts one failed deduction back to pending and allocates it.
func (s *Service) RetryFailed(ctx context.Context, actor auth.Actor, id int64) (Allocation, error) {
	if err := actor.Require(auth.PermVendAllocate); err != nil {
		return Allocation{}, err
	}
	if err := s.store.ResetFailed(ctx, id); err != nil {
		return Allocation{}, err
	}
	return s.allocate(ctx, actor, id)
}

// RetryAllFailed first fails allocations that were interrupted mid-flight,
// then retries every failed deduction.
func (s *Service) RetryAllFailed(ctx context.Context, actor auth.Actor) (BatchStats, error) {
	if err := actor.Require(auth.PermVendAllocate); err != nil {
		return BatchStats{}, err
	}
	if n, err := s.store.FailStale(ctx, staleAllocation); err != nil {
		return BatchStats{}, fmt.Errorf("fail stale allocations: %w", err)
	} else if n > 0 {
		slog.Warn("vend allocations interrupted", "count", n)
	}
	failed, err := s.store.Failed(ctx)
	if err != nil {
		return BatchStats{}, err
	}
	return s.allocateEach(ctx, actor, failed)
}

// AllocateToPayRun ties each line's pending deductions to the pay run and
// allocates them. A line whose idempotency key is already recorded is
// skipped, so repeating the call allocates nothing twice.
func (s *Service) AllocateToPayRun(ctx context.Context, actor auth.Actor, payRunID string, lines []PayRunLine) (PayRunResult, error) {
	if err := actor.Require(auth.PermVendAllocate); err != nil {
		return PayRunResult{}, err
	}
	if strings.TrimSpace(payRunID) == "" {
		return PayRunResult{}, validation.New("payRunId", "required", "payRunId is required")
	}
	for _, line := range lines {
		if err := validation.Struct(line); err != nil {
			return PayRunResult{}, err
		}
	}

	var res PayRunResult
	var attached []Deduction
	for _, line := range lines {
		key := IdempotencyKey(payRunID, line.StaffID, line.Amount, line.PayslipNumber)
		var picked []Deduction
		var inserted bool
		err := s.tx.InTx(ctx, func(tx TxAPI) error {
			var err error
			inserted, err = tx.InsertPayRunKey(ctx, key, payRunID, line)
			if err != nil || !inserted {
				return err
			}
			picked, err = tx.Attach(ctx, key, payRunID, line)
			return err
		})
		if err != nil {
			return res, fmt.Errorf("attach staff %d to pay run: %w", line.StaffID, err)
		}
		if !inserted {
			res.SkippedStaff = append(res.SkippedStaff, line.StaffID)
			continue
		}
		var sum money.Cents
		for _, d := range picked {
			sum += d.Amount
			res.Created = append(res.Created, d.ID)
		}
		if sum != line.Amount {
			res.Warnings = append(res.Warnings, fmt.Sprintf("staff %d: pay run deducts %s but %s of pending deductions matched", line.StaffID, line.Amount, sum))
		}
		attached = append(attached, picked...)
	}

	for _, d := range attached {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		alloc, err := s.allocate(ctx, actor, d.ID)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("deduction %d: %v", d.ID, err))
			continue
		}
		res.Results = append(res.Results, alloc)
	}
	slog.Info("vend pay run allocation finished", "payRunId", payRunID, "lines", len(lines), "deductions", len(res.Created), "skipped", len(res.SkippedStaff))
	return res, nil
}

// StaffSales totals the closed Vend sales rung up by a staff member in
// [start, end).
func (s *Service) StaffSales(ctx context.Context, member staff.Staff, start, end time.Time) (money.Cents, error) {
	if member.VendUserID == "" || s.api == nil {
		return 0, nil
	}
	sales, err := s.api.Sales(ctx, start, end)
	if err != nil {
		return 0, err
	}
	var total money.Cents
	for _, sale := range sales {
		if sale.UserID != member.VendUserID || !sale.Closed() {
			continue
		}
		if sale.SaleDate.Before(start) || !sale.SaleDate.Before(end) {
			continue
		}
		total += sale.TotalPrice
	}
	return total, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id int64) (Deduction, error) {
	if err := actor.Require(auth.PermVendAllocate); err != nil {
		return Deduction{}, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) Failed(ctx context.Context, actor auth.Actor) ([]Deduction, error) {
	if err := actor.Require(auth.PermVendAllocate); err != nil {
		return nil, err
	}
	return s.store.Failed(ctx)
}

func (s *Service) History(ctx context.Context, actor auth.Actor, customerID string, limit int) ([]LogEntry, error) {
	if err := actor.Require(auth.PermVendAllocate); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.History(ctx, customerID, limit)
}

func (s *Service) Stats(ctx context.Context, actor auth.Actor) (map[Status]StatusStats, error) {
	if err := actor.Require(auth.PermVendAllocate); err != nil {
		return nil, err
	}
	return s.store.Stats(ctx)
}

// IsClientError reports errors caused by the deduction's state rather than
// by Vend or the database.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAlreadyAllocated) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrNoVendCustomer) ||
		errors.Is(err, ErrNotFailed)
}
