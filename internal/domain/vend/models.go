package vend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"hrpay/internal/domain/money"
	"hrpay/internal/platform/validation"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusAllocating Status = "allocating"
	StatusAllocated  Status = "allocated"
	StatusFailed     Status = "failed"
)

// Deduction is an amount withheld from pay that settles a staff member's
// Vend on-account balance.
type Deduction struct {
	ID              int64       `json:"id"`
	StaffID         int64       `json:"staffId" validate:"required,gt=0"`
	VendCustomerID  string      `json:"vendCustomerId"`
	Amount          money.Cents `json:"amount" validate:"gt=0"`
	Status          Status      `json:"status"`
	AllocatedAmount money.Cents `json:"allocatedAmount"`
	PaymentIDs      []string    `json:"paymentIds,omitempty"`
	PayRunID        string      `json:"payRunId,omitempty"`
	PayslipNumber   string      `json:"payslipNumber,omitempty"`
	IdempotencyKey  string      `json:"idempotencyKey,omitempty"`
	Error           string      `json:"error,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	AllocatedAt     *time.Time  `json:"allocatedAt,omitempty"`
}

// NewDeduction validates d and resets its allocation state.
func NewDeduction(d Deduction) (Deduction, error) {
	if err := validation.Struct(d); err != nil {
		return Deduction{}, err
	}
	d.Status = StatusPending
	d.AllocatedAmount = 0
	d.PaymentIDs = nil
	d.Error = ""
	d.AllocatedAt = nil
	return d, nil
}

// IdempotencyKey identifies one deduction line of one pay run.
func IdempotencyKey(payRunID string, staffID int64, amount money.Cents, payslipNumber string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%s", payRunID, staffID, int64(amount), payslipNumber)))
	return hex.EncodeToString(sum[:])
}

// Sale is a Vend register sale. TotalToPay is authoritative when HasToPay is
// set; otherwise the balance is TotalPrice less TotalPaid.
type Sale struct {
	ID         string
	CustomerID string
	UserID     string
	Status     string
	SaleDate   time.Time
	TotalPrice money.Cents
	TotalPaid  money.Cents
	TotalToPay money.Cents
	HasToPay   bool
}

func (s Sale) Due() money.Cents {
	due := s.TotalPrice - s.TotalPaid
	if s.HasToPay {
		due = s.TotalToPay
	}
	if due < 0 {
		return 0
	}
	return due
}

// Closed reports whether the sale counts toward sales totals.
func (s Sale) Closed() bool {
	switch s.Status {
	case "CLOSED", "ONACCOUNT_CLOSED", "LAYBY_CLOSED":
		return true
	}
	return false
}

// newestFirst orders sales by sale date descending, then ID descending.
func newestFirst(sales []Sale) {
	sort.SliceStable(sales, func(i, j int) bool {
		if !sales[i].SaleDate.Equal(sales[j].SaleDate) {
			return sales[i].SaleDate.After(sales[j].SaleDate)
		}
		return sales[i].ID > sales[j].ID
	})
}

// Payment is one register-sale payment posted back to Vend.
type Payment struct {
	SaleID        string
	Amount        money.Cents
	PaymentTypeID string
	PaidAt        time.Time
	Label         string
}

// API is the slice of the Vend retail API the allocator needs.
type API interface {
	OpenAccountSales(ctx context.Context, customerID string) ([]Sale, error)
	Sales(ctx context.Context, since, before time.Time) ([]Sale, error)
	AccountPaymentTypeID(ctx context.Context) (string, error)
	RecordPayment(ctx context.Context, p Payment) (string, error)
}

// Allocation is the outcome of one allocation attempt.
type Allocation struct {
	DeductionID int64       `json:"deductionId"`
	Success     bool        `json:"success"`
	Applied     money.Cents `json:"applied"`
	Remaining   money.Cents `json:"remaining"`
	PaymentIDs  []string    `json:"paymentIds,omitempty"`
	Log         []string    `json:"log"`
	Error       string      `json:"error,omitempty"`
}

// LogEntry is one row of the allocation audit trail.
type LogEntry struct {
	ID             int64       `json:"id"`
	DeductionID    int64       `json:"deductionId"`
	VendCustomerID string      `json:"vendCustomerId"`
	Action         string      `json:"action"`
	Amount         money.Cents `json:"amount"`
	PaymentIDs     []string    `json:"paymentIds,omitempty"`
	Success        bool        `json:"success"`
	Error          string      `json:"error,omitempty"`
	PerformedBy    string      `json:"performedBy"`
	PerformedAt    time.Time   `json:"performedAt"`
}

// BatchStats summarises a multi-deduction run.
type BatchStats struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// PayRunLine is one staff member's deduction in a Xero pay run.
type PayRunLine struct {
	StaffID       int64       `json:"staffId" validate:"required,gt=0"`
	PayslipNumber string      `json:"payslipNumber" validate:"required"`
	Amount        money.Cents `json:"amount" validate:"gt=0"`
}

type PayRunResult struct {
	Created      []int64      `json:"created"`
	SkippedStaff []int64      `json:"skippedStaff"`
	Results      []Allocation `json:"results"`
	Warnings     []string     `json:"warnings,omitempty"`
}

type StatusStats struct {
	Count int         `json:"count"`
	Total money.Cents `json:"total"`
}
