package xero

import (
	"context"
	"errors"
	"time"

	"hrpay/internal/domain/money"
)

var (
	ErrNotConnected    = errors.New("xero is not connected")
	ErrPayRunNotFound  = errors.New("pay run not found")
	ErrNoPayslips      = errors.New("no approved payslips for the period")
	ErrAlreadyPosted   = errors.New("pay run already posted")
	ErrInvalidState    = errors.New("invalid or expired oauth state")
	ErrNoBankPayments  = errors.New("no payslips with bank accounts to pay")
	ErrMissingRateCode = errors.New("earnings rate id not configured")
)

// EarningsRates maps pay categories to Xero EarningsRateIDs.
type EarningsRates struct {
	Ordinary      string
	Overtime      string
	NightShift    string
	PublicHoliday string
	Bonus         string
}

// Percent of the base rate paid per unit on each earnings line. Night shift
// is the loading only; its hours are already paid as ordinary or overtime.
const (
	OrdinaryPercent      = 100
	OvertimePercent      = 150
	NightLoadingPercent  = 20
	PublicHolidayPercent = 150
)

const xeroDate = "2006-01-02T00:00:00"

type EarningsLine struct {
	EarningsRateID string  `json:"EarningsRateID"`
	RatePerUnit    float64 `json:"RatePerUnit,omitempty"`
	NumberOfUnits  float64 `json:"NumberOfUnits,omitempty"`
	FixedAmount    float64 `json:"FixedAmount,omitempty"`
}

type PayslipLines struct {
	EmployeeID    string         `json:"EmployeeID"`
	EarningsLines []EarningsLine `json:"EarningsLines"`
}

type PayRun struct {
	PayRunID              string         `json:"PayRunID,omitempty"`
	PayrollCalendarID     string         `json:"PayrollCalendarID,omitempty"`
	PayRunPeriodStartDate string         `json:"PayRunPeriodStartDate,omitempty"`
	PayRunPeriodEndDate   string         `json:"PayRunPeriodEndDate,omitempty"`
	PayRunStatus          string         `json:"PayRunStatus"`
	PaymentDate           string         `json:"PaymentDate,omitempty"`
	Payslips              []PayslipLines `json:"Payslips,omitempty"`
}

type PayRunRequest struct {
	PayRuns []PayRun `json:"PayRuns"`
}

type BatchPaymentLine struct {
	Amount        float64 `json:"Amount"`
	Reference     string  `json:"Reference"`
	AccountNumber string  `json:"AccountNumber"`
}

type BatchPayment struct {
	Account   string             `json:"Account"`
	Reference string             `json:"Reference"`
	Details   string             `json:"Details"`
	Payments  []BatchPaymentLine `json:"Payments"`
}

// API is the Xero surface the pay-run service drives.
type API interface {
	CreatePayRun(ctx context.Context, req PayRunRequest) (string, error)
	PostPayRun(ctx context.Context, payRunID string) error
	CreateBatchPayment(ctx context.Context, bp BatchPayment) (string, error)
}

// PayRunRecord is the local copy of a pay run pushed to Xero.
type PayRunRecord struct {
	ID           int64       `json:"id"`
	XeroPayRunID string      `json:"xeroPayRunId"`
	PeriodStart  time.Time   `json:"periodStart"`
	PeriodEnd    time.Time   `json:"periodEnd"`
	PaymentDate  time.Time   `json:"paymentDate"`
	Status       string      `json:"status"`
	PayslipIDs   []int64     `json:"payslipIds"`
	Total        money.Cents `json:"total"`
	CreatedBy    string      `json:"createdBy"`
	CreatedAt    time.Time   `json:"createdAt"`
	PostedAt     *time.Time  `json:"postedAt,omitempty"`
}

type BatchRecord struct {
	ID           int64       `json:"id"`
	XeroBatchID  string      `json:"xeroBatchId"`
	PeriodEnd    time.Time   `json:"periodEnd"`
	PaymentCount int         `json:"paymentCount"`
	Total        money.Cents `json:"total"`
	CreatedBy    string      `json:"createdBy"`
	CreatedAt    time.Time   `json:"createdAt"`
}

type PayRunResult struct {
	PayRun   PayRunRecord `json:"payRun"`
	Skipped  []string     `json:"skipped,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
}
