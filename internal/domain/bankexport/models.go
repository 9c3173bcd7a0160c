package bankexport

import (
	"errors"
	"time"

	"hrpay/internal/domain/money"
)

var (
	ErrNotFound        = errors.New("bank export not found")
	ErrNothingToExport = errors.New("no approved payslips with bank accounts to export")
	// ErrConcurrentExport means another export claimed some of the payslips
	// between selection and commit.
	ErrConcurrentExport = errors.New("payslips were exported by another run")
	ErrNoFromAccount    = errors.New("ASB from account is not configured")
	ErrTampered         = errors.New("bank file does not match its recorded hash")
)

// Export is an immutable record of one bank file.
type Export struct {
	ID           string      `json:"id"`
	Filename     string      `json:"filename"`
	FileHash     string      `json:"fileHash"`
	PayslipCount int         `json:"payslipCount"`
	TotalAmount  money.Cents `json:"totalAmount"`
	PeriodEnd    time.Time   `json:"periodEnd"`
	CreatedBy    string      `json:"createdBy"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Candidate is an approved payslip waiting to be paid.
type Candidate struct {
	PayslipID int64
	StaffID   int64
	NetPay    money.Cents
	PeriodEnd time.Time
}

// Payment is one CSV line.
type Payment struct {
	PayslipID   int64
	FromAccount string
	ToAccount   string
	Amount      money.Cents
	Surname     string
	Payee       string
	PeriodEnd   time.Time
}

type Result struct {
	Export   Export   `json:"export"`
	Skipped  []string `json:"skipped,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type Verification struct {
	ExportID string `json:"exportId"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Valid    bool   `json:"valid"`
}
