package bonus

import (
	"errors"
	"time"

	"hrpay/internal/domain/money"
	"hrpay/internal/platform/validation"
)

const (
	VapeDropCents     money.Cents = 600
	GoogleReviewCents money.Cents = 1000
)

var (
	ErrNotFound       = errors.New("bonus not found")
	ErrAlreadyDecided = errors.New("bonus already approved or declined")
)

type Type string

const (
	TypePerformance Type = "performance"
	TypeOneOff      Type = "one_off"
	TypeCommission  Type = "commission"
	TypeReferral    Type = "referral"
	TypeOther       Type = "other"
)

// MonthlyBonus is a discretionary bonus entered by a manager.
type MonthlyBonus struct {
	ID              int64       `json:"id"`
	StaffID         int64       `json:"staffId" validate:"required,gt=0"`
	Month           time.Time   `json:"month" validate:"required"`
	Type            Type        `json:"type" validate:"required,oneof=performance one_off commission referral other"`
	Amount          money.Cents `json:"amount" validate:"gt=0"`
	Description     string      `json:"description" validate:"max=500"`
	Approved        bool        `json:"approved"`
	Declined        bool        `json:"declined"`
	DecidedBy       string      `json:"decidedBy,omitempty"`
	DecidedAt       *time.Time  `json:"decidedAt,omitempty"`
	BonusPaid       bool        `json:"bonusPaid"`
	PaidInPayslipID *int64      `json:"paidInPayslipId,omitempty"`
	CreatedBy       string      `json:"createdBy"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// NewMonthly validates b and normalises Month to the first of the month.
func NewMonthly(b MonthlyBonus) (MonthlyBonus, error) {
	if err := validation.Struct(b); err != nil {
		return MonthlyBonus{}, err
	}
	b.Month = time.Date(b.Month.Year(), b.Month.Month(), 1, 0, 0, 0, 0, b.Month.Location())
	b.Approved, b.Declined, b.BonusPaid = false, false, false
	return b, nil
}

// Summary is what a payslip can still claim for one staff member and period.
type Summary struct {
	VapeDrops          int         `json:"vapeDrops"`
	VapeDropAmount     money.Cents `json:"vapeDropAmount"`
	GoogleReviews      int         `json:"googleReviews"`
	GoogleReviewAmount money.Cents `json:"googleReviewAmount"`
	MonthlyBonuses     int         `json:"monthlyBonuses"`
	MonthlyBonusAmount money.Cents `json:"monthlyBonusAmount"`
}

func (s Summary) Total() money.Cents {
	return s.VapeDropAmount + s.GoogleReviewAmount + s.MonthlyBonusAmount
}

// Claimed counts the units a payslip took ownership of.
type Claimed struct {
	VapeDrops      int64 `json:"vapeDrops"`
	GoogleReviews  int64 `json:"googleReviews"`
	MonthlyBonuses int64 `json:"monthlyBonuses"`
}
