package staff

import (
	"errors"
	"time"

	"hrpay/internal/domain/money"
)

var ErrStaffNotFound = errors.New("staff not found")

type Staff struct {
	ID                int64          `json:"id"`
	FirstName         string         `json:"firstName"`
	LastName          string         `json:"lastName"`
	Email             string         `json:"email"`
	HourlyRate        money.Cents    `json:"hourlyRate"`
	BankAccount       string         `json:"bankAccount,omitempty"`
	DeputyEmployeeID  int64          `json:"deputyEmployeeId,omitempty"`
	XeroEmployeeID    string         `json:"xeroEmployeeId,omitempty"`
	VendCustomerID    string         `json:"vendCustomerId,omitempty"`
	VendUserID        string         `json:"vendUserId,omitempty"`
	KiwiSaverEnrolled bool           `json:"kiwiSaverEnrolled"`
	StudentLoan       bool           `json:"studentLoan"`
	Workdays          []time.Weekday `json:"workdays"`
	Active            bool           `json:"active"`
}

func (s Staff) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// WorksOn reports whether day is one of the staff member's normal workdays.
// Staff without a recorded pattern are treated as working every day.
func (s Staff) WorksOn(day time.Weekday) bool {
	if len(s.Workdays) == 0 {
		return true
	}
	for _, d := range s.Workdays {
		if d == day {
			return true
		}
	}
	return false
}

type Outlet struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	DeputyLocationID int64  `json:"deputyLocationId,omitempty"`
}
