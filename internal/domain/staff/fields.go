package staff

import (
	"strings"

	"hrpay/internal/domain/auth"
)

// FilterFields strips what the actor may not see. Bank details are for the
// people who export pay; a staff member viewing their own record sees the
// last four digits only.
func FilterFields(s *Staff, actor auth.Actor) {
	if actor.Can(auth.PermPayrollExport) {
		return
	}
	if actor.StaffID != 0 && actor.StaffID == s.ID {
		s.BankAccount = MaskAccount(s.BankAccount)
		return
	}
	s.BankAccount = ""
	s.VendCustomerID = ""
	s.VendUserID = ""
	s.XeroEmployeeID = ""
}

// MaskAccount keeps the last four digits of an account number.
func MaskAccount(account string) string {
	var digits strings.Builder
	for _, r := range account {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) <= 4 {
		return strings.Repeat("*", len(d))
	}
	return strings.Repeat("*", len(d)-4) + d[len(d)-4:]
}
