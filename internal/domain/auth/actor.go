package auth

import (
	"errors"
	"fmt"
)

var ErrForbidden = errors.New("forbidden")

// Actor is the authenticated caller. It is passed explicitly into every
// service operation that needs a permission check or an audit trail.
type Actor struct {
	UserID  string `json:"userId"`
	StaffID int64  `json:"staffId,omitempty"`
	Role    string `json:"role"`
}

// System is the actor used by scheduled jobs.
var System = Actor{UserID: "system", Role: RoleSystemAdmin}

func (a Actor) Can(permission string) bool {
	return RoleHasPermission(a.Role, permission)
}

func (a Actor) Require(permission string) error {
	if a.Can(permission) {
		return nil
	}
	return fmt.Errorf("%w: %s lacks %s", ErrForbidden, a.Role, permission)
}
