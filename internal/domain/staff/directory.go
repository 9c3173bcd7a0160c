package staff

import (
	"context"
	"fmt"

	"hrpay/internal/domain/auth"
)

// Directory is the read side of staff records exposed over HTTP.
type Directory struct {
	store StoreAPI
}

func NewDirectory(store StoreAPI) *Directory {
	return &Directory{store: store}
}

func (d *Directory) List(ctx context.Context, actor auth.Actor) ([]Staff, error) {
	if err := actor.Require(auth.PermPayrollRead); err != nil {
		return nil, err
	}
	out, err := d.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for i := range out {
		FilterFields(&out[i], actor)
	}
	return out, nil
}

// Get returns one staff member. Staff without payroll.read may only load
// themselves.
func (d *Directory) Get(ctx context.Context, actor auth.Actor, id int64) (Staff, error) {
	if !actor.Can(auth.PermPayrollRead) && actor.StaffID != id {
		return Staff{}, fmt.Errorf("%w: staff may only view their own record", auth.ErrForbidden)
	}
	s, err := d.store.Get(ctx, id)
	if err != nil {
		return Staff{}, err
	}
	FilterFields(&s, actor)
	return s, nil
}
