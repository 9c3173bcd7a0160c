package staffhandler

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/staff"
	"hrpay/internal/transport/http/handlers/handlertest"
)

type fakeService struct{}

func (fakeService) List(_ context.Context, _ auth.Actor) ([]staff.Staff, error) {
	return []staff.Staff{{ID: 1, FirstName: "Aroha"}, {ID: 2, FirstName: "Tama"}}, nil
}

func (fakeService) Get(_ context.Context, actor auth.Actor, id int64) (staff.Staff, error) {
	if id == 404 {
		return staff.Staff{}, staff.ErrStaffNotFound
	}
	if !actor.Can(auth.PermPayrollRead) && actor.StaffID != id {
		return staff.Staff{}, fmt.Errorf("%w: not yours", auth.ErrForbidden)
	}
	return staff.Staff{ID: id, FirstName: "Aroha"}, nil
}

func TestListStaff(t *testing.T) {
	router := handlertest.Router(NewHandler(fakeService{}))

	rec := handlertest.Do(t, router, handlertest.Manager, http.MethodGet, "/staff/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))

	rec = handlertest.Do(t, router, handlertest.Staff, http.MethodGet, "/staff/", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = handlertest.Do(t, router, auth.Actor{}, http.MethodGet, "/staff/", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetStaff(t *testing.T) {
	router := handlertest.Router(NewHandler(fakeService{}))

	rec := handlertest.Do(t, router, handlertest.Staff, http.MethodGet, "/staff/42", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = handlertest.Do(t, router, handlertest.Staff, http.MethodGet, "/staff/43", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodGet, "/staff/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodGet, "/staff/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
