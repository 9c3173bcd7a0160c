package bonuseshandler

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/bonus"
	"hrpay/internal/domain/money"
	"hrpay/internal/transport/http/handlers/handlertest"
)

type fakeService struct {
	summaryStaff int64
	created      []bonus.MonthlyBonus
	approved     []int64
	declined     []int64
}

func (f *fakeService) Summary(_ context.Context, _ auth.Actor, staffID int64, _, _ time.Time) (bonus.Summary, error) {
	f.summaryStaff = staffID
	return bonus.Summary{VapeDrops: 2, VapeDropAmount: 1000, GoogleReviews: 1, GoogleReviewAmount: 1000}, nil
}

func (f *fakeService) CreateMonthly(_ context.Context, _ auth.Actor, in bonus.MonthlyBonus) (bonus.MonthlyBonus, error) {
	f.created = append(f.created, in)
	in.ID = 1
	return in, nil
}

func (f *fakeService) ApproveMonthly(_ context.Context, _ auth.Actor, id int64) (bonus.MonthlyBonus, error) {
	f.approved = append(f.approved, id)
	return bonus.MonthlyBonus{ID: id, Approved: true}, nil
}

func (f *fakeService) DeclineMonthly(_ context.Context, _ auth.Actor, id int64) (bonus.MonthlyBonus, error) {
	if id == 2 {
		return bonus.MonthlyBonus{}, fmt.Errorf("bonus 2: %w", bonus.ErrAlreadyDecided)
	}
	f.declined = append(f.declined, id)
	return bonus.MonthlyBonus{ID: id, Declined: true}, nil
}

func (f *fakeService) ListMonthly(_ context.Context, _ int64, _, _ time.Time) ([]bonus.MonthlyBonus, error) {
	return nil, nil
}

func TestSummaryDefaultsToOwnStaffID(t *testing.T) {
	svc := &fakeService{}
	router := handlertest.Router(NewHandler(svc))

	rec := handlertest.Do(t, router, handlertest.Staff, http.MethodGet, "/bonuses/summary?start=2025-03-03&end=2025-03-09", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), svc.summaryStaff)

	var got struct {
		VapeDrops int         `json:"vapeDrops"`
		Total     money.Cents `json:"total"`
	}
	handlertest.Decode(t, rec, &got)
	assert.Equal(t, 2, got.VapeDrops)
	assert.Equal(t, money.Cents(2000), got.Total)
}

func TestCreateMonthlyParsesMonth(t *testing.T) {
	svc := &fakeService{}
	router := handlertest.Router(NewHandler(svc))

	rec := handlertest.Do(t, router, handlertest.Manager, http.MethodPost, "/bonuses/monthly", map[string]any{
		"staffId": 42, "month": "2025-03", "type": "performance", "amount": "150.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.created, 1)
	assert.Equal(t, time.March, svc.created[0].Month.Month())
	assert.Equal(t, money.Cents(15000), svc.created[0].Amount)

	rec = handlertest.Do(t, router, handlertest.Manager, http.MethodPost, "/bonuses/monthly", map[string]any{
		"staffId": 42, "month": "March", "type": "performance", "amount": "150.00",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDecideMonthly(t *testing.T) {
	svc := &fakeService{}
	router := handlertest.Router(NewHandler(svc))

	rec := handlertest.Do(t, router, handlertest.Manager, http.MethodPost, "/bonuses/monthly/1/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{1}, svc.approved)

	rec = handlertest.Do(t, router, handlertest.Manager, http.MethodPost, "/bonuses/monthly/2/decline", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = handlertest.Do(t, router, handlertest.Staff, http.MethodPost, "/bonuses/monthly/1/approve", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
