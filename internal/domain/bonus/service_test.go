package bonus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/money"
	"hrpay/internal/platform/validation"
)

type memStore struct {
	summary Summary
	rows    map[int64]MonthlyBonus
	nextID  int64
}

func (m *memStore) Summary(context.Context, int64, time.Time, time.Time, int64) (Summary, error) {
	return m.summary, nil
}

func (m *memStore) CreateMonthly(_ context.Context, b MonthlyBonus) (MonthlyBonus, error) {
	m.nextID++
	b.ID = m.nextID
	m.rows[b.ID] = b
	return b, nil
}

func (m *memStore) GetMonthly(_ context.Context, id int64) (MonthlyBonus, error) {
	b, ok := m.rows[id]
	if !ok {
		return MonthlyBonus{}, ErrNotFound
	}
	return b, nil
}

func (m *memStore) DecideMonthly(_ context.Context, id int64, approve bool, actorID string) (MonthlyBonus, error) {
	b, ok := m.rows[id]
	if !ok {
		return MonthlyBonus{}, ErrNotFound
	}
	if b.Approved || b.Declined {
		return MonthlyBonus{}, ErrAlreadyDecided
	}
	b.Approved, b.Declined, b.DecidedBy = approve, !approve, actorID
	m.rows[id] = b
	return b, nil
}

func (m *memStore) ListMonthly(context.Context, int64, time.Time, time.Time) ([]MonthlyBonus, error) {
	return nil, nil
}

var (
	manager = auth.Actor{UserID: "m", Role: auth.RoleManager}
	worker  = auth.Actor{UserID: "w", StaffID: 5, Role: auth.RoleStaff}
)

func TestSummaryTotalsAndPricing(t *testing.T) {
	s := priced(Summary{VapeDrops: 3, GoogleReviews: 2}, 5000)
	assert.Equal(t, money.Cents(1800), s.VapeDropAmount)
	assert.Equal(t, money.Cents(2000), s.GoogleReviewAmount)
	assert.Equal(t, money.Cents(8800), s.Total())
}

func TestSummaryAccess(t *testing.T) {
	svc := NewService(&memStore{summary: Summary{VapeDrops: 1}, rows: map[int64]MonthlyBonus{}}, nil)
	_, err := svc.Summary(context.Background(), worker, 5, time.Time{}, time.Time{})
	require.NoError(t, err)

	_, err = svc.Summary(context.Background(), worker, 6, time.Time{}, time.Time{})
	assert.True(t, errors.Is(err, auth.ErrForbidden))

	_, err = svc.Summary(context.Background(), manager, 6, time.Time{}, time.Time{})
	assert.NoError(t, err)
}

func TestMonthlyBonusLifecycle(t *testing.T) {
	svc := NewService(&memStore{rows: map[int64]MonthlyBonus{}}, nil)

	_, err := svc.CreateMonthly(context.Background(), manager, MonthlyBonus{StaffID: 5, Month: time.Now(), Type: "bogus", Amount: 100})
	assert.True(t, validation.IsValidation(err))

	_, err = svc.CreateMonthly(context.Background(), worker, MonthlyBonus{StaffID: 5, Month: time.Now(), Type: TypeReferral, Amount: 100})
	assert.True(t, errors.Is(err, auth.ErrForbidden))

	b, err := svc.CreateMonthly(context.Background(), manager, MonthlyBonus{
		StaffID: 5, Month: time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC), Type: TypePerformance, Amount: 5000,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Month.Day())
	assert.Equal(t, "m", b.CreatedBy)

	approved, err := svc.ApproveMonthly(context.Background(), manager, b.ID)
	require.NoError(t, err)
	assert.True(t, approved.Approved)

	_, err = svc.DeclineMonthly(context.Background(), manager, b.ID)
	assert.True(t, errors.Is(err, ErrAlreadyDecided))

	_, err = svc.ApproveMonthly(context.Background(), manager, 99)
	assert.True(t, errors.Is(err, ErrNotFound))
}
