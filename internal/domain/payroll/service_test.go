package payroll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpay/internal/domain/amendment"
	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/bonus"
	"hrpay/internal/domain/breakpolicy"
	"hrpay/internal/domain/money"
	"hrpay/internal/domain/staff"
	"hrpay/internal/domain/timesheet"
)

var (
	admin   = auth.Actor{UserID: "u-admin", Role: auth.RolePayrollAdmin}
	worker  = auth.Actor{UserID: "u-staff", StaffID: 7, Role: auth.RoleStaff}
	payWeek = Period{Start: day("2025-03-10"), End: day("2025-03-16")}
)

type unit struct {
	staffID int64
	paidIn  int64
}

// memPayroll backs both StoreAPI and Transactor. InTx deliberately takes no
// lock of its own so overlapping calculations would be visible.
type memPayroll struct {
	mu       sync.Mutex
	nextID   int64
	payslips map[int64]Payslip
	vape     []*unit

	inside    atomic.Int32
	maxInside atomic.Int32
	txDelay   time.Duration
}

func newMemPayroll() *memPayroll {
	return &memPayroll{payslips: map[int64]Payslip{}}
}

func (m *memPayroll) InTx(ctx context.Context, fn func(tx Tx) error) error {
	n := m.inside.Add(1)
	defer m.inside.Add(-1)
	for {
		cur := m.maxInside.Load()
		if n <= cur || m.maxInside.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.txDelay > 0 {
		time.Sleep(m.txDelay)
	}
	return fn(&memTx{m: m})
}

func (m *memPayroll) Get(_ context.Context, id int64) (Payslip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payslips[id]
	if !ok {
		return Payslip{}, ErrPayslipNotFound
	}
	return p, nil
}

func (m *memPayroll) List(_ context.Context, f ListFilter) ([]Payslip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payslip
	for _, p := range m.payslips {
		if f.StaffID == 0 || p.StaffID == f.StaffID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPayroll) Count(ctx context.Context, f ListFilter) (int, error) {
	items, err := m.List(ctx, f)
	return len(items), err
}

func (m *memPayroll) Transition(_ context.Context, id int64, from []Status, to Status, actorID string) (Payslip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payslips[id]
	if !ok {
		return Payslip{}, ErrPayslipNotFound
	}
	if p.ExportedToBank {
		return Payslip{}, ErrInvalidTransition
	}
	for _, st := range from {
		if p.Status == st {
			p.Status = to
			if to == StatusApproved {
				p.ApprovedBy = actorID
			}
			m.payslips[id] = p
			return p, nil
		}
	}
	return Payslip{}, ErrInvalidTransition
}

type memTx struct {
	m *memPayroll
}

func (t *memTx) LockStaff(context.Context, int64) error { return nil }

func (t *memTx) Existing(_ context.Context, staffID int64, period Period) (Payslip, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for _, p := range t.m.payslips {
		if p.StaffID == staffID && p.PeriodStart.Equal(period.Start) && p.PeriodEnd.Equal(period.End) {
			return p, nil
		}
	}
	return Payslip{}, ErrPayslipNotFound
}

func (t *memTx) BonusSummary(_ context.Context, staffID int64, _ Period, payslipID int64) (bonus.Summary, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	var s bonus.Summary
	for _, u := range t.m.vape {
		if u.staffID == staffID && (u.paidIn == 0 || u.paidIn == payslipID) {
			s.VapeDrops++
		}
	}
	s.VapeDropAmount = bonus.VapeDropCents * money.Cents(s.VapeDrops)
	return s, nil
}

func (t *memTx) MarkBonusesPaid(_ context.Context, staffID, payslipID int64, _ Period) (bonus.Claimed, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	var c bonus.Claimed
	for _, u := range t.m.vape {
		if u.staffID == staffID && (u.paidIn == 0 || u.paidIn == payslipID) {
			u.paidIn = payslipID
			c.VapeDrops++
		}
	}
	return c, nil
}

func (t *memTx) Advances(context.Context, int64, Period) (money.Cents, error) { return 0, nil }

func (t *memTx) PendingVendDeductions(context.Context, int64) (money.Cents, error) { return 1500, nil }

func (t *memTx) UnpaidLeaveMinutes(context.Context, int64, Period) (int64, error) { return 0, nil }

func (t *memTx) UpsertPayslip(_ context.Context, p Payslip) (Payslip, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for id, existing := range t.m.payslips {
		if existing.StaffID == p.StaffID && existing.PeriodStart.Equal(p.PeriodStart) && existing.PeriodEnd.Equal(p.PeriodEnd) {
			if existing.Status != StatusCalculated && existing.Status != StatusReviewed {
				return Payslip{}, ErrPayslipLocked
			}
			p.ID = id
			t.m.payslips[id] = p
			return p, nil
		}
	}
	t.m.nextID++
	p.ID = t.m.nextID
	t.m.payslips[p.ID] = p
	return p, nil
}

type memStaff map[int64]staff.Staff

func (m memStaff) Get(_ context.Context, id int64) (staff.Staff, error) {
	s, ok := m[id]
	if !ok {
		return staff.Staff{}, staff.ErrStaffNotFound
	}
	return s, nil
}

func (m memStaff) ListActive(context.Context) ([]staff.Staff, error) {
	out := make([]staff.Staff, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	return out, nil
}

type memTimesheets map[int64][]timesheet.Timesheet

func (m memTimesheets) ListForStaff(_ context.Context, staffID int64, _, _ time.Time) ([]timesheet.Timesheet, error) {
	return m[staffID], nil
}

func (m memTimesheets) WorkedAlone(context.Context, timesheet.Timesheet) (bool, error) { return false, nil }

func (m memTimesheets) UpsertFromDeputy(context.Context, timesheet.Timesheet) error { return nil }

type notes struct {
	mu   sync.Mutex
	sent []string
}

func (n *notes) Notify(_ context.Context, _ int64, ntype, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, ntype)
	return nil
}

func newTestService(m *memPayroll, n *notes) *Service {
	members := memStaff{
		7: {ID: 7, FirstName: "Aroha", LastName: "Ngata", HourlyRate: 2500, BankAccount: "12-3456-7890123-00", KiwiSaverEnrolled: true},
		8: {ID: 8, FirstName: "Sam", LastName: "Lee", HourlyRate: 2500},
	}
	sheets := memTimesheets{
		7: {shift(1, "2025-03-10", "09:00", "17:30", 0)},
		8: {shift(2, "2025-03-11", "09:00", "13:00", 0)},
	}
	return NewService(Deps{
		Store:       m,
		Tx:          m,
		Engine:      NewEngine(EngineConfig{Breaks: breakpolicy.New(nil, nil)}),
		Staff:       members,
		Timesheets:  sheets,
		Notifier:    n,
		Concurrency: 2,
	})
}

func TestCalculateBuildsPayslip(t *testing.T) {
	m := newMemPayroll()
	m.vape = []*unit{{staffID: 7}, {staffID: 7}}
	svc := newTestService(m, &notes{})

	p, err := svc.Calculate(context.Background(), admin, 7, payWeek)
	require.NoError(t, err)

	assert.Equal(t, money.Cents(20000), p.OrdinaryPay)
	assert.Equal(t, money.Cents(1200), p.Bonuses.VapeDrops)
	assert.Equal(t, 2, p.Bonuses.VapeDropCount)
	assert.Equal(t, money.Cents(21200), p.GrossPay)
	assert.Equal(t, money.Cents(636), p.Deductions.KiwiSaver)
	assert.Equal(t, money.Cents(1500), p.Deductions.VendAccount)
	assert.Equal(t, money.Cents(2136), p.TotalDeductions)
	assert.Equal(t, money.Cents(19064), p.NetPay)
	assert.Equal(t, StatusCalculated, p.Status)
	assert.Equal(t, 8.0, p.OrdinaryHours)
	assert.Equal(t, "u-admin", p.CalculatedBy)
}

type memAmendments []amendment.Amendment

func (m memAmendments) ApprovedForPeriod(context.Context, int64, time.Time, time.Time) ([]amendment.Amendment, error) {
	return m, nil
}

func TestCalculateAfterMirrorPaysAmendedShiftOnce(t *testing.T) {
	// Deputy already holds the amended 08:00 start and the mirror copied it back.
	mirrored := memTimesheets{7: {shift(1, "2025-03-10", "08:00", "17:00", 30)}}
	members := memStaff{7: {ID: 7, FirstName: "Aroha", LastName: "Ngata", HourlyRate: 2500, BankAccount: "12-3456-7890123-00"}}
	build := func(source AmendmentSource) *Service {
		m := newMemPayroll()
		return NewService(Deps{
			Store:      m,
			Tx:         m,
			Engine:     NewEngine(EngineConfig{Breaks: breakpolicy.New(nil, nil)}),
			Staff:      members,
			Timesheets: mirrored,
			Amendments: source,
		})
	}
	synced := memAmendments{{
		ID:             5,
		StaffID:        7,
		OriginalStart:  at("2025-03-10 09:00"),
		NewStart:       at("2025-03-10 08:00"),
		NewEnd:         at("2025-03-10 17:00"),
		Status:         amendment.StatusApproved,
		SyncedToDeputy: true,
	}}

	want, err := build(memAmendments{}).Calculate(context.Background(), admin, 7, payWeek)
	require.NoError(t, err)
	got, err := build(synced).Calculate(context.Background(), admin, 7, payWeek)
	require.NoError(t, err)

	assert.Equal(t, want.OrdinaryMinutes, got.OrdinaryMinutes)
	assert.Equal(t, want.OvertimeMinutes, got.OvertimeMinutes)
	assert.Equal(t, want.GrossPay, got.GrossPay)
}

func TestCalculateRequiresPermission(t *testing.T) {
	svc := newTestService(newMemPayroll(), &notes{})
	_, err := svc.Calculate(context.Background(), worker, 7, payWeek)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = svc.Calculate(context.Background(), admin, 7, Period{Start: payWeek.End, End: payWeek.Start})
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestRecalculationKeepsOwnBonusesAndWarnsOnMissingBank(t *testing.T) {
	m := newMemPayroll()
	m.vape = []*unit{{staffID: 8}}
	svc := newTestService(m, &notes{})

	first, err := svc.Calculate(context.Background(), admin, 8, payWeek)
	require.NoError(t, err)
	second, err := svc.Calculate(context.Background(), admin, 8, payWeek)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, second.Bonuses.VapeDropCount)
	codes := []string{}
	for _, w := range second.Warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, WarningMissingBankAccount)
}

func TestConcurrentCalculationsConsumeBonusesOnce(t *testing.T) {
	m := newMemPayroll()
	m.txDelay = 2 * time.Millisecond
	m.vape = []*unit{{staffID: 7}, {staffID: 7}, {staffID: 7}}
	svc := newTestService(m, &notes{})

	var wg sync.WaitGroup
	ids := make([]int64, 8)
	errs := make([]error, 8)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := svc.Calculate(context.Background(), admin, 7, payWeek)
			ids[i], errs[i] = p.ID, err
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), m.maxInside.Load())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	for _, u := range m.vape {
		assert.Equal(t, ids[0], u.paidIn)
	}
	stored, err := m.Get(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Bonuses.VapeDropCount)
	assert.Len(t, m.payslips, 1)
}

func TestDifferentStaffRunInParallel(t *testing.T) {
	m := newMemPayroll()
	m.txDelay = 20 * time.Millisecond
	svc := newTestService(m, &notes{})

	res, err := svc.CalculateAll(context.Background(), admin, payWeek)
	require.NoError(t, err)
	assert.Len(t, res.Calculated, 2)
	assert.Empty(t, res.Failed)
	assert.Equal(t, int32(2), m.maxInside.Load())
}

func TestCalculateAllCollectsFailures(t *testing.T) {
	m := newMemPayroll()
	svc := newTestService(m, &notes{})
	m.payslips[99] = Payslip{ID: 99, StaffID: 8, PeriodStart: payWeek.Start, PeriodEnd: payWeek.End, Status: StatusApproved}
	m.nextID = 99

	res, err := svc.CalculateAll(context.Background(), admin, payWeek)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, res.Calculated)
	require.Contains(t, res.Failed, int64(8))
	assert.Equal(t, ErrPayslipLocked.Error(), res.Failed[8])
}

func TestStatusWorkflow(t *testing.T) {
	m := newMemPayroll()
	n := &notes{}
	svc := newTestService(m, n)
	ctx := context.Background()

	p, err := svc.Calculate(ctx, admin, 7, payWeek)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, admin, p.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	p, err = svc.Review(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReviewed, p.Status)

	p, err = svc.Approve(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, p.Status)
	assert.Equal(t, []string{"payslip_approved"}, n.sent)

	_, err = svc.Calculate(ctx, admin, 7, payWeek)
	assert.ErrorIs(t, err, ErrPayslipLocked)

	p, err = svc.Revert(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReviewed, p.Status)

	_, err = svc.Approve(ctx, worker, p.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestStaffSeeOnlyOwnPayslips(t *testing.T) {
	m := newMemPayroll()
	svc := newTestService(m, &notes{})
	ctx := context.Background()

	mine, err := svc.Calculate(ctx, admin, 7, payWeek)
	require.NoError(t, err)
	theirs, err := svc.Calculate(ctx, admin, 8, payWeek)
	require.NoError(t, err)

	items, total, err := svc.List(ctx, worker, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, mine.ID, items[0].ID)

	_, err = svc.Get(ctx, worker, theirs.ID)
	assert.True(t, errors.Is(err, auth.ErrForbidden))

	pdf, err := svc.PayslipPDF(ctx, worker, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}
