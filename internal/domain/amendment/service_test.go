package amendment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/deputy"
	"hrpay/internal/platform/validation"
)

type memStore struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]Amendment
	history []HistoryEntry
	syncs   map[int64]int

	superseded []int64
}

func newMemStore() *memStore {
	return &memStore{rows: map[int64]Amendment{}, syncs: map[int64]int{}}
}

func (m *memStore) Create(_ context.Context, a Amendment) (Amendment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	m.rows[a.ID] = a
	m.history = append(m.history, HistoryEntry{AmendmentID: a.ID, Action: HistoryCreated, ToStatus: a.Status, ActorID: a.CreatedBy})
	return a, nil
}

func (m *memStore) Get(_ context.Context, id int64) (Amendment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return Amendment{}, ErrNotFound
	}
	return a, nil
}

func (m *memStore) Transition(_ context.Context, id int64, status Status, actorID, note string) (Amendment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return Amendment{}, ErrNotFound
	}
	if a.Status != StatusPendingReview {
		return Amendment{}, ErrNotPending
	}
	a.Status = status
	a.ReviewedBy = actorID
	m.rows[id] = a
	m.history = append(m.history, HistoryEntry{AmendmentID: id, Action: string(status), FromStatus: StatusPendingReview, ToStatus: status, ActorID: actorID, Note: note})
	return a, nil
}

func (m *memStore) RecordSync(_ context.Context, id int64, sync SyncRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.rows[id]
	a.SyncedToDeputy = sync.Synced
	a.DeputyFailureReason = sync.FailureReason
	m.rows[id] = a
	m.syncs[id]++
	m.superseded = append(m.superseded, sync.Superseded...)
	m.history = append(m.history, HistoryEntry{AmendmentID: id, Action: HistoryDeputySync, ActorID: sync.ActorID, Note: sync.Note})
	return nil
}

func (m *memStore) History(_ context.Context, id int64) ([]HistoryEntry, error) {
	var out []HistoryEntry
	for _, h := range m.history {
		if h.AmendmentID == id {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memStore) ListPending(context.Context, int, int) ([]Amendment, error) {
	var out []Amendment
	for _, a := range m.rows {
		if a.Status == StatusPendingReview {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ApprovedForPeriod(_ context.Context, staffID int64, start, end time.Time) ([]Amendment, error) {
	var out []Amendment
	for _, a := range m.rows {
		if a.StaffID == staffID && a.Status == StatusApproved && !a.SyncedToDeputy && !a.NewStart.Before(start) && a.NewStart.Before(end) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) FailedSyncs(context.Context, int) ([]Amendment, error) {
	var out []Amendment
	for id := int64(1); id <= m.nextID; id++ {
		if a, ok := m.rows[id]; ok && a.Status == StatusApproved && !a.SyncedToDeputy {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeSyncer struct {
	results []deputy.Result
	calls   []deputy.Request
}

func (f *fakeSyncer) Sync(_ context.Context, req deputy.Request) deputy.Result {
	f.calls = append(f.calls, req)
	if len(f.results) == 0 {
		return deputy.Result{Synced: true, Action: deputy.ActionUpdate}
	}
	res := f.results[0]
	f.results = f.results[1:]
	return res
}

type staffIDs map[int64]int64

func (s staffIDs) DeputyEmployeeID(_ context.Context, staffID int64) (int64, error) {
	return s[staffID], nil
}

type notes struct{ types []string }

func (n *notes) Notify(_ context.Context, _ int64, ntype, _, _ string) error {
	n.types = append(n.types, ntype)
	return nil
}

var (
	manager = auth.Actor{UserID: "mgr", StaffID: 1, Role: auth.RoleManager}
	worker  = auth.Actor{UserID: "w", StaffID: 11, Role: auth.RoleStaff}
)

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func input() Amendment {
	return Amendment{
		StaffID:       11,
		PayPeriodID:   3,
		OutletID:      2,
		OriginalStart: at("2025-03-10 09:00"),
		OriginalEnd:   at("2025-03-10 17:00"),
		NewStart:      at("2025-03-10 08:30"),
		NewEnd:        at("2025-03-10 17:00"),
		Reason:        "opened early",
	}
}

func TestNewValidates(t *testing.T) {
	in := input()
	in.NewEnd = in.NewStart.Add(-time.Hour)
	_, err := New(in)
	require.True(t, validation.IsValidation(err))

	a, err := New(input())
	require.NoError(t, err)
	assert.Equal(t, StatusPendingReview, a.Status)
	assert.Equal(t, "2025-03-10_09:00", a.MatchKey())
}

func TestCreateOwnOnly(t *testing.T) {
	svc := NewService(newMemStore(), &fakeSyncer{}, staffIDs{}, nil, nil)

	created, err := svc.Create(context.Background(), worker, input())
	require.NoError(t, err)
	assert.Equal(t, "w", created.CreatedBy)

	other := input()
	other.StaffID = 99
	_, err = svc.Create(context.Background(), worker, other)
	assert.True(t, errors.Is(err, auth.ErrForbidden))

	_, err = svc.Create(context.Background(), manager, other)
	assert.NoError(t, err)
}

func TestApproveSyncsAndRecordsHistory(t *testing.T) {
	store := newMemStore()
	syncer := &fakeSyncer{}
	n := &notes{}
	svc := NewService(store, syncer, staffIDs{11: 555}, nil, n)

	created, err := svc.Create(context.Background(), worker, input())
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), worker, created.ID)
	require.True(t, errors.Is(err, auth.ErrForbidden))

	res, err := svc.Approve(context.Background(), manager, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, res.Amendment.Status)
	assert.True(t, res.Amendment.SyncedToDeputy)
	require.Len(t, syncer.calls, 1)
	assert.Equal(t, int64(555), syncer.calls[0].DeputyEmployeeID)
	assert.Equal(t, at("2025-03-10 08:30"), syncer.calls[0].Start)
	assert.Equal(t, []string{"amendment_approved"}, n.types)

	_, err = svc.Approve(context.Background(), manager, created.ID)
	assert.True(t, errors.Is(err, ErrNotPending))

	history, err := svc.History(context.Background(), created.ID)
	require.NoError(t, err)
	var actions []string
	for _, h := range history {
		actions = append(actions, h.Action)
	}
	assert.Equal(t, []string{HistoryCreated, string(StatusApproved), HistoryDeputySync}, actions)
}

func TestApproveKeepsApprovalWhenSyncFails(t *testing.T) {
	store := newMemStore()
	syncer := &fakeSyncer{results: []deputy.Result{{FailureReason: "Deputy API timeout or error: boom"}}}
	n := &notes{}
	svc := NewService(store, syncer, staffIDs{11: 555}, nil, n)

	created, err := svc.Create(context.Background(), worker, input())
	require.NoError(t, err)
	res, err := svc.Approve(context.Background(), manager, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, res.Amendment.Status)
	assert.False(t, res.Amendment.SyncedToDeputy)
	assert.Contains(t, n.types, "deputy_sync_failed")

	stats, err := svc.ResyncFailed(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, ResyncStats{Attempted: 1, Synced: 1}, stats)
	got, _ := store.Get(context.Background(), created.ID)
	assert.True(t, got.SyncedToDeputy)
	assert.Equal(t, 2, store.syncs[created.ID])
}

func TestSyncedReplacementRecordsSupersededRows(t *testing.T) {
	store := newMemStore()
	syncer := &fakeSyncer{results: []deputy.Result{{
		Synced: true,
		Action: deputy.ActionReplace,
		Details: []deputy.Detail{
			{Action: deputy.ActionReplace, TimesheetID: 901, WasApproved: true, ReplacedIDs: []int64{300}},
			{Action: deputy.ActionUpdate, TimesheetID: 302, ReplacedIDs: []int64{999}, Error: "Failed to update timesheet: boom"},
		},
	}}}
	svc := NewService(store, syncer, staffIDs{11: 555}, nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, worker, input())
	require.NoError(t, err)
	_, err = svc.Approve(ctx, manager, created.ID)
	require.NoError(t, err)

	assert.Equal(t, []int64{300}, store.superseded)
	history, err := svc.History(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "replace_approved: 901,302 (replaces 300)", history[len(history)-1].Note)

	approved, err := svc.ApprovedForPeriod(ctx, 11, at("2025-03-10 00:00"), at("2025-03-17 00:00"))
	require.NoError(t, err)
	assert.Empty(t, approved)
}

func TestDeclineNeedsReason(t *testing.T) {
	svc := NewService(newMemStore(), &fakeSyncer{}, staffIDs{}, nil, nil)
	created, err := svc.Create(context.Background(), worker, input())
	require.NoError(t, err)

	_, err = svc.Decline(context.Background(), manager, created.ID, "  ")
	assert.True(t, validation.IsValidation(err))

	declined, err := svc.Decline(context.Background(), manager, created.ID, "not rostered")
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, declined.Status)

	_, err = svc.Approve(context.Background(), manager, created.ID)
	assert.True(t, errors.Is(err, ErrNotPending))

	_, err = svc.Decline(context.Background(), manager, 404, "x")
	assert.True(t, errors.Is(err, ErrNotFound))
}
