package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	created []Notification
	email   string
}

func (m *memStore) CreateNotification(_ context.Context, _ int64, ntype, title, body string) error {
	m.created = append(m.created, Notification{Type: ntype, Title: title, Body: body})
	return nil
}

func (m *memStore) StaffEmail(context.Context, int64) (string, error) { return m.email, nil }

func (m *memStore) ListNotifications(context.Context, int64, int, int) ([]Notification, error) {
	return m.created, nil
}

func (m *memStore) CountNotifications(context.Context, int64) (int, error) { return len(m.created), nil }

func (m *memStore) MarkRead(context.Context, int64, int64) error { return nil }

type recordingMailer struct {
	to  []string
	err error
}

func (r *recordingMailer) Send(_ context.Context, _, to, _, _ string) error {
	r.to = append(r.to, to)
	return r.err
}

func TestNotifySendsEmailWhenAddressKnown(t *testing.T) {
	store := &memStore{email: "sam@example.co.nz"}
	mailer := &recordingMailer{}
	svc := New(store, mailer, "")

	require.NoError(t, svc.Notify(context.Background(), 4, TypeAmendmentApproved, "Approved", "ok"))
	assert.Len(t, store.created, 1)
	assert.Equal(t, []string{"sam@example.co.nz"}, mailer.to)
}

func TestNotifyIgnoresMailFailure(t *testing.T) {
	store := &memStore{email: "sam@example.co.nz"}
	svc := New(store, &recordingMailer{err: errors.New("smtp down")}, "payroll@example.co.nz")

	require.NoError(t, svc.Notify(context.Background(), 4, TypePayslipApproved, "Payslip", "ready"))
	assert.Len(t, store.created, 1)
}

func TestNotifySkipsEmailWithoutAddress(t *testing.T) {
	mailer := &recordingMailer{}
	svc := New(&memStore{}, mailer, "")
	require.NoError(t, svc.Notify(context.Background(), 4, TypeAmendmentDeclined, "Declined", "no"))
	assert.Empty(t, mailer.to)
}
