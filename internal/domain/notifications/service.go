package notifications

import (
	"context"
	"log/slog"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// Notifier is what domain services depend on.
type Notifier interface {
	Notify(ctx context.Context, staffID int64, ntype, title, body string) error
}

type Service struct {
	store StoreAPI
	// Mailer is optional. Email failures are logged and never returned.
	Mailer Mailer
	From   string
}

func New(store StoreAPI, mailer Mailer, from string) *Service {
	if from == "" {
		from = "no-reply@example.co.nz"
	}
	return &Service{store: store, Mailer: mailer, From: from}
}

func (s *Service) Notify(ctx context.Context, staffID int64, ntype, title, body string) error {
	if err := s.store.CreateNotification(ctx, staffID, ntype, title, body); err != nil {
		return err
	}
	if s.Mailer == nil {
		return nil
	}

	email, err := s.store.StaffEmail(ctx, staffID)
	if err != nil {
		slog.Warn("notification email lookup failed", "staffId", staffID, "err", err)
		return nil
	}
	if email == "" {
		return nil
	}
	if err := s.Mailer.Send(ctx, s.From, email, title, body); err != nil {
		slog.Warn("notification email send failed", "staffId", staffID, "type", ntype, "err", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, staffID int64, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, staffID, limit, offset)
}

func (s *Service) Count(ctx context.Context, staffID int64) (int, error) {
	return s.store.CountNotifications(ctx, staffID)
}

func (s *Service) MarkRead(ctx context.Context, staffID, notificationID int64) error {
	return s.store.MarkRead(ctx, staffID, notificationID)
}

// Nop drops notifications.
type Nop struct{}

func (Nop) Notify(context.Context, int64, string, string, string) error { return nil }
