package notifications

import "context"

type StoreAPI interface {
	CreateNotification(ctx context.Context, staffID int64, ntype, title, body string) error
	StaffEmail(ctx context.Context, staffID int64) (string, error)
	ListNotifications(ctx context.Context, staffID int64, limit, offset int) ([]Notification, error)
	CountNotifications(ctx context.Context, staffID int64) (int, error)
	MarkRead(ctx context.Context, staffID, notificationID int64) error
}
