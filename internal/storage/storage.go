package storage

import (
	"context"
)

// Repository is the interface for the client's durable state: the set of
// task ids that already produced a notification and the notification
// permission setting. Task state itself is never persisted.
type Repository interface {
	// ListNotified returns the notified task ids, oldest first.
	ListNotified(ctx context.Context) ([]string, error)
	// AddNotified records a task id, evicting the oldest entries past limit.
	AddNotified(ctx context.Context, taskID string, limit int) error
	// GetNotifyPermission returns the stored permission value, "" when unset.
	GetNotifyPermission(ctx context.Context) (string, error)
	// SetNotifyPermission stores the permission value.
	SetNotifyPermission(ctx context.Context, value string) error
}
