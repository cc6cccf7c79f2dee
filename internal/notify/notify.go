// Package notify decides when the user gets told about finished analysis
// tasks, at most once per task for the lifetime of the notified set.
package notify

import (
	"context"
	"fmt"
	"io"
)

// Permission is the state of the user-granted notification capability.
type Permission string

const (
	// PermissionGranted means notifications may be delivered.
	PermissionGranted Permission = "granted"
	// PermissionDenied means the user refused notifications.
	PermissionDenied Permission = "denied"
	// PermissionDefault means the user was never asked.
	PermissionDefault Permission = "default"
	// PermissionUnsupported means no delivery channel is available.
	PermissionUnsupported Permission = "unsupported"
)

// Notifier delivers one user-facing notification.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// WriterNotifier delivers notifications to a terminal writer, with a bell.
type WriterNotifier struct {
	writer io.Writer
}

// NewWriterNotifier creates a notifier that writes to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{writer: w}
}

// Notify writes the notification.
func (n *WriterNotifier) Notify(ctx context.Context, title, body string) error {
	_, err := fmt.Fprintf(n.writer, "\a[%s] %s\n", title, body)
	if err != nil {
		return fmt.Errorf("could not write notification: %w", err)
	}
	return nil
}
