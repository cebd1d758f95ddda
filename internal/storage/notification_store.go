package storage

import (
	"context"
	"time"
)

// Log entry statuses.
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped" // disabled feature or open circuit, no attempt made
)

// NotificationLogEntry records a single send attempt.
type NotificationLogEntry struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"` // booking_confirmation or test
	BookingRef string    `json:"booking_ref,omitempty"`
	Phone      string    `json:"phone"` // masked to the last four digits
	Status     string    `json:"status"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	ErrorMsg   string    `json:"error_msg,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// NotificationStore defines the interface for persisting the delivery log.
type NotificationStore interface {
	// LogNotification records a send attempt.
	LogNotification(ctx context.Context, entry NotificationLogEntry) error
	// ListNotifications returns the most recent log entries, up to limit.
	ListNotifications(ctx context.Context, limit int) ([]NotificationLogEntry, error)
}

// MaskPhone hides all but the last four digits of a phone number so the
// delivery log never stores a full recipient number.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return "***" + phone[len(phone)-4:]
}
