// Package events defines the domain events the tuition service emits and the port used to
// publish them. Publishing is best effort: callers log failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	TopicPaymentRecorded     = "tuition.payment_recorded"
	TopicLedgerOverdue       = "tuition.ledger_overdue"
	TopicNotificationCreated = "tuition.notification_created"
)

// Publisher publishes one event, keyed for partitioning (ledger or student id).
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// PaymentRecorded is emitted after a new payment has been persisted.
type PaymentRecorded struct {
	LedgerID      uuid.UUID `json:"ledgerId"`
	StudentID     uuid.UUID `json:"studentId"`
	EntryID       uuid.UUID `json:"entryId"`
	Amount        string    `json:"amount"`
	Balance       string    `json:"balance"`
	Status        string    `json:"status"`
	ReceiptNumber string    `json:"receiptNumber"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// LedgerOverdue is emitted when the sweep flips a ledger to Overdue.
type LedgerOverdue struct {
	LedgerID   uuid.UUID `json:"ledgerId"`
	StudentID  uuid.UUID `json:"studentId"`
	SchoolYear string    `json:"schoolYear"`
	Term       string    `json:"term"`
	Balance    string    `json:"balance"`
	DueDate    time.Time `json:"dueDate"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NotificationCreated mirrors a notification written to the feed.
type NotificationCreated struct {
	NotificationID uuid.UUID `json:"notificationId"`
	StudentID      uuid.UUID `json:"studentId"`
	LedgerID       uuid.UUID `json:"ledgerId"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// LogPublisher writes events to the structured log. It is the default when no broker is configured.
type LogPublisher struct {
	Log *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.Log.InfoContext(ctx, "event", "topic", topic, "key", key, "payload", string(b))
	return nil
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) error { return nil }
