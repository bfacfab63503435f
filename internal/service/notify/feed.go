package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/tinoosan/tuition/internal/errs"
	"github.com/tinoosan/tuition/internal/ledger"
)

// Filter narrows feed listings.
type Filter struct {
	StudentID  uuid.UUID
	UnreadOnly bool
	// Limit caps the result; zero means no cap.
	Limit int
}

func (f Filter) Match(n ledger.Notification) bool {
	if f.StudentID != uuid.Nil && n.StudentID != f.StudentID {
		return false
	}
	if f.UnreadOnly && n.Read {
		return false
	}
	return true
}

// Feed serves the notification list to the finance office.
type Feed interface {
	List(ctx context.Context, f Filter) ([]ledger.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) (ledger.Notification, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type feed struct {
	store Store
}

func NewFeed(store Store) Feed { return &feed{store: store} }

func (f *feed) List(ctx context.Context, flt Filter) ([]ledger.Notification, error) {
	if flt.Limit < 0 {
		return nil, errs.Field("limit", "must not be negative")
	}
	return f.store.ListNotifications(ctx, flt)
}

// MarkRead is idempotent.
func (f *feed) MarkRead(ctx context.Context, id uuid.UUID) (ledger.Notification, error) {
	if id == uuid.Nil {
		return ledger.Notification{}, errs.ErrInvalid
	}
	n, err := f.store.GetNotification(ctx, id)
	if err != nil {
		return ledger.Notification{}, err
	}
	if n.Read {
		return n, nil
	}
	n.Read = true
	return f.store.UpdateNotification(ctx, n)
}

func (f *feed) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errs.ErrInvalid
	}
	return f.store.DeleteNotification(ctx, id)
}
