// Package notify runs the periodic deadline sweep over tuition ledgers and serves the resulting
// notification feed.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/tuition/internal/events"
	"github.com/tinoosan/tuition/internal/ledger"
	"github.com/tinoosan/tuition/internal/service/tuition"
)

// LedgerRepo lists the ledgers the sweep scans.
type LedgerRepo interface {
	ListLedgers(ctx context.Context, f tuition.Filter) ([]ledger.Ledger, error)
}

// LedgerWriter persists the Overdue flag without touching balances or entries.
// MarkOverdue reports false when the ledger no longer has a balance.
type LedgerWriter interface {
	MarkOverdue(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// Store persists notifications.
type Store interface {
	CreateNotification(ctx context.Context, n ledger.Notification) (ledger.Notification, error)
	// RecentNotificationExists reports whether a notification with key k was created at or after since.
	RecentNotificationExists(ctx context.Context, k DedupKey, since time.Time) (bool, error)
	GetNotification(ctx context.Context, id uuid.UUID) (ledger.Notification, error)
	ListNotifications(ctx context.Context, f Filter) ([]ledger.Notification, error)
	UpdateNotification(ctx context.Context, n ledger.Notification) (ledger.Notification, error)
	DeleteNotification(ctx context.Context, id uuid.UUID) error
}

// Claimer grants a key to exactly one caller until ttl expires. It keeps replicas sharing one
// store from emitting the same notification twice.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// DedupKey is the tuple two notifications must share to count as duplicates.
type DedupKey struct {
	StudentID  uuid.UUID
	Title      string
	Type       ledger.NotificationType
	SchoolYear string
}

// KeyOf returns the de-duplication key of n.
func KeyOf(n ledger.Notification) DedupKey {
	return DedupKey{StudentID: n.StudentID, Title: n.Title, Type: n.Type, SchoolYear: n.SchoolYear}
}

func (k DedupKey) String() string {
	return "notify:" + k.StudentID.String() + ":" + string(k.Type) + ":" + k.SchoolYear + ":" + k.Title
}

// Report summarises one sweep run.
type Report struct {
	StartedAt      time.Time `json:"startedAt"`
	Scanned        int       `json:"scanned"`
	Reminders      int       `json:"reminders"`
	Overdue        int       `json:"overdue"`
	FlaggedOverdue int       `json:"flaggedOverdue"`
	Skipped        int       `json:"skipped"`
}

// Sweeper scans ledgers for approaching and passed due dates. The clock and both windows are
// explicit so a run is fully determined by its inputs.
type Sweeper struct {
	Ledgers       LedgerRepo
	LedgerWriter  LedgerWriter
	Notifications Store
	// Claimer is optional.
	Claimer     Claimer
	Publisher   events.Publisher
	Log         *slog.Logger
	Clock       func() time.Time
	Lookahead   time.Duration
	DedupWindow time.Duration
}

func (s *Sweeper) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock().UTC()
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

// Run performs a single sweep. Reminders cover ledgers due within [now, now+Lookahead]; ledgers
// due before now with a positive balance are flagged Overdue.
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	now := s.now()
	rep := Report{StartedAt: now}
	sweepRuns.Inc()

	ls, err := s.Ledgers.ListLedgers(ctx, tuition.Filter{OutstandingOnly: true})
	if err != nil {
		return rep, fmt.Errorf("list ledgers: %w", err)
	}
	horizon := now.Add(s.Lookahead)
	for _, l := range ls {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Scanned++
		switch {
		case l.DueDate.Before(now):
			if l.Status != ledger.StatusOverdue {
				flagged, err := s.LedgerWriter.MarkOverdue(ctx, l.ID, now)
				if err != nil {
					return rep, fmt.Errorf("mark ledger %s overdue: %w", l.ID, err)
				}
				if !flagged {
					// paid off after the listing
					rep.Skipped++
					continue
				}
				rep.FlaggedOverdue++
				ledgersFlagged.Inc()
				s.publish(ctx, events.TopicLedgerOverdue, l.StudentID.String(), events.LedgerOverdue{
					LedgerID:   l.ID,
					StudentID:  l.StudentID,
					SchoolYear: l.SchoolYear,
					Term:       l.Term,
					Balance:    l.Balance.String(),
					DueDate:    l.DueDate,
					OccurredAt: now,
				})
			}
			created, err := s.emit(ctx, overdueNotice(l), now)
			if err != nil {
				return rep, err
			}
			if created {
				rep.Overdue++
			} else {
				rep.Skipped++
			}
		case !l.DueDate.After(horizon):
			created, err := s.emit(ctx, reminderNotice(l), now)
			if err != nil {
				return rep, err
			}
			if created {
				rep.Reminders++
			} else {
				rep.Skipped++
			}
		}
	}
	s.logger().InfoContext(ctx, "sweep finished",
		"scanned", rep.Scanned, "reminders", rep.Reminders, "overdue", rep.Overdue,
		"flagged_overdue", rep.FlaggedOverdue, "skipped", rep.Skipped)
	return rep, nil
}

// emit writes n unless an equivalent notification exists inside the dedup window.
func (s *Sweeper) emit(ctx context.Context, n ledger.Notification, now time.Time) (bool, error) {
	key := KeyOf(n)
	exists, err := s.Notifications.RecentNotificationExists(ctx, key, now.Add(-s.DedupWindow))
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	if exists {
		return false, nil
	}
	if s.Claimer != nil {
		ok, err := s.Claimer.Claim(ctx, key.String(), s.DedupWindow)
		if err != nil {
			// The store check above already ran; a cache outage must not stop the sweep.
			s.logger().WarnContext(ctx, "notification claim failed", "key", key.String(), "err", err)
		} else if !ok {
			return false, nil
		}
	}
	n.ID = uuid.New()
	n.CreatedAt = now
	saved, err := s.Notifications.CreateNotification(ctx, n)
	if err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}
	notificationsEmitted.WithLabelValues(string(saved.Type)).Inc()
	s.publish(ctx, events.TopicNotificationCreated, saved.StudentID.String(), events.NotificationCreated{
		NotificationID: saved.ID,
		StudentID:      saved.StudentID,
		LedgerID:       saved.LedgerID,
		Type:           string(saved.Type),
		Title:          saved.Title,
		OccurredAt:     now,
	})
	return true, nil
}

func (s *Sweeper) publish(ctx context.Context, topic, key string, ev any) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.Publish(ctx, topic, key, ev); err != nil {
		s.logger().WarnContext(ctx, "publish sweep event failed", "topic", topic, "err", err)
	}
}

// Start runs the sweep immediately and then every interval until ctx is cancelled.
// Failed runs are logged and retried on the next tick.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	run := func() {
		if _, err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			sweepFailures.Inc()
			s.logger().ErrorContext(ctx, "sweep failed", "err", err)
		}
	}
	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

func reminderNotice(l ledger.Ledger) ledger.Notification {
	return ledger.Notification{
		StudentID:  l.StudentID,
		LedgerID:   l.ID,
		Type:       ledger.NotificationReminder,
		Title:      "Tuition due soon: " + l.Term,
		Message:    fmt.Sprintf("Tuition for %s %s is due on %s. Outstanding balance: %s.", l.Term, l.SchoolYear, l.DueDate.Format("Jan 2, 2006"), l.Balance.String()),
		SchoolYear: l.SchoolYear,
	}
}

func overdueNotice(l ledger.Ledger) ledger.Notification {
	return ledger.Notification{
		StudentID:  l.StudentID,
		LedgerID:   l.ID,
		Type:       ledger.NotificationOverdue,
		Title:      "Tuition overdue: " + l.Term,
		Message:    fmt.Sprintf("Tuition for %s %s was due on %s. Outstanding balance: %s.", l.Term, l.SchoolYear, l.DueDate.Format("Jan 2, 2006"), l.Balance.String()),
		SchoolYear: l.SchoolYear,
	}
}
