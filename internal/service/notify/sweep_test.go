package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/tuition/internal/errs"
	"github.com/tinoosan/tuition/internal/ledger"
	"github.com/tinoosan/tuition/internal/service/notify"
	"github.com/tinoosan/tuition/internal/service/tuition"
	"github.com/tinoosan/tuition/internal/storage/memory"
)

var t0 = time.Date(2024, 9, 10, 8, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type claimer struct {
	claimed map[string]bool
	err     error
}

func (c *claimer) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	if c.claimed[key] {
		return false, nil
	}
	c.claimed[key] = true
	return true, nil
}

func seedLedger(t *testing.T, store *memory.Store, studentID uuid.UUID, term string, due time.Time, total, paid string) ledger.Ledger {
	t.Helper()
	l := ledger.Ledger{
		ID:          uuid.New(),
		StudentID:   studentID,
		SchoolYear:  "2024-2025",
		Term:        term,
		TotalAmount: decimal.MustParse(total),
		DueDate:     due,
	}
	if paid != "0" {
		l.Entries = []ledger.Entry{{ID: uuid.New(), Amount: decimal.MustParse(paid), PaymentDate: t0.Add(-30 * 24 * time.Hour)}}
	}
	ledger.Recalculate(&l)
	saved, err := store.CreateLedger(context.Background(), l)
	require.NoError(t, err)
	return saved
}

func newSweeper(store *memory.Store, c *clock) *notify.Sweeper {
	return &notify.Sweeper{
		Ledgers:       store,
		LedgerWriter:  store,
		Notifications: store,
		Clock:         c.Now,
		Lookahead:     72 * time.Hour,
		DedupWindow:   24 * time.Hour,
	}
}

func TestRun_RemindersAndOverdue(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sid := uuid.New()
	dueSoon := seedLedger(t, store, sid, "1st Term", t0.Add(48*time.Hour), "10000", "4000")
	overdue := seedLedger(t, store, sid, "2nd Term", t0.Add(-time.Hour), "10000", "0")
	seedLedger(t, store, sid, "3rd Term", t0.Add(10*24*time.Hour), "10000", "0")      // beyond lookahead
	paidPast := seedLedger(t, store, sid, "Summer", t0.Add(-48*time.Hour), "500", "500") // settled

	c := &clock{now: t0}
	rep, err := newSweeper(store, c).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Scanned)
	assert.Equal(t, 1, rep.Reminders)
	assert.Equal(t, 1, rep.Overdue)
	assert.Equal(t, 1, rep.FlaggedOverdue)

	got, err := store.GetLedger(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusOverdue, got.Status)
	assert.Zero(t, got.Balance.Cmp(overdue.Balance), "balances untouched")

	got, err = store.GetLedger(ctx, dueSoon.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPartiallyPaid, got.Status)
	got, err = store.GetLedger(ctx, paidPast.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, got.Status)

	ns, err := store.ListNotifications(ctx, notify.Filter{StudentID: sid})
	require.NoError(t, err)
	require.Len(t, ns, 2)
	types := map[ledger.NotificationType]ledger.Notification{}
	for _, n := range ns {
		types[n.Type] = n
		assert.Equal(t, t0, n.CreatedAt)
		assert.Equal(t, "2024-2025", n.SchoolYear)
	}
	assert.Equal(t, dueSoon.ID, types[ledger.NotificationReminder].LedgerID)
	assert.Equal(t, overdue.ID, types[ledger.NotificationOverdue].LedgerID)
}

// settlingRepo pays every listed ledger in full right after listing it, as a clerk might while
// the sweep is running.
type settlingRepo struct {
	store *memory.Store
}

func (r settlingRepo) ListLedgers(ctx context.Context, f tuition.Filter) ([]ledger.Ledger, error) {
	ls, err := r.store.ListLedgers(ctx, f)
	if err != nil {
		return nil, err
	}
	for _, l := range ls {
		paid := l.Clone()
		paid.Entries = append(paid.Entries, ledger.Entry{ID: uuid.New(), Amount: l.Balance, PaymentDate: t0})
		ledger.Recalculate(&paid)
		if _, err := r.store.SaveLedger(ctx, paid); err != nil {
			return nil, err
		}
	}
	return ls, nil
}

func TestRun_LedgerPaidDuringSweepIsNotFlagged(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sid := uuid.New()
	l := seedLedger(t, store, sid, "1st Term", t0.Add(-time.Hour), "1000", "200")

	sw := newSweeper(store, &clock{now: t0})
	sw.Ledgers = settlingRepo{store: store}
	rep, err := sw.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.FlaggedOverdue)
	assert.Equal(t, 0, rep.Overdue)
	assert.Equal(t, 1, rep.Skipped)

	got, err := store.GetLedger(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, got.Status)
	assert.True(t, got.Balance.IsZero())

	ns, err := store.ListNotifications(ctx, notify.Filter{})
	require.NoError(t, err)
	assert.Empty(t, ns)
}

func TestMarkOverdue_MemoryStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	open := seedLedger(t, store, uuid.New(), "1st Term", t0, "1000", "0")
	settled := seedLedger(t, store, uuid.New(), "1st Term", t0, "1000", "1000")

	flagged, err := store.MarkOverdue(ctx, open.ID, t0)
	require.NoError(t, err)
	assert.True(t, flagged)

	flagged, err = store.MarkOverdue(ctx, settled.ID, t0)
	require.NoError(t, err)
	assert.False(t, flagged)
	got, err := store.GetLedger(ctx, settled.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, got.Status)

	_, err = store.MarkOverdue(ctx, uuid.New(), t0)
	assert.ErrorIs(t, err, errs.ErrLedgerNotFound)
}

func TestRun_DedupWindow(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sid := uuid.New()
	seedLedger(t, store, sid, "1st Term", t0.Add(-time.Hour), "1000", "0")
	c := &clock{now: t0}
	sw := newSweeper(store, c)

	_, err := sw.Run(ctx)
	require.NoError(t, err)

	c.now = t0.Add(23 * time.Hour)
	rep, err := sw.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Overdue)
	assert.Equal(t, 0, rep.FlaggedOverdue, "already overdue")
	assert.Equal(t, 1, rep.Skipped)

	c.now = t0.Add(25 * time.Hour)
	rep, err = sw.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Overdue)

	ns, err := store.ListNotifications(ctx, notify.Filter{})
	require.NoError(t, err)
	assert.Len(t, ns, 2)
}

func TestRun_ReminderWindowBoundaries(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedLedger(t, store, uuid.New(), "A", t0, "100", "0")                     // due exactly now
	seedLedger(t, store, uuid.New(), "B", t0.Add(72*time.Hour), "100", "0")   // due at the horizon
	seedLedger(t, store, uuid.New(), "C", t0.Add(72*time.Hour+1), "100", "0") // just past it

	rep, err := newSweeper(store, &clock{now: t0}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Reminders)
	assert.Equal(t, 0, rep.FlaggedOverdue)
}

func TestRun_ClaimerGuardsReplicas(t *testing.T) {
	ctx := context.Background()
	sid := uuid.New()
	cl := &claimer{claimed: map[string]bool{}}

	// Two replicas with separate stores share one claimer; only the first emits.
	for i, want := range []int{1, 0} {
		store := memory.New()
		seedLedger(t, store, sid, "1st Term", t0.Add(time.Hour), "100", "0")
		sw := newSweeper(store, &clock{now: t0})
		sw.Claimer = cl
		rep, err := sw.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, rep.Reminders, "replica %d", i)
	}
	assert.Len(t, cl.claimed, 1)
}

func TestRun_ClaimErrorFallsBackToStoreCheck(t *testing.T) {
	store := memory.New()
	seedLedger(t, store, uuid.New(), "1st Term", t0.Add(time.Hour), "100", "0")
	sw := newSweeper(store, &clock{now: t0})
	sw.Claimer = &claimer{claimed: map[string]bool{}, err: errors.New("redis down")}

	rep, err := sw.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Reminders)
}

func TestStart_StopsOnCancel(t *testing.T) {
	store := memory.New()
	seedLedger(t, store, uuid.New(), "1st Term", t0.Add(time.Hour), "100", "0")
	sw := newSweeper(store, &clock{now: t0})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Start(ctx, time.Hour)
		close(done)
	}()
	require.Eventually(t, func() bool {
		ns, _ := store.ListNotifications(context.Background(), notify.Filter{})
		return len(ns) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestFeed(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sid := uuid.New()
	seedLedger(t, store, sid, "1st Term", t0.Add(time.Hour), "100", "0")
	seedLedger(t, store, uuid.New(), "1st Term", t0.Add(-time.Hour), "100", "0")
	_, err := newSweeper(store, &clock{now: t0}).Run(ctx)
	require.NoError(t, err)

	feed := notify.NewFeed(store)
	all, err := feed.List(ctx, notify.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	mine, err := feed.List(ctx, notify.Filter{StudentID: sid})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	n, err := feed.MarkRead(ctx, mine[0].ID)
	require.NoError(t, err)
	assert.True(t, n.Read)
	n, err = feed.MarkRead(ctx, mine[0].ID)
	require.NoError(t, err)
	assert.True(t, n.Read)

	unread, err := feed.List(ctx, notify.Filter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	limited, err := feed.List(ctx, notify.Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, feed.Delete(ctx, mine[0].ID))
	assert.Error(t, feed.Delete(ctx, mine[0].ID))
	_, err = feed.MarkRead(ctx, uuid.Nil)
	assert.Error(t, err)
}
