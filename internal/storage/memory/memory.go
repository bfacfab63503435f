package memory

// Package memory provides a simple in-memory implementation used for development and tests.
// Every value handed in or out is copied so callers never alias stored entry slices.
import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/tuition/internal/errs"
	"github.com/tinoosan/tuition/internal/ledger"
	"github.com/tinoosan/tuition/internal/period"
	"github.com/tinoosan/tuition/internal/service/notify"
	"github.com/tinoosan/tuition/internal/service/student"
	"github.com/tinoosan/tuition/internal/service/tuition"
)

// Store is an in-memory implementation of every repository and writer used by the services.
// It is guarded by an RWMutex for concurrent reads/writes.
type Store struct {
	mu             sync.RWMutex
	students       map[uuid.UUID]ledger.Student
	studentNumbers map[string]uuid.UUID
	ledgers        map[uuid.UUID]ledger.Ledger
	// periodIdx enforces one ledger per (student, school year, term key).
	periodIdx     map[string]uuid.UUID
	notifications map[uuid.UUID]ledger.Notification
}

// New constructs an empty in-memory store.
func New() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Reset drops all data.
func (s *Store) Reset() {
	s.mu.Lock()
	s.students = map[uuid.UUID]ledger.Student{}
	s.studentNumbers = map[string]uuid.UUID{}
	s.ledgers = map[uuid.UUID]ledger.Ledger{}
	s.periodIdx = map[string]uuid.UUID{}
	s.notifications = map[uuid.UUID]ledger.Notification{}
	s.mu.Unlock()
}

// Ready always succeeds for the in-memory store.
func (s *Store) Ready(context.Context) error { return nil }

// --- Students ---

// CreateStudent implements student.Writer.
func (s *Store) CreateStudent(_ context.Context, st ledger.Student) (ledger.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.studentNumbers[st.StudentNumber]; ok {
		return ledger.Student{}, errs.ErrDuplicateStudent
	}
	s.students[st.ID] = st
	s.studentNumbers[st.StudentNumber] = st.ID
	return st, nil
}

// UpdateStudent implements student.Writer.
func (s *Store) UpdateStudent(_ context.Context, st ledger.Student) (ledger.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.students[st.ID]
	if !ok {
		return ledger.Student{}, errs.ErrStudentNotFound
	}
	if cur.StudentNumber != st.StudentNumber {
		delete(s.studentNumbers, cur.StudentNumber)
		s.studentNumbers[st.StudentNumber] = st.ID
	}
	s.students[st.ID] = st
	return st, nil
}

// GetStudent implements student.Repo and tuition.StudentReader.
func (s *Store) GetStudent(_ context.Context, id uuid.UUID) (ledger.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return ledger.Student{}, errs.ErrStudentNotFound
	}
	return st, nil
}

// ListStudents returns students ordered by last name, first name, student number.
func (s *Store) ListStudents(_ context.Context, f student.Filter) ([]ledger.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Student, 0, len(s.students))
	for _, st := range s.students {
		if f.Match(st) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].StudentNumber < out[j].StudentNumber
	})
	return out, nil
}

// --- Ledgers ---

// CreateLedger implements tuition.Writer.
func (s *Store) CreateLedger(_ context.Context, l ledger.Ledger) (ledger.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := period.Key(l.StudentID, l.SchoolYear, l.Term)
	if _, ok := s.periodIdx[key]; ok {
		return ledger.Ledger{}, errs.ErrDuplicateLedger
	}
	s.ledgers[l.ID] = l.Clone()
	s.periodIdx[key] = l.ID
	return l.Clone(), nil
}

// SaveLedger implements tuition.Writer.
func (s *Store) SaveLedger(_ context.Context, l ledger.Ledger) (ledger.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.ledgers[l.ID]
	if !ok {
		return ledger.Ledger{}, errs.ErrLedgerNotFound
	}
	oldKey := period.Key(cur.StudentID, cur.SchoolYear, cur.Term)
	newKey := period.Key(l.StudentID, l.SchoolYear, l.Term)
	if oldKey != newKey {
		if other, taken := s.periodIdx[newKey]; taken && other != l.ID {
			return ledger.Ledger{}, errs.ErrDuplicateLedger
		}
		delete(s.periodIdx, oldKey)
		s.periodIdx[newKey] = l.ID
	}
	s.ledgers[l.ID] = l.Clone()
	return l.Clone(), nil
}

// DeleteLedger implements tuition.Writer. Entries go with the ledger.
func (s *Store) DeleteLedger(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[id]
	if !ok {
		return errs.ErrLedgerNotFound
	}
	delete(s.periodIdx, period.Key(l.StudentID, l.SchoolYear, l.Term))
	delete(s.ledgers, id)
	return nil
}

// MarkOverdue implements notify.LedgerWriter. Only the status changes; balances are untouched.
// A ledger paid off since it was listed is left alone and reported as not flagged.
func (s *Store) MarkOverdue(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[id]
	if !ok {
		return false, errs.ErrLedgerNotFound
	}
	if !l.Outstanding() {
		return false, nil
	}
	l.Status = ledger.StatusOverdue
	l.UpdatedAt = at
	s.ledgers[id] = l
	return true, nil
}

// GetLedger implements tuition.Repo.
func (s *Store) GetLedger(_ context.Context, id uuid.UUID) (ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[id]
	if !ok {
		return ledger.Ledger{}, errs.ErrLedgerNotFound
	}
	return l.Clone(), nil
}

// LedgerByPeriod implements tuition.Repo.
func (s *Store) LedgerByPeriod(_ context.Context, studentID uuid.UUID, schoolYear, termKey string) (ledger.Ledger, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.periodIdx[period.Key(studentID, schoolYear, termKey)]
	if !ok {
		return ledger.Ledger{}, false, nil
	}
	return s.ledgers[id].Clone(), true, nil
}

// ListLedgers returns matching ledgers ordered by due date, then school year and term.
func (s *Store) ListLedgers(_ context.Context, f tuition.Filter) ([]ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Ledger, 0)
	for _, l := range s.ledgers {
		if f.Match(l) {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		if out[i].SchoolYear != out[j].SchoolYear {
			return out[i].SchoolYear < out[j].SchoolYear
		}
		return out[i].Term < out[j].Term
	})
	return out, nil
}

// --- Notifications ---

// CreateNotification implements notify.Store.
func (s *Store) CreateNotification(_ context.Context, n ledger.Notification) (ledger.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = n
	return n, nil
}

// RecentNotificationExists implements notify.Store.
func (s *Store) RecentNotificationExists(_ context.Context, k notify.DedupKey, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.notifications {
		if notify.KeyOf(n) == k && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// GetNotification implements notify.Store.
func (s *Store) GetNotification(_ context.Context, id uuid.UUID) (ledger.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return ledger.Notification{}, errs.ErrNotificationNotFound
	}
	return n, nil
}

// ListNotifications returns matching notifications, newest first.
func (s *Store) ListNotifications(_ context.Context, f notify.Filter) ([]ledger.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Notification, 0)
	for _, n := range s.notifications {
		if f.Match(n) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// UpdateNotification implements notify.Store.
func (s *Store) UpdateNotification(_ context.Context, n ledger.Notification) (ledger.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; !ok {
		return ledger.Notification{}, errs.ErrNotificationNotFound
	}
	s.notifications[n.ID] = n
	return n, nil
}

// DeleteNotification implements notify.Store.
func (s *Store) DeleteNotification(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[id]; !ok {
		return errs.ErrNotificationNotFound
	}
	delete(s.notifications, id)
	return nil
}
