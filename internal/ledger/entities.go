package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
)

// Status is the derived payment position of a tuition ledger.
type Status string

const (
	// StatusPaid means nothing remains owed.
	StatusPaid Status = "Paid"
	// StatusPartiallyPaid means some, but not all, of the total was paid.
	StatusPartiallyPaid Status = "PartiallyPaid"
	// StatusUnpaid means no effective payment has been applied.
	StatusUnpaid Status = "Unpaid"
	// StatusOverdue is only ever set by the notification sweep once the due date passed.
	StatusOverdue Status = "Overdue"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPaid, StatusPartiallyPaid, StatusUnpaid, StatusOverdue:
		return true
	}
	return false
}

// Student is the billed party. Ledgers may only be opened for existing, active students.
type Student struct {
	ID            uuid.UUID
	StudentNumber string
	FirstName     string
	LastName      string
	GradeLevel    string
	Section       string
	GuardianName  string
	GuardianEmail string
	GuardianPhone string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FullName joins first and last name for display on receipts and notifications.
func (s Student) FullName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// Ledger is a student's tuition billing record for one school year and term.
type Ledger struct {
	ID          uuid.UUID
	StudentID   uuid.UUID
	SchoolYear  string
	Term        string
	TotalAmount decimal.Decimal
	// AmountPaid, Balance and Status are derived by Recalculate.
	AmountPaid decimal.Decimal
	Balance    decimal.Decimal
	Status     Status
	DueDate    time.Time
	Entries    []Entry
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Entry is one recorded payment against a ledger.
type Entry struct {
	ID            uuid.UUID
	Amount        decimal.Decimal
	PaymentDate   time.Time
	ReceiptNumber string
	PaymentMethod string
	Remarks       string
	// BalanceAfterPayment is output-only; Recalculate always overwrites it.
	BalanceAfterPayment decimal.Decimal
}

// Entry returns a pointer to the entry with the given id, or nil.
func (l *Ledger) Entry(id uuid.UUID) *Entry {
	for i := range l.Entries {
		if l.Entries[i].ID == id {
			return &l.Entries[i]
		}
	}
	return nil
}

// RemoveEntry drops the entry with the given id, keeping the relative order of the rest.
// It reports whether an entry was removed.
func (l *Ledger) RemoveEntry(id uuid.UUID) bool {
	for i := range l.Entries {
		if l.Entries[i].ID == id {
			l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Outstanding reports whether anything is still owed on the ledger.
func (l Ledger) Outstanding() bool { return l.Balance.Sign() > 0 }

// Clone returns a deep copy so stores never share the entries slice with callers.
func (l Ledger) Clone() Ledger {
	out := l
	if l.Entries != nil {
		out.Entries = make([]Entry, len(l.Entries))
		copy(out.Entries, l.Entries)
	}
	return out
}

// NotificationType classifies notifications emitted by the sweep.
type NotificationType string

const (
	NotificationReminder NotificationType = "reminder"
	NotificationOverdue  NotificationType = "overdue"
)

// Notification is one item of the finance office notification feed.
type Notification struct {
	ID         uuid.UUID
	StudentID  uuid.UUID
	LedgerID   uuid.UUID
	Type       NotificationType
	Title      string
	Message    string
	SchoolYear string
	Read       bool
	CreatedAt  time.Time
}
