package tuition

import (
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/tuition/internal/ledger"
	"github.com/tinoosan/tuition/internal/period"
)

// Filter narrows ledger listings. Zero values match everything.
type Filter struct {
	StudentID  uuid.UUID
	SchoolYear string
	Term       string
	Status     ledger.Status
	// OutstandingOnly keeps ledgers with a positive balance.
	OutstandingOnly bool
	// DueFrom and DueTo bound DueDate inclusively.
	DueFrom *time.Time
	DueTo   *time.Time
}

// Match reports whether l passes the filter. Stores without query support filter with it.
func (f Filter) Match(l ledger.Ledger) bool {
	if f.StudentID != uuid.Nil && l.StudentID != f.StudentID {
		return false
	}
	if f.SchoolYear != "" && l.SchoolYear != f.SchoolYear {
		return false
	}
	if f.Term != "" && period.TermKey(l.Term) != period.TermKey(f.Term) {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.OutstandingOnly && !l.Outstanding() {
		return false
	}
	if f.DueFrom != nil && l.DueDate.Before(*f.DueFrom) {
		return false
	}
	if f.DueTo != nil && l.DueDate.After(*f.DueTo) {
		return false
	}
	return true
}
