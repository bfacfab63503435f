package ledger

import (
	"sort"

	"github.com/govalues/decimal"
)

var zero = decimal.MustNew(0, 0)

// Recalculate re-establishes every derived field of l from TotalAmount and Entries:
// entries are stably sorted by PaymentDate, each entry's BalanceAfterPayment is the running
// balance clamped at zero, AmountPaid is the raw sum of amounts and Balance is
// max(0, TotalAmount-AmountPaid). Status is derived from Balance and never becomes Overdue here,
// so a recalculation clears an Overdue flag set by the sweep.
//
// Amounts are assumed to have been accepted by the caller already; nothing is re-validated.
func Recalculate(l *Ledger) {
	sort.SliceStable(l.Entries, func(i, j int) bool {
		return l.Entries[i].PaymentDate.Before(l.Entries[j].PaymentDate)
	})

	running := l.TotalAmount
	paid := zero
	for i := range l.Entries {
		e := &l.Entries[i]
		running = sub(running, e.Amount)
		e.BalanceAfterPayment = clamp(running)
		paid = add(paid, e.Amount)
	}

	l.AmountPaid = paid
	l.Balance = clamp(sub(l.TotalAmount, paid))
	l.Status = DeriveStatus(l.TotalAmount, l.Balance)
}

// DeriveStatus maps a balance against its total to Paid, PartiallyPaid or Unpaid.
func DeriveStatus(total, balance decimal.Decimal) Status {
	switch {
	case balance.Sign() <= 0:
		return StatusPaid
	case balance.Cmp(total) < 0:
		return StatusPartiallyPaid
	default:
		return StatusUnpaid
	}
}

func clamp(d decimal.Decimal) decimal.Decimal {
	if d.Sign() < 0 {
		return zero
	}
	return d
}

// add and sub only fail on coefficient overflow (beyond 19 digits), which tuition amounts never reach.
func add(a, b decimal.Decimal) decimal.Decimal {
	s, err := a.Add(b)
	if err != nil {
		panic("ledger: amount overflow: " + err.Error())
	}
	return s
}

func sub(a, b decimal.Decimal) decimal.Decimal {
	s, err := a.Sub(b)
	if err != nil {
		panic("ledger: amount overflow: " + err.Error())
	}
	return s
}
