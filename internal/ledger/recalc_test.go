package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	d1 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	d2 = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	d3 = time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal { return decimal.MustParse(s) }

func entry(amount string, at time.Time) Entry {
	return Entry{ID: uuid.New(), Amount: dec(amount), PaymentDate: at}
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Zero(t, dec(want).Cmp(got), append([]any{"want %s got %s", want, got.String()}, msgAndArgs...)...)
}

func TestRecalculate_SinglePartialPayment(t *testing.T) {
	l := Ledger{TotalAmount: dec("10000"), Entries: []Entry{entry("4000", d1)}}
	Recalculate(&l)

	assertDec(t, "4000", l.AmountPaid)
	assertDec(t, "6000", l.Balance)
	assert.Equal(t, StatusPartiallyPaid, l.Status)
	assertDec(t, "6000", l.Entries[0].BalanceAfterPayment)
}

func TestRecalculate_ReordersOutOfOrderEntries(t *testing.T) {
	l := Ledger{TotalAmount: dec("10000"), Entries: []Entry{entry("6000", d2), entry("4000", d1)}}
	Recalculate(&l)

	require.Len(t, l.Entries, 2)
	assert.Equal(t, d1, l.Entries[0].PaymentDate)
	assert.Equal(t, d2, l.Entries[1].PaymentDate)
	assertDec(t, "6000", l.Entries[0].BalanceAfterPayment)
	assertDec(t, "0", l.Entries[1].BalanceAfterPayment)
	assertDec(t, "10000", l.AmountPaid)
	assertDec(t, "0", l.Balance)
	assert.Equal(t, StatusPaid, l.Status)
}

func TestRecalculate_AfterDeletingEarliestEntry(t *testing.T) {
	l := Ledger{TotalAmount: dec("10000"), Entries: []Entry{entry("6000", d2), entry("4000", d1)}}
	Recalculate(&l)
	require.True(t, l.RemoveEntry(l.Entries[0].ID))
	Recalculate(&l)

	require.Len(t, l.Entries, 1)
	assertDec(t, "4000", l.Entries[0].BalanceAfterPayment)
	assertDec(t, "6000", l.AmountPaid)
	assertDec(t, "4000", l.Balance)
	assert.Equal(t, StatusPartiallyPaid, l.Status)
}

func TestRecalculate_OverpaymentClampsButKeepsRawSum(t *testing.T) {
	l := Ledger{TotalAmount: dec("5000"), Entries: []Entry{entry("5000", d1), entry("1000", d2)}}
	Recalculate(&l)

	assertDec(t, "0", l.Entries[0].BalanceAfterPayment)
	assertDec(t, "0", l.Entries[1].BalanceAfterPayment)
	assertDec(t, "6000", l.AmountPaid)
	assertDec(t, "0", l.Balance)
	assert.Equal(t, StatusPaid, l.Status)
}

func TestRecalculate_NoEntriesIsUnpaid(t *testing.T) {
	l := Ledger{TotalAmount: dec("2500.50")}
	Recalculate(&l)

	assertDec(t, "0", l.AmountPaid)
	assertDec(t, "2500.50", l.Balance)
	assert.Equal(t, StatusUnpaid, l.Status)
}

func TestRecalculate_ClearsOverdue(t *testing.T) {
	l := Ledger{TotalAmount: dec("1000"), Status: StatusOverdue, Entries: []Entry{entry("200", d1)}}
	Recalculate(&l)
	assert.Equal(t, StatusPartiallyPaid, l.Status)
}

func TestRecalculate_IgnoresStaleBalanceAfterPayment(t *testing.T) {
	e := entry("300", d1)
	e.BalanceAfterPayment = dec("999999")
	l := Ledger{TotalAmount: dec("1000"), Entries: []Entry{e}}
	Recalculate(&l)
	assertDec(t, "700", l.Entries[0].BalanceAfterPayment)
}

func TestRecalculate_StableForEqualTimestamps(t *testing.T) {
	a, b, c := entry("100", d1), entry("200", d1), entry("300", d1)
	l := Ledger{TotalAmount: dec("1000"), Entries: []Entry{a, b, c}}
	Recalculate(&l)

	ids := []uuid.UUID{l.Entries[0].ID, l.Entries[1].ID, l.Entries[2].ID}
	assert.Equal(t, []uuid.UUID{a.ID, b.ID, c.ID}, ids)
	assertDec(t, "900", l.Entries[0].BalanceAfterPayment)
	assertDec(t, "700", l.Entries[1].BalanceAfterPayment)
	assertDec(t, "400", l.Entries[2].BalanceAfterPayment)
}

func TestRecalculate_Idempotent(t *testing.T) {
	l := Ledger{TotalAmount: dec("9000"), Entries: []Entry{entry("1000", d3), entry("2500", d1), entry("500.25", d2)}}
	Recalculate(&l)
	first := l.Clone()
	Recalculate(&l)

	assert.Equal(t, first.Status, l.Status)
	assertDec(t, first.AmountPaid.String(), l.AmountPaid)
	assertDec(t, first.Balance.String(), l.Balance)
	for i := range l.Entries {
		assert.Equal(t, first.Entries[i].ID, l.Entries[i].ID)
		assertDec(t, first.Entries[i].BalanceAfterPayment.String(), l.Entries[i].BalanceAfterPayment)
	}
}

func TestRecalculate_Invariants(t *testing.T) {
	cases := []struct {
		total   string
		amounts []string
		dates   []time.Time
	}{
		{"10000", []string{"1000", "2000", "3000"}, []time.Time{d3, d1, d2}},
		{"500", []string{"500"}, []time.Time{d2}},
		{"750.75", []string{"0.75", "700", "100"}, []time.Time{d2, d2, d1}},
		{"1200", nil, nil},
	}
	for _, tc := range cases {
		l := Ledger{TotalAmount: dec(tc.total)}
		for i, a := range tc.amounts {
			l.Entries = append(l.Entries, entry(a, tc.dates[i]))
		}
		Recalculate(&l)

		sum := zero
		for i, e := range l.Entries {
			sum = add(sum, e.Amount)
			if i > 0 {
				assert.False(t, e.PaymentDate.Before(l.Entries[i-1].PaymentDate), "entries sorted by payment date")
				assert.LessOrEqual(t, e.BalanceAfterPayment.Cmp(l.Entries[i-1].BalanceAfterPayment), 0, "balance non-increasing")
			}
			assert.GreaterOrEqual(t, e.BalanceAfterPayment.Sign(), 0)
		}
		assertDec(t, sum.String(), l.AmountPaid)
		assertDec(t, clamp(sub(l.TotalAmount, sum)).String(), l.Balance)

		switch {
		case l.Balance.IsZero():
			assert.Equal(t, StatusPaid, l.Status)
		case l.Balance.Cmp(l.TotalAmount) == 0:
			assert.Equal(t, StatusUnpaid, l.Status)
		default:
			assert.Equal(t, StatusPartiallyPaid, l.Status)
		}
	}
}

func TestLedger_EntryAndRemove(t *testing.T) {
	e := entry("10", d1)
	l := Ledger{Entries: []Entry{e}}
	require.NotNil(t, l.Entry(e.ID))
	assert.Nil(t, l.Entry(uuid.New()))
	assert.False(t, l.RemoveEntry(uuid.New()))
	assert.True(t, l.RemoveEntry(e.ID))
	assert.Empty(t, l.Entries)
}

func TestStudent_FullName(t *testing.T) {
	assert.Equal(t, "Ana Cruz", Student{FirstName: "Ana", LastName: "Cruz"}.FullName())
	assert.Equal(t, "Cruz", Student{LastName: "Cruz"}.FullName())
	assert.Equal(t, "Ana", Student{FirstName: "Ana"}.FullName())
}
