package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/govalues/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/tuition/internal/errs"
	"github.com/tinoosan/tuition/internal/ledger"
	"github.com/tinoosan/tuition/internal/service/history"
	"github.com/tinoosan/tuition/internal/storage/memory"
)

var (
	jun = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	jul = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	aug = time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
)

func seed(t *testing.T) (*memory.Store, ledger.Student, ledger.Ledger) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	st, err := store.CreateStudent(ctx, ledger.Student{ID: uuid.New(), StudentNumber: "S-1", FirstName: "Ana", LastName: "Cruz", GradeLevel: "5", Active: true})
	require.NoError(t, err)

	first := ledger.Ledger{ID: uuid.New(), StudentID: st.ID, SchoolYear: "2024-2025", Term: "1st Term", TotalAmount: decimal.MustParse("10000"), DueDate: jul,
		Entries: []ledger.Entry{
			{ID: uuid.New(), Amount: decimal.MustParse("4000"), PaymentDate: jun, ReceiptNumber: "OR-1"},
			{ID: uuid.New(), Amount: decimal.MustParse("1000"), PaymentDate: aug, ReceiptNumber: "OR-3"},
		}}
	second := ledger.Ledger{ID: uuid.New(), StudentID: st.ID, SchoolYear: "2024-2025", Term: "2nd Term", TotalAmount: decimal.MustParse("8000.50"), DueDate: aug,
		Entries: []ledger.Entry{{ID: uuid.New(), Amount: decimal.MustParse("500.25"), PaymentDate: jul, ReceiptNumber: "OR-2"}}}
	other := ledger.Ledger{ID: uuid.New(), StudentID: uuid.New(), SchoolYear: "2024-2025", Term: "1st Term", TotalAmount: decimal.MustParse("99"), DueDate: jul}
	for _, l := range []ledger.Ledger{first, second, other} {
		ledger.Recalculate(&l)
		_, err := store.CreateLedger(ctx, l)
		require.NoError(t, err)
	}
	ledger.Recalculate(&first)
	return store, st, first
}

func TestForStudent_FlattensNewestFirst(t *testing.T) {
	store, st, _ := seed(t)
	svc, err := history.New(store, "PHP", "San Isidro Academy")
	require.NoError(t, err)

	stmt, err := svc.ForStudent(context.Background(), st.ID, history.Filter{})
	require.NoError(t, err)
	require.Len(t, stmt.Rows, 3)
	assert.Equal(t, []string{"OR-3", "OR-2", "OR-1"}, []string{stmt.Rows[0].ReceiptNumber, stmt.Rows[1].ReceiptNumber, stmt.Rows[2].ReceiptNumber})
	assert.Equal(t, "2nd Term", stmt.Rows[1].Term)

	assertAmount(t, "18000.50", stmt.Totals.Billed)
	assertAmount(t, "5500.25", stmt.Totals.Paid)
	assertAmount(t, "12500.25", stmt.Totals.Outstanding)
}

func TestForStudent_DateRange(t *testing.T) {
	store, st, _ := seed(t)
	svc, err := history.New(store, "PHP", "")
	require.NoError(t, err)

	from, to := jul, jul
	stmt, err := svc.ForStudent(context.Background(), st.ID, history.Filter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, stmt.Rows, 1)
	assert.Equal(t, "OR-2", stmt.Rows[0].ReceiptNumber)
}

func TestForStudent_SchoolYearFilterAcceptsAnyNotation(t *testing.T) {
	store, st, _ := seed(t)
	prior := ledger.Ledger{ID: uuid.New(), StudentID: st.ID, SchoolYear: "2023-2024", Term: "1st Term", TotalAmount: decimal.MustParse("7000"), DueDate: jun.AddDate(-1, 0, 0),
		Entries: []ledger.Entry{{ID: uuid.New(), Amount: decimal.MustParse("7000"), PaymentDate: jun.AddDate(-1, 0, 0), ReceiptNumber: "OR-0"}}}
	ledger.Recalculate(&prior)
	_, err := store.CreateLedger(context.Background(), prior)
	require.NoError(t, err)
	svc, err := history.New(store, "PHP", "")
	require.NoError(t, err)

	for _, year := range []string{"2024-2025", "2024/2025", "SY 2024-2025"} {
		stmt, err := svc.ForStudent(context.Background(), st.ID, history.Filter{SchoolYear: year})
		require.NoError(t, err, year)
		assert.Len(t, stmt.Rows, 3, year)
		assertAmount(t, "18000.50", stmt.Totals.Billed)
	}

	stmt, err := svc.ForStudent(context.Background(), st.ID, history.Filter{SchoolYear: "2023/2024"})
	require.NoError(t, err)
	require.Len(t, stmt.Rows, 1)
	assert.Equal(t, "OR-0", stmt.Rows[0].ReceiptNumber)

	_, err = svc.ForStudent(context.Background(), st.ID, history.Filter{SchoolYear: "2024"})
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestForStudent_UnknownStudent(t *testing.T) {
	store, _, _ := seed(t)
	svc, err := history.New(store, "PHP", "")
	require.NoError(t, err)
	_, err = svc.ForStudent(context.Background(), uuid.New(), history.Filter{})
	assert.ErrorIs(t, err, errs.ErrStudentNotFound)
}

func TestReceipt(t *testing.T) {
	store, st, first := seed(t)
	svc, err := history.New(store, "PHP", "San Isidro Academy")
	require.NoError(t, err)

	v, err := svc.Receipt(context.Background(), first.ID, first.Entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "San Isidro Academy", v.SchoolName)
	assert.Equal(t, st.ID, v.Student.ID)
	assert.Equal(t, "OR-1", v.Entry.ReceiptNumber)
	assertAmount(t, "4000", v.Amount)
	assertAmount(t, "6000", v.Balance)

	_, err = svc.Receipt(context.Background(), first.ID, uuid.New())
	assert.ErrorIs(t, err, errs.ErrEntryNotFound)
}

func TestNew_RejectsUnknownCurrency(t *testing.T) {
	_, err := history.New(memory.New(), "XYZ", "")
	assert.Error(t, err)
}

func assertAmount(t *testing.T, want string, got money.Amount) {
	t.Helper()
	assert.Equal(t, "PHP", got.Curr().Code())
	assert.Zero(t, decimal.MustParse(want).Cmp(got.Decimal()), "want %s got %s", want, got.Decimal().String())
}
