package receipt

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/govalues/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/tuition/internal/ledger"
	"github.com/tinoosan/tuition/internal/service/history"
)

func php(t *testing.T, s string) money.Amount {
	t.Helper()
	a, err := money.ParseAmount("PHP", s)
	require.NoError(t, err)
	return a
}

func receiptView(t *testing.T) history.ReceiptView {
	t.Helper()
	return history.ReceiptView{
		SchoolName: "San Isidro Academy",
		Student:    ledger.Student{StudentNumber: "2024-0001", FirstName: "Ana", LastName: "Cruz", GradeLevel: "Grade 5", Section: "Rizal"},
		Ledger:     ledger.Ledger{ID: uuid.New(), SchoolYear: "2024-2025", Term: "1st Term"},
		Entry: ledger.Entry{
			ID:            uuid.New(),
			Amount:        decimal.MustParse("4000"),
			PaymentDate:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			ReceiptNumber: "OR-20240601-ABC123",
			PaymentMethod: "cash",
		},
		Amount:  php(t, "4000"),
		Balance: php(t, "6000"),
	}
}

func TestRender_ProducesPDF(t *testing.T) {
	b, err := Render(receiptView(t))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF")))
}

func TestRender_DatedByLedgerRevision(t *testing.T) {
	v := receiptView(t)
	v.Ledger.UpdatedAt = time.Date(2024, 6, 2, 9, 30, 0, 0, time.UTC)

	first, err := Render(v)
	require.NoError(t, err)
	assert.Contains(t, string(first), "/CreationDate (D:20240602093000)")
	assert.Contains(t, string(first), "/ModDate (D:20240602093000)")

	time.Sleep(1100 * time.Millisecond)
	second, err := Render(v)
	require.NoError(t, err)
	assert.Equal(t, first, second, "same revision renders the same document")

	v.Ledger.UpdatedAt = v.Ledger.UpdatedAt.Add(time.Hour)
	third, err := Render(v)
	require.NoError(t, err)
	assert.Contains(t, string(third), "/CreationDate (D:20240602103000)")
}

func TestRender_FallsBackToPaymentDate(t *testing.T) {
	b, err := Render(receiptView(t))
	require.NoError(t, err)
	assert.Contains(t, string(b), "/CreationDate (D:20240601000000)")
}

func TestRenderStatement_EmptyHistory(t *testing.T) {
	st := history.Statement{
		Student: ledger.Student{StudentNumber: "2024-0002", FirstName: "Ben", LastName: "Reyes", GradeLevel: "Grade 1"},
		Totals:  history.Totals{Billed: php(t, "0"), Paid: php(t, "0"), Outstanding: php(t, "0")},
	}
	at := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	b, err := RenderStatement("", st, at)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF")))
	assert.Contains(t, string(b), "/CreationDate (D:20240901080000)")
}

func TestStamp(t *testing.T) {
	at := time.Date(2024, 6, 2, 14, 5, 0, 0, time.UTC)
	assert.Equal(t, "As of: 02-Jun-2024 02:05 PM", stamp("As of", at))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
