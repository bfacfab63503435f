// Package history builds the per-student payment history and single-payment receipt views from
// tuition ledgers.
package history

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/govalues/money"

	"github.com/tinoosan/tuition/internal/errs"
	"github.com/tinoosan/tuition/internal/ledger"
	"github.com/tinoosan/tuition/internal/period"
	"github.com/tinoosan/tuition/internal/service/tuition"
)

type Repo interface {
	GetStudent(ctx context.Context, id uuid.UUID) (ledger.Student, error)
	GetLedger(ctx context.Context, id uuid.UUID) (ledger.Ledger, error)
	ListLedgers(ctx context.Context, f tuition.Filter) ([]ledger.Ledger, error)
}

// Filter narrows the history. From and To bound the payment date inclusively.
type Filter struct {
	SchoolYear string
	From       *time.Time
	To         *time.Time
}

// Row is one payment flattened out of its ledger.
type Row struct {
	LedgerID            uuid.UUID
	SchoolYear          string
	Term                string
	EntryID             uuid.UUID
	Amount              decimal.Decimal
	PaymentDate         time.Time
	ReceiptNumber       string
	PaymentMethod       string
	Remarks             string
	BalanceAfterPayment decimal.Decimal
}

// Totals are money amounts in the school currency.
type Totals struct {
	Billed      money.Amount
	Paid        money.Amount
	Outstanding money.Amount
}

type Statement struct {
	Student ledger.Student
	Rows    []Row
	Totals  Totals
}

// ReceiptView carries everything printed on an official receipt.
type ReceiptView struct {
	SchoolName string
	Student    ledger.Student
	Ledger     ledger.Ledger
	Entry      ledger.Entry
	Amount     money.Amount
	Balance    money.Amount
}

type Service interface {
	ForStudent(ctx context.Context, studentID uuid.UUID, f Filter) (Statement, error)
	Receipt(ctx context.Context, ledgerID, entryID uuid.UUID) (ReceiptView, error)
}

type service struct {
	repo       Repo
	currency   money.Currency
	schoolName string
}

// New builds the history service. currency is an ISO 4217 code such as "PHP".
func New(repo Repo, currency, schoolName string) (Service, error) {
	curr, err := money.ParseCurr(currency)
	if err != nil {
		return nil, err
	}
	return &service{repo: repo, currency: curr, schoolName: schoolName}, nil
}

func (s *service) ForStudent(ctx context.Context, studentID uuid.UUID, f Filter) (Statement, error) {
	if studentID == uuid.Nil {
		return Statement{}, errs.ErrInvalid
	}
	if f.SchoolYear != "" {
		year, err := period.NormalizeSchoolYear(f.SchoolYear)
		if err != nil {
			return Statement{}, errs.Field("schoolYear", err.Error())
		}
		f.SchoolYear = year
	}
	st, err := s.student(ctx, studentID)
	if err != nil {
		return Statement{}, err
	}
	ls, err := s.repo.ListLedgers(ctx, tuition.Filter{StudentID: studentID, SchoolYear: f.SchoolYear})
	if err != nil {
		return Statement{}, err
	}

	billed, paid, outstanding := zero(), zero(), zero()
	rows := make([]Row, 0)
	for _, l := range ls {
		billed = add(billed, l.TotalAmount)
		paid = add(paid, l.AmountPaid)
		outstanding = add(outstanding, l.Balance)
		for _, e := range l.Entries {
			if f.From != nil && e.PaymentDate.Before(*f.From) {
				continue
			}
			if f.To != nil && e.PaymentDate.After(*f.To) {
				continue
			}
			rows = append(rows, Row{
				LedgerID:            l.ID,
				SchoolYear:          l.SchoolYear,
				Term:                l.Term,
				EntryID:             e.ID,
				Amount:              e.Amount,
				PaymentDate:         e.PaymentDate,
				ReceiptNumber:       e.ReceiptNumber,
				PaymentMethod:       e.PaymentMethod,
				Remarks:             e.Remarks,
				BalanceAfterPayment: e.BalanceAfterPayment,
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].PaymentDate.After(rows[j].PaymentDate) })

	totals := Totals{}
	if totals.Billed, err = s.amount(billed); err != nil {
		return Statement{}, err
	}
	if totals.Paid, err = s.amount(paid); err != nil {
		return Statement{}, err
	}
	if totals.Outstanding, err = s.amount(outstanding); err != nil {
		return Statement{}, err
	}
	return Statement{Student: st, Rows: rows, Totals: totals}, nil
}

func (s *service) Receipt(ctx context.Context, ledgerID, entryID uuid.UUID) (ReceiptView, error) {
	if ledgerID == uuid.Nil || entryID == uuid.Nil {
		return ReceiptView{}, errs.ErrInvalid
	}
	l, err := s.repo.GetLedger(ctx, ledgerID)
	if err != nil {
		return ReceiptView{}, err
	}
	e := l.Entry(entryID)
	if e == nil {
		return ReceiptView{}, errs.ErrEntryNotFound
	}
	st, err := s.student(ctx, l.StudentID)
	if err != nil {
		return ReceiptView{}, err
	}
	amt, err := s.amount(e.Amount)
	if err != nil {
		return ReceiptView{}, err
	}
	bal, err := s.amount(e.BalanceAfterPayment)
	if err != nil {
		return ReceiptView{}, err
	}
	return ReceiptView{
		SchoolName: s.schoolName,
		Student:    st,
		Ledger:     l,
		Entry:      *e,
		Amount:     amt,
		Balance:    bal,
	}, nil
}

func (s *service) student(ctx context.Context, id uuid.UUID) (ledger.Student, error) {
	st, err := s.repo.GetStudent(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return ledger.Student{}, errs.ErrStudentNotFound
	}
	return st, err
}

func (s *service) amount(d decimal.Decimal) (money.Amount, error) {
	return money.ParseAmount(s.currency.Code(), d.String())
}

// FormatAmount renders an amount as "<CODE> <value>", e.g. "PHP 4000.50".
func FormatAmount(a money.Amount) string {
	return a.Curr().Code() + " " + a.Decimal().String()
}

func zero() decimal.Decimal { return decimal.MustNew(0, 0) }

// add panics on coefficient overflow only, which ledger-bounded amounts cannot reach.
func add(a, b decimal.Decimal) decimal.Decimal {
	sum, err := a.Add(b)
	if err != nil {
		panic("history: amount overflow: " + err.Error())
	}
	return sum
}
