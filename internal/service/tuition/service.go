// Package tuition implements the tuition ledger operations: opening a ledger for a student's
// school year and term, recording, editing and deleting payments, and keeping every derived
// balance consistent by running the full recalculation after each mutation.
package tuition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/tinoosan/tuition/internal/dictionary"
	"github.com/tinoosan/tuition/internal/errs"
	"github.com/tinoosan/tuition/internal/events"
	"github.com/tinoosan/tuition/internal/ledger"
	"github.com/tinoosan/tuition/internal/period"
)

// Repo defines read operations needed by the service.
type Repo interface {
	GetLedger(ctx context.Context, id uuid.UUID) (ledger.Ledger, error)
	ListLedgers(ctx context.Context, f Filter) ([]ledger.Ledger, error)
	// LedgerByPeriod looks up the ledger for the (student, school year, term key) triple.
	LedgerByPeriod(ctx context.Context, studentID uuid.UUID, schoolYear, termKey string) (ledger.Ledger, bool, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	// CreateLedger fails with errs.ErrDuplicateLedger when the triple already exists.
	CreateLedger(ctx context.Context, l ledger.Ledger) (ledger.Ledger, error)
	// SaveLedger replaces the ledger row and its entire entry list.
	SaveLedger(ctx context.Context, l ledger.Ledger) (ledger.Ledger, error)
	DeleteLedger(ctx context.Context, id uuid.UUID) error
}

// StudentReader resolves the student a ledger belongs to.
type StudentReader interface {
	GetStudent(ctx context.Context, id uuid.UUID) (ledger.Student, error)
}

// Service exposes the ledger operations used by the HTTP layer.
type Service interface {
	Create(ctx context.Context, in CreateInput) (ledger.Ledger, error)
	Get(ctx context.Context, id uuid.UUID) (ledger.Ledger, error)
	List(ctx context.Context, f Filter) ([]ledger.Ledger, error)
	ByStudent(ctx context.Context, studentID uuid.UUID) ([]ledger.Ledger, error)
	AddPayment(ctx context.Context, ledgerID uuid.UUID, in PaymentInput) (ledger.Ledger, ledger.Entry, error)
	EditPayment(ctx context.Context, ledgerID, entryID uuid.UUID, p PaymentPatch) (ledger.Ledger, error)
	DeletePayment(ctx context.Context, ledgerID, entryID uuid.UUID) (ledger.Ledger, error)
	Update(ctx context.Context, ledgerID uuid.UUID, p LedgerPatch) (ledger.Ledger, error)
	Delete(ctx context.Context, ledgerID uuid.UUID) error
}

// CreateInput carries the fields needed to open a ledger.
type CreateInput struct {
	StudentID   uuid.UUID
	SchoolYear  string
	Term        string
	TotalAmount decimal.Decimal
	DueDate     time.Time
	// InitialPayment is optional and validated like any other payment.
	InitialPayment *PaymentInput
}

// PaymentInput describes a new payment. PaymentDate defaults to the service clock.
type PaymentInput struct {
	Amount        decimal.Decimal
	PaymentDate   *time.Time
	ReceiptNumber string
	PaymentMethod string
	Remarks       string
}

// PaymentPatch holds the fields to change on an existing payment; nil means unchanged.
type PaymentPatch struct {
	Amount        *decimal.Decimal
	PaymentDate   *time.Time
	ReceiptNumber *string
	PaymentMethod *string
	Remarks       *string
}

// LedgerPatch holds the ledger metadata to change; nil means unchanged.
type LedgerPatch struct {
	TotalAmount *decimal.Decimal
	DueDate     *time.Time
	SchoolYear  *string
	Term        *string
}

// maxAmount bounds totals and payments well inside the decimal coefficient range.
var maxAmount = decimal.MustParse("1000000000000")

type service struct {
	repo      Repo
	writer    Writer
	students  StudentReader
	publisher events.Publisher
	log       *slog.Logger
	now       func() time.Time
}

// Option customises the service.
type Option func(*service)

// WithClock overrides time.Now, used for default payment dates and timestamps.
func WithClock(now func() time.Time) Option { return func(s *service) { s.now = now } }

// WithPublisher sets where payment events go. Defaults to events.Nop.
func WithPublisher(p events.Publisher) Option { return func(s *service) { s.publisher = p } }

// WithLogger sets the logger used for non-fatal side effect failures.
func WithLogger(l *slog.Logger) Option { return func(s *service) { s.log = l } }

func New(repo Repo, writer Writer, students StudentReader, opts ...Option) Service {
	s := &service{
		repo:      repo,
		writer:    writer,
		students:  students,
		publisher: events.Nop{},
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *service) Create(ctx context.Context, in CreateInput) (ledger.Ledger, error) {
	if in.StudentID == uuid.Nil {
		return ledger.Ledger{}, errs.Field("studentId", "is required")
	}
	year, err := period.NormalizeSchoolYear(in.SchoolYear)
	if err != nil {
		return ledger.Ledger{}, errs.Field("schoolYear", err.Error())
	}
	term, err := period.NormalizeTerm(in.Term)
	if err != nil {
		return ledger.Ledger{}, errs.Field("term", err.Error())
	}
	if in.DueDate.IsZero() {
		return ledger.Ledger{}, errs.Field("dueDate", "is required")
	}
	if err := checkAmount(in.TotalAmount); err != nil {
		return ledger.Ledger{}, fmt.Errorf("totalAmount: %w", err)
	}
	st, err := s.students.GetStudent(ctx, in.StudentID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return ledger.Ledger{}, errs.ErrStudentNotFound
		}
		return ledger.Ledger{}, err
	}
	if !st.Active {
		return ledger.Ledger{}, errs.ErrInactiveStudent
	}
	if _, exists, err := s.repo.LedgerByPeriod(ctx, in.StudentID, year, period.TermKey(term)); err != nil {
		return ledger.Ledger{}, err
	} else if exists {
		return ledger.Ledger{}, errs.ErrDuplicateLedger
	}

	now := s.now().UTC()
	l := ledger.Ledger{
		ID:          uuid.New(),
		StudentID:   in.StudentID,
		SchoolYear:  year,
		Term:        term,
		TotalAmount: in.TotalAmount,
		DueDate:     in.DueDate.UTC(),
		Entries:     []ledger.Entry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var initial *ledger.Entry
	if in.InitialPayment != nil {
		e, err := s.newEntry(*in.InitialPayment, in.TotalAmount)
		if err != nil {
			return ledger.Ledger{}, err
		}
		l.Entries = append(l.Entries, e)
		initial = &e
	}
	ledger.Recalculate(&l)
	saved, err := s.writer.CreateLedger(ctx, l)
	if err != nil {
		return ledger.Ledger{}, err
	}
	if initial != nil {
		s.publishPayment(ctx, saved, *initial)
	}
	return saved, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (ledger.Ledger, error) {
	if id == uuid.Nil {
		return ledger.Ledger{}, errs.ErrInvalid
	}
	return s.repo.GetLedger(ctx, id)
}

func (s *service) List(ctx context.Context, f Filter) ([]ledger.Ledger, error) {
	if f.SchoolYear != "" {
		year, err := period.NormalizeSchoolYear(f.SchoolYear)
		if err != nil {
			return nil, errs.Field("schoolYear", err.Error())
		}
		f.SchoolYear = year
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, errs.Field("status", "unknown status")
	}
	return s.repo.ListLedgers(ctx, f)
}

func (s *service) ByStudent(ctx context.Context, studentID uuid.UUID) ([]ledger.Ledger, error) {
	if studentID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	if _, err := s.students.GetStudent(ctx, studentID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrStudentNotFound
		}
		return nil, err
	}
	return s.repo.ListLedgers(ctx, Filter{StudentID: studentID})
}

// AddPayment appends a payment no larger than the current balance and recalculates the ledger.
func (s *service) AddPayment(ctx context.Context, ledgerID uuid.UUID, in PaymentInput) (ledger.Ledger, ledger.Entry, error) {
	l, err := s.load(ctx, ledgerID)
	if err != nil {
		return ledger.Ledger{}, ledger.Entry{}, err
	}
	ledger.Recalculate(&l)
	e, err := s.newEntry(in, l.Balance)
	if err != nil {
		return ledger.Ledger{}, ledger.Entry{}, err
	}
	l.Entries = append(l.Entries, e)
	saved, err := s.save(ctx, l)
	if err != nil {
		return ledger.Ledger{}, ledger.Entry{}, err
	}
	if got := saved.Entry(e.ID); got != nil {
		e = *got
	}
	s.publishPayment(ctx, saved, e)
	return saved, e, nil
}

func (s *service) EditPayment(ctx context.Context, ledgerID, entryID uuid.UUID, p PaymentPatch) (ledger.Ledger, error) {
	l, err := s.load(ctx, ledgerID)
	if err != nil {
		return ledger.Ledger{}, err
	}
	e := l.Entry(entryID)
	if e == nil {
		return ledger.Ledger{}, errs.ErrEntryNotFound
	}
	if p.Amount != nil {
		if err := checkPayment(*p.Amount); err != nil {
			return ledger.Ledger{}, err
		}
		e.Amount = *p.Amount
	}
	if p.PaymentDate != nil {
		if p.PaymentDate.IsZero() {
			return ledger.Ledger{}, errs.Field("paymentDate", "must be a valid timestamp")
		}
		e.PaymentDate = p.PaymentDate.UTC()
	}
	if p.ReceiptNumber != nil {
		e.ReceiptNumber = strings.TrimSpace(*p.ReceiptNumber)
	}
	if p.PaymentMethod != nil {
		if !dictionary.IsPaymentMethod(*p.PaymentMethod) {
			return ledger.Ledger{}, errs.Field("paymentMethod", "unknown payment method")
		}
		e.PaymentMethod = strings.ToLower(*p.PaymentMethod)
	}
	if p.Remarks != nil {
		e.Remarks = *p.Remarks
	}
	return s.save(ctx, l)
}

func (s *service) DeletePayment(ctx context.Context, ledgerID, entryID uuid.UUID) (ledger.Ledger, error) {
	l, err := s.load(ctx, ledgerID)
	if err != nil {
		return ledger.Ledger{}, err
	}
	if !l.RemoveEntry(entryID) {
		return ledger.Ledger{}, errs.ErrEntryNotFound
	}
	return s.save(ctx, l)
}

// Update changes ledger metadata. A new total changes every downstream balance, so the ledger is
// always recalculated.
func (s *service) Update(ctx context.Context, ledgerID uuid.UUID, p LedgerPatch) (ledger.Ledger, error) {
	l, err := s.load(ctx, ledgerID)
	if err != nil {
		return ledger.Ledger{}, err
	}
	if p.TotalAmount != nil {
		if err := checkAmount(*p.TotalAmount); err != nil {
			return ledger.Ledger{}, fmt.Errorf("totalAmount: %w", err)
		}
		l.TotalAmount = *p.TotalAmount
	}
	if p.DueDate != nil {
		if p.DueDate.IsZero() {
			return ledger.Ledger{}, errs.Field("dueDate", "must be a valid timestamp")
		}
		l.DueDate = p.DueDate.UTC()
	}
	periodChanged := false
	if p.SchoolYear != nil {
		year, err := period.NormalizeSchoolYear(*p.SchoolYear)
		if err != nil {
			return ledger.Ledger{}, errs.Field("schoolYear", err.Error())
		}
		periodChanged = periodChanged || year != l.SchoolYear
		l.SchoolYear = year
	}
	if p.Term != nil {
		term, err := period.NormalizeTerm(*p.Term)
		if err != nil {
			return ledger.Ledger{}, errs.Field("term", err.Error())
		}
		periodChanged = periodChanged || period.TermKey(term) != period.TermKey(l.Term)
		l.Term = term
	}
	if periodChanged {
		other, exists, err := s.repo.LedgerByPeriod(ctx, l.StudentID, l.SchoolYear, period.TermKey(l.Term))
		if err != nil {
			return ledger.Ledger{}, err
		}
		if exists && other.ID != l.ID {
			return ledger.Ledger{}, errs.ErrDuplicateLedger
		}
	}
	return s.save(ctx, l)
}

func (s *service) Delete(ctx context.Context, ledgerID uuid.UUID) error {
	if ledgerID == uuid.Nil {
		return errs.ErrInvalid
	}
	return s.writer.DeleteLedger(ctx, ledgerID)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (ledger.Ledger, error) {
	if id == uuid.Nil {
		return ledger.Ledger{}, errs.ErrInvalid
	}
	return s.repo.GetLedger(ctx, id)
}

// save recalculates and persists; every mutation funnels through here.
func (s *service) save(ctx context.Context, l ledger.Ledger) (ledger.Ledger, error) {
	ledger.Recalculate(&l)
	l.UpdatedAt = s.now().UTC()
	return s.writer.SaveLedger(ctx, l)
}

// newEntry validates a payment against the balance it will be applied to and builds the entry.
func (s *service) newEntry(in PaymentInput, balance decimal.Decimal) (ledger.Entry, error) {
	if err := checkPayment(in.Amount); err != nil {
		return ledger.Entry{}, err
	}
	if in.Amount.Cmp(balance) > 0 {
		return ledger.Entry{}, fmt.Errorf("%w: payment %s exceeds balance %s", errs.ErrAmountExceedsBalance, in.Amount.String(), balance.String())
	}
	if !dictionary.IsPaymentMethod(in.PaymentMethod) {
		return ledger.Entry{}, errs.Field("paymentMethod", "unknown payment method")
	}
	when := s.now().UTC()
	if in.PaymentDate != nil && !in.PaymentDate.IsZero() {
		when = in.PaymentDate.UTC()
	}
	id := uuid.New()
	receipt := strings.TrimSpace(in.ReceiptNumber)
	if receipt == "" {
		receipt = ReceiptNumber(when, id)
	}
	return ledger.Entry{
		ID:            id,
		Amount:        in.Amount,
		PaymentDate:   when,
		ReceiptNumber: receipt,
		PaymentMethod: strings.ToLower(in.PaymentMethod),
		Remarks:       in.Remarks,
	}, nil
}

// ReceiptNumber generates an official-receipt number: OR-<yyyymmdd>-<first 6 hex of the entry id>.
func ReceiptNumber(at time.Time, entryID uuid.UUID) string {
	return "OR-" + at.UTC().Format("20060102") + "-" + strings.ToUpper(strings.ReplaceAll(entryID.String(), "-", "")[:6])
}

func (s *service) publishPayment(ctx context.Context, l ledger.Ledger, e ledger.Entry) {
	paymentsRecorded.Inc()
	ev := events.PaymentRecorded{
		LedgerID:      l.ID,
		StudentID:     l.StudentID,
		EntryID:       e.ID,
		Amount:        e.Amount.String(),
		Balance:       l.Balance.String(),
		Status:        string(l.Status),
		ReceiptNumber: e.ReceiptNumber,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, events.TopicPaymentRecorded, l.ID.String(), ev); err != nil {
		s.log.WarnContext(ctx, "publish payment event failed", "ledger_id", l.ID, "entry_id", e.ID, "err", err)
	}
}

func checkAmount(d decimal.Decimal) error {
	if d.Sign() <= 0 {
		return fmt.Errorf("%w: must be greater than zero", errs.ErrInvalidAmount)
	}
	if d.Scale() > 2 {
		return fmt.Errorf("%w: at most two decimal places", errs.ErrInvalidAmount)
	}
	if d.Cmp(maxAmount) >= 0 {
		return fmt.Errorf("%w: too large", errs.ErrInvalidAmount)
	}
	return nil
}

func checkPayment(d decimal.Decimal) error {
	if err := checkAmount(d); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	return nil
}
