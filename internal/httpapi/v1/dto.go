package v1

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/tinoosan/tuition/internal/errs"
	"github.com/tinoosan/tuition/internal/ledger"
	"github.com/tinoosan/tuition/internal/service/history"
	"github.com/tinoosan/tuition/internal/service/notify"
	"github.com/tinoosan/tuition/internal/service/student"
	"github.com/tinoosan/tuition/internal/service/tuition"
)

// Students

type studentRequest struct {
	StudentNumber string `json:"studentNumber" validate:"required,max=32"`
	FirstName     string `json:"firstName" validate:"required,max=100"`
	LastName      string `json:"lastName" validate:"required,max=100"`
	GradeLevel    string `json:"gradeLevel" validate:"required,max=50"`
	Section       string `json:"section" validate:"max=50"`
	GuardianName  string `json:"guardianName" validate:"max=200"`
	GuardianEmail string `json:"guardianEmail" validate:"omitempty,email"`
	GuardianPhone string `json:"guardianPhone" validate:"max=32"`
}

func (r studentRequest) toDomain() ledger.Student {
	return ledger.Student{
		StudentNumber: r.StudentNumber,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		GradeLevel:    r.GradeLevel,
		Section:       r.Section,
		GuardianName:  r.GuardianName,
		GuardianEmail: r.GuardianEmail,
		GuardianPhone: r.GuardianPhone,
	}
}

type studentsBatchRequest struct {
	Students []studentRequest `json:"students" validate:"required,min=1,max=500,dive"`
}

// patchStudentRequest leaves nil fields unchanged. The student number cannot be patched.
type patchStudentRequest struct {
	FirstName     *string `json:"firstName" validate:"omitempty,max=100"`
	LastName      *string `json:"lastName" validate:"omitempty,max=100"`
	GradeLevel    *string `json:"gradeLevel" validate:"omitempty,max=50"`
	Section       *string `json:"section" validate:"omitempty,max=50"`
	GuardianName  *string `json:"guardianName" validate:"omitempty,max=200"`
	GuardianEmail *string `json:"guardianEmail" validate:"omitempty,email"`
	GuardianPhone *string `json:"guardianPhone" validate:"omitempty,max=32"`
	Active        *bool   `json:"active"`
}

func (p patchStudentRequest) apply(st ledger.Student) ledger.Student {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&st.FirstName, p.FirstName)
	set(&st.LastName, p.LastName)
	set(&st.GradeLevel, p.GradeLevel)
	set(&st.Section, p.Section)
	set(&st.GuardianName, p.GuardianName)
	set(&st.GuardianEmail, p.GuardianEmail)
	set(&st.GuardianPhone, p.GuardianPhone)
	if p.Active != nil {
		st.Active = *p.Active
	}
	return st
}

type studentResponse struct {
	ID            uuid.UUID `json:"id"`
	StudentNumber string    `json:"studentNumber"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	FullName      string    `json:"fullName"`
	GradeLevel    string    `json:"gradeLevel"`
	Section       string    `json:"section,omitempty"`
	GuardianName  string    `json:"guardianName,omitempty"`
	GuardianEmail string    `json:"guardianEmail,omitempty"`
	GuardianPhone string    `json:"guardianPhone,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toStudentResponse(s ledger.Student) studentResponse {
	return studentResponse{
		ID:            s.ID,
		StudentNumber: s.StudentNumber,
		FirstName:     s.FirstName,
		LastName:      s.LastName,
		FullName:      s.FullName(),
		GradeLevel:    s.GradeLevel,
		Section:       s.Section,
		GuardianName:  s.GuardianName,
		GuardianEmail: s.GuardianEmail,
		GuardianPhone: s.GuardianPhone,
		Active:        s.Active,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func toStudentResponses(ss []ledger.Student) []studentResponse {
	out := make([]studentResponse, 0, len(ss))
	for _, s := range ss {
		out = append(out, toStudentResponse(s))
	}
	return out
}

type batchItemError struct {
	Index   int    `json:"index"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toBatchErrors(items []student.ItemError) []batchItemError {
	out := make([]batchItemError, 0, len(items))
	for _, it := range items {
		out = append(out, batchItemError{Index: it.Index, Code: it.Code, Message: it.Err.Error()})
	}
	return out
}

// Ledgers and payments

type paymentRequest struct {
	Amount        json.Number `json:"amount" validate:"required"`
	PaymentDate   *time.Time  `json:"paymentDate"`
	ReceiptNumber string      `json:"receiptNumber" validate:"max=64"`
	PaymentMethod string      `json:"paymentMethod" validate:"paymethod"`
	Remarks       string      `json:"remarks" validate:"max=500"`
}

func (r paymentRequest) toInput() (tuition.PaymentInput, error) {
	amt, err := parseAmount("amount", r.Amount)
	if err != nil {
		return tuition.PaymentInput{}, err
	}
	return tuition.PaymentInput{
		Amount:        amt,
		PaymentDate:   r.PaymentDate,
		ReceiptNumber: r.ReceiptNumber,
		PaymentMethod: r.PaymentMethod,
		Remarks:       r.Remarks,
	}, nil
}

type createLedgerRequest struct {
	StudentID      uuid.UUID       `json:"studentId" validate:"required"`
	SchoolYear     string          `json:"schoolYear" validate:"required"`
	Term           string          `json:"term" validate:"required,max=60"`
	TotalAmount    json.Number     `json:"totalAmount" validate:"required"`
	DueDate        time.Time       `json:"dueDate" validate:"required"`
	InitialPayment *paymentRequest `json:"initialPayment" validate:"omitempty"`
}

func (r createLedgerRequest) toInput() (tuition.CreateInput, error) {
	total, err := parseAmount("totalAmount", r.TotalAmount)
	if err != nil {
		return tuition.CreateInput{}, err
	}
	in := tuition.CreateInput{
		StudentID:   r.StudentID,
		SchoolYear:  r.SchoolYear,
		Term:        r.Term,
		TotalAmount: total,
		DueDate:     r.DueDate,
	}
	if r.InitialPayment != nil {
		p, err := r.InitialPayment.toInput()
		if err != nil {
			return tuition.CreateInput{}, err
		}
		in.InitialPayment = &p
	}
	return in, nil
}

type patchLedgerRequest struct {
	TotalAmount *json.Number `json:"totalAmount"`
	DueDate     *time.Time   `json:"dueDate"`
	SchoolYear  *string      `json:"schoolYear"`
	Term        *string      `json:"term" validate:"omitempty,max=60"`
}

func (r patchLedgerRequest) toPatch() (tuition.LedgerPatch, error) {
	p := tuition.LedgerPatch{DueDate: r.DueDate, SchoolYear: r.SchoolYear, Term: r.Term}
	if r.TotalAmount != nil {
		total, err := parseAmount("totalAmount", *r.TotalAmount)
		if err != nil {
			return tuition.LedgerPatch{}, err
		}
		p.TotalAmount = &total
	}
	return p, nil
}

type patchPaymentRequest struct {
	Amount        *json.Number `json:"amount"`
	PaymentDate   *time.Time   `json:"paymentDate"`
	ReceiptNumber *string      `json:"receiptNumber" validate:"omitempty,max=64"`
	PaymentMethod *string      `json:"paymentMethod" validate:"omitempty,paymethod"`
	Remarks       *string      `json:"remarks" validate:"omitempty,max=500"`
}

func (r patchPaymentRequest) toPatch() (tuition.PaymentPatch, error) {
	p := tuition.PaymentPatch{
		PaymentDate:   r.PaymentDate,
		ReceiptNumber: r.ReceiptNumber,
		PaymentMethod: r.PaymentMethod,
		Remarks:       r.Remarks,
	}
	if r.Amount != nil {
		amt, err := parseAmount("amount", *r.Amount)
		if err != nil {
			return tuition.PaymentPatch{}, err
		}
		p.Amount = &amt
	}
	return p, nil
}

// parseAmount reads a JSON number (or numeric string) into a decimal.
func parseAmount(field string, n json.Number) (decimal.Decimal, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return decimal.Decimal{}, errs.Field(field, "is required")
	}
	d, err := decimal.Parse(s)
	if err != nil {
		return decimal.Decimal{}, errs.Field(field, "must be a number")
	}
	return d, nil
}

// num renders a decimal as a JSON number without losing precision.
func num(d decimal.Decimal) json.Number { return json.Number(d.String()) }

type entryResponse struct {
	ID                  uuid.UUID   `json:"id"`
	Amount              json.Number `json:"amount"`
	PaymentDate         time.Time   `json:"paymentDate"`
	ReceiptNumber       string      `json:"receiptNumber,omitempty"`
	PaymentMethod       string      `json:"paymentMethod,omitempty"`
	Remarks             string      `json:"remarks,omitempty"`
	BalanceAfterPayment json.Number `json:"balanceAfterPayment"`
}

func toEntryResponse(e ledger.Entry) entryResponse {
	return entryResponse{
		ID:                  e.ID,
		Amount:              num(e.Amount),
		PaymentDate:         e.PaymentDate,
		ReceiptNumber:       e.ReceiptNumber,
		PaymentMethod:       e.PaymentMethod,
		Remarks:             e.Remarks,
		BalanceAfterPayment: num(e.BalanceAfterPayment),
	}
}

type ledgerResponse struct {
	ID          uuid.UUID       `json:"id"`
	StudentID   uuid.UUID       `json:"studentId"`
	SchoolYear  string          `json:"schoolYear"`
	Term        string          `json:"term"`
	TotalAmount json.Number     `json:"totalAmount"`
	AmountPaid  json.Number     `json:"amountPaid"`
	Balance     json.Number     `json:"balance"`
	DueDate     time.Time       `json:"dueDate"`
	Status      ledger.Status   `json:"status"`
	Entries     []entryResponse `json:"entries"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func toLedgerResponse(l ledger.Ledger) ledgerResponse {
	entries := make([]entryResponse, 0, len(l.Entries))
	for _, e := range l.Entries {
		entries = append(entries, toEntryResponse(e))
	}
	return ledgerResponse{
		ID:          l.ID,
		StudentID:   l.StudentID,
		SchoolYear:  l.SchoolYear,
		Term:        l.Term,
		TotalAmount: num(l.TotalAmount),
		AmountPaid:  num(l.AmountPaid),
		Balance:     num(l.Balance),
		DueDate:     l.DueDate,
		Status:      l.Status,
		Entries:     entries,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func toLedgerResponses(ls []ledger.Ledger) []ledgerResponse {
	out := make([]ledgerResponse, 0, len(ls))
	for _, l := range ls {
		out = append(out, toLedgerResponse(l))
	}
	return out
}

// History and receipts

type historyRowResponse struct {
	LedgerID            uuid.UUID   `json:"ledgerId"`
	SchoolYear          string      `json:"schoolYear"`
	Term                string      `json:"term"`
	EntryID             uuid.UUID   `json:"entryId"`
	Amount              json.Number `json:"amount"`
	PaymentDate         time.Time   `json:"paymentDate"`
	ReceiptNumber       string      `json:"receiptNumber,omitempty"`
	PaymentMethod       string      `json:"paymentMethod,omitempty"`
	Remarks             string      `json:"remarks,omitempty"`
	BalanceAfterPayment json.Number `json:"balanceAfterPayment"`
}

type totalsResponse struct {
	Currency    string      `json:"currency"`
	Billed      json.Number `json:"billed"`
	Paid        json.Number `json:"paid"`
	Outstanding json.Number `json:"outstanding"`
}

type historyResponse struct {
	Student  studentResponse      `json:"student"`
	Payments []historyRowResponse `json:"payments"`
	Totals   totalsResponse       `json:"totals"`
}

func toHistoryResponse(st history.Statement) historyResponse {
	rows := make([]historyRowResponse, 0, len(st.Rows))
	for _, r := range st.Rows {
		rows = append(rows, historyRowResponse{
			LedgerID:            r.LedgerID,
			SchoolYear:          r.SchoolYear,
			Term:                r.Term,
			EntryID:             r.EntryID,
			Amount:              num(r.Amount),
			PaymentDate:         r.PaymentDate,
			ReceiptNumber:       r.ReceiptNumber,
			PaymentMethod:       r.PaymentMethod,
			Remarks:             r.Remarks,
			BalanceAfterPayment: num(r.BalanceAfterPayment),
		})
	}
	return historyResponse{
		Student:  toStudentResponse(st.Student),
		Payments: rows,
		Totals: totalsResponse{
			Currency:    st.Totals.Billed.Curr().Code(),
			Billed:      num(st.Totals.Billed.Decimal()),
			Paid:        num(st.Totals.Paid.Decimal()),
			Outstanding: num(st.Totals.Outstanding.Decimal()),
		},
	}
}

type receiptResponse struct {
	SchoolName    string          `json:"schoolName,omitempty"`
	ReceiptNumber string          `json:"receiptNumber"`
	Student       studentResponse `json:"student"`
	LedgerID      uuid.UUID       `json:"ledgerId"`
	SchoolYear    string          `json:"schoolYear"`
	Term          string          `json:"term"`
	Payment       entryResponse   `json:"payment"`
	Currency      string          `json:"currency"`
	AmountText    string          `json:"amountText"`
	BalanceText   string          `json:"balanceText"`
}

func toReceiptResponse(v history.ReceiptView) receiptResponse {
	return receiptResponse{
		SchoolName:    v.SchoolName,
		ReceiptNumber: v.Entry.ReceiptNumber,
		Student:       toStudentResponse(v.Student),
		LedgerID:      v.Ledger.ID,
		SchoolYear:    v.Ledger.SchoolYear,
		Term:          v.Ledger.Term,
		Payment:       toEntryResponse(v.Entry),
		Currency:      v.Amount.Curr().Code(),
		AmountText:    history.FormatAmount(v.Amount),
		BalanceText:   history.FormatAmount(v.Balance),
	}
}

// Notifications

type notificationResponse struct {
	ID         uuid.UUID               `json:"id"`
	StudentID  uuid.UUID               `json:"studentId"`
	LedgerID   uuid.UUID               `json:"ledgerId"`
	Type       ledger.NotificationType `json:"type"`
	Title      string                  `json:"title"`
	Message    string                  `json:"message"`
	SchoolYear string                  `json:"schoolYear"`
	Read       bool                    `json:"read"`
	CreatedAt  time.Time               `json:"createdAt"`
}

func toNotificationResponse(n ledger.Notification) notificationResponse {
	return notificationResponse{
		ID:         n.ID,
		StudentID:  n.StudentID,
		LedgerID:   n.LedgerID,
		Type:       n.Type,
		Title:      n.Title,
		Message:    n.Message,
		SchoolYear: n.SchoolYear,
		Read:       n.Read,
		CreatedAt:  n.CreatedAt,
	}
}

func toNotificationResponses(ns []ledger.Notification) []notificationResponse {
	out := make([]notificationResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, toNotificationResponse(n))
	}
	return out
}

type sweepResponse struct {
	Message string        `json:"message"`
	Report  notify.Report `json:"report"`
}
