// Package student implements the student registry that tuition ledgers reference:
// required identity fields, a per-school unique student number, and soft deactivation.
package student

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tinoosan/tuition/internal/errs"
	"github.com/tinoosan/tuition/internal/ledger"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	GradeLevel string
	Section    string
	// ActiveOnly hides deactivated students.
	ActiveOnly bool
	// Query matches student number or name, case-insensitively.
	Query string
}

// Match reports whether s passes the filter.
func (f Filter) Match(s ledger.Student) bool {
	if f.ActiveOnly && !s.Active {
		return false
	}
	if f.GradeLevel != "" && !strings.EqualFold(f.GradeLevel, s.GradeLevel) {
		return false
	}
	if f.Section != "" && !strings.EqualFold(f.Section, s.Section) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		hay := strings.ToLower(s.StudentNumber + " " + s.FullName())
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

type Repo interface {
	ListStudents(ctx context.Context, f Filter) ([]ledger.Student, error)
	GetStudent(ctx context.Context, id uuid.UUID) (ledger.Student, error)
}

type Writer interface {
	// CreateStudent fails with errs.ErrDuplicateStudent when the student number is taken.
	CreateStudent(ctx context.Context, s ledger.Student) (ledger.Student, error)
	UpdateStudent(ctx context.Context, s ledger.Student) (ledger.Student, error)
}

// Tx is a unit of work used to register a batch atomically.
type Tx interface {
	CreateStudent(ctx context.Context, s ledger.Student) (ledger.Student, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxBeginner is implemented by writers that support transactions. Writers without it get
// one CreateStudent call per item after validation.
type TxBeginner interface {
	BeginStudentTx(ctx context.Context) (Tx, error)
}

type Service interface {
	ValidateCreate(s ledger.Student) error
	Create(ctx context.Context, s ledger.Student) (ledger.Student, error)
	CreateBatch(ctx context.Context, specs []ledger.Student) ([]ledger.Student, []ItemError, error)
	Get(ctx context.Context, id uuid.UUID) (ledger.Student, error)
	List(ctx context.Context, f Filter) ([]ledger.Student, error)
	Update(ctx context.Context, s ledger.Student) (ledger.Student, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo   Repo
	writer Writer
	now    func() time.Time
}

func New(repo Repo, writer Writer) Service {
	return &service{repo: repo, writer: writer, now: time.Now}
}

// ItemError represents a per-item failure in a batch registration.
type ItemError struct {
	Index int
	Code  string
	Err   error
}

func normalize(s ledger.Student) ledger.Student {
	s.StudentNumber = strings.ToUpper(strings.TrimSpace(s.StudentNumber))
	s.FirstName = strings.TrimSpace(s.FirstName)
	s.LastName = strings.TrimSpace(s.LastName)
	s.GradeLevel = strings.TrimSpace(s.GradeLevel)
	s.Section = strings.TrimSpace(s.Section)
	s.GuardianEmail = strings.ToLower(strings.TrimSpace(s.GuardianEmail))
	return s
}

func (s *service) ValidateCreate(st ledger.Student) error {
	st = normalize(st)
	if st.StudentNumber == "" {
		return errs.Field("studentNumber", "is required")
	}
	if st.FirstName == "" {
		return errs.Field("firstName", "is required")
	}
	if st.LastName == "" {
		return errs.Field("lastName", "is required")
	}
	if st.GradeLevel == "" {
		return errs.Field("gradeLevel", "is required")
	}
	if st.GuardianEmail != "" && !strings.Contains(st.GuardianEmail, "@") {
		return errs.Field("guardianEmail", "must be an email address")
	}
	return nil
}

func (s *service) Create(ctx context.Context, st ledger.Student) (ledger.Student, error) {
	st = normalize(st)
	if err := s.ValidateCreate(st); err != nil {
		return ledger.Student{}, err
	}
	now := s.now().UTC()
	st.ID = uuid.New()
	st.Active = true
	st.CreatedAt, st.UpdatedAt = now, now
	return s.writer.CreateStudent(ctx, st)
}

// CreateBatch validates every item and only creates students when all of them pass.
// Duplicate student numbers inside the batch or against existing students are reported per item.
func (s *service) CreateBatch(ctx context.Context, specs []ledger.Student) ([]ledger.Student, []ItemError, error) {
	if len(specs) == 0 {
		return nil, nil, errs.Field("students", "is required")
	}
	itemErrs := make([]ItemError, 0)
	normalized := make([]ledger.Student, len(specs))
	for i, in := range specs {
		normalized[i] = normalize(in)
		if err := s.ValidateCreate(normalized[i]); err != nil {
			itemErrs = append(itemErrs, ItemError{Index: i, Code: "validation_error", Err: err})
		}
	}
	if len(itemErrs) > 0 {
		return nil, itemErrs, nil
	}
	existing, err := s.repo.ListStudents(ctx, Filter{})
	if err != nil {
		return nil, nil, err
	}
	taken := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		taken[e.StudentNumber] = struct{}{}
	}
	seen := make(map[string]int)
	for i, st := range normalized {
		if prev, ok := seen[st.StudentNumber]; ok {
			itemErrs = append(itemErrs, ItemError{Index: prev, Code: "conflict", Err: errs.ErrDuplicateStudent})
			itemErrs = append(itemErrs, ItemError{Index: i, Code: "conflict", Err: errs.ErrDuplicateStudent})
			continue
		}
		seen[st.StudentNumber] = i
		if _, ok := taken[st.StudentNumber]; ok {
			itemErrs = append(itemErrs, ItemError{Index: i, Code: "conflict", Err: errs.ErrDuplicateStudent})
		}
	}
	if len(itemErrs) > 0 {
		return nil, itemErrs, nil
	}

	now := s.now().UTC()
	created := make([]ledger.Student, 0, len(normalized))
	for _, st := range normalized {
		st.ID = uuid.New()
		st.Active = true
		st.CreatedAt, st.UpdatedAt = now, now
		created = append(created, st)
	}
	if b, ok := s.writer.(TxBeginner); ok {
		tx, err := b.BeginStudentTx(ctx)
		if err != nil {
			return nil, nil, err
		}
		for _, st := range created {
			if _, err := tx.CreateStudent(ctx, st); err != nil {
				_ = tx.Rollback(ctx)
				return nil, nil, err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, nil, err
		}
		return created, nil, nil
	}
	for _, st := range created {
		if _, err := s.writer.CreateStudent(ctx, st); err != nil {
			return nil, nil, err
		}
	}
	return created, nil, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (ledger.Student, error) {
	if id == uuid.Nil {
		return ledger.Student{}, errs.ErrInvalid
	}
	return s.repo.GetStudent(ctx, id)
}

func (s *service) List(ctx context.Context, f Filter) ([]ledger.Student, error) {
	return s.repo.ListStudents(ctx, f)
}

// Update replaces the editable fields of a student. The student number is immutable.
func (s *service) Update(ctx context.Context, st ledger.Student) (ledger.Student, error) {
	if st.ID == uuid.Nil {
		return ledger.Student{}, errs.ErrInvalid
	}
	current, err := s.repo.GetStudent(ctx, st.ID)
	if err != nil {
		return ledger.Student{}, err
	}
	st = normalize(st)
	if st.StudentNumber != current.StudentNumber {
		return ledger.Student{}, errs.Field("studentNumber", "is immutable")
	}
	if err := s.ValidateCreate(st); err != nil {
		return ledger.Student{}, err
	}
	st.CreatedAt = current.CreatedAt
	st.UpdatedAt = s.now().UTC()
	return s.writer.UpdateStudent(ctx, st)
}

// Deactivate soft-deletes a student; existing ledgers are kept for the payment history.
func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errs.ErrInvalid
	}
	st, err := s.repo.GetStudent(ctx, id)
	if err != nil {
		return err
	}
	if !st.Active {
		return nil
	}
	st.Active = false
	st.UpdatedAt = s.now().UTC()
	if _, err := s.writer.UpdateStudent(ctx, st); err != nil {
		return err
	}
	return nil
}
