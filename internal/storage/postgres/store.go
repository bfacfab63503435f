// Package postgres provides a pgx-backed storage implementation that satisfies the repository
// and writer interfaces used by the services.
//
// Migrations that create the expected schema live under db/migrations. Money columns are
// numeric(14,2); they are written from and read back as decimal strings so no float ever
// touches an amount.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/tuition/internal/errs"
	"github.com/tinoosan/tuition/internal/ledger"
	"github.com/tinoosan/tuition/internal/period"
	"github.com/tinoosan/tuition/internal/service/notify"
	"github.com/tinoosan/tuition/internal/service/student"
	"github.com/tinoosan/tuition/internal/service/tuition"
)

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// executor is satisfied by both the pool and a transaction.
type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.Parse(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// --- Students ---

const studentColumns = `id, student_number, first_name, last_name, grade_level, section,
	guardian_name, guardian_email, guardian_phone, active, created_at, updated_at`

func scanStudent(row pgx.Row) (ledger.Student, error) {
	var st ledger.Student
	err := row.Scan(&st.ID, &st.StudentNumber, &st.FirstName, &st.LastName, &st.GradeLevel, &st.Section,
		&st.GuardianName, &st.GuardianEmail, &st.GuardianPhone, &st.Active, &st.CreatedAt, &st.UpdatedAt)
	return st, err
}

func insertStudent(ctx context.Context, ex executor, st ledger.Student) (ledger.Student, error) {
	_, err := ex.Exec(ctx, `
		insert into students (`+studentColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, st.ID, st.StudentNumber, st.FirstName, st.LastName, st.GradeLevel, st.Section,
		st.GuardianName, st.GuardianEmail, st.GuardianPhone, st.Active, st.CreatedAt, st.UpdatedAt)
	if uniqueViolation(err, "") {
		return ledger.Student{}, errs.ErrDuplicateStudent
	}
	if err != nil {
		return ledger.Student{}, err
	}
	return st, nil
}

// CreateStudent inserts a student row.
func (s *Store) CreateStudent(ctx context.Context, st ledger.Student) (ledger.Student, error) {
	return insertStudent(ctx, s.pool, st)
}

// UpdateStudent updates every mutable column.
func (s *Store) UpdateStudent(ctx context.Context, st ledger.Student) (ledger.Student, error) {
	ct, err := s.pool.Exec(ctx, `
		update students
		set first_name=$1, last_name=$2, grade_level=$3, section=$4, guardian_name=$5,
		    guardian_email=$6, guardian_phone=$7, active=$8, updated_at=$9
		where id=$10
	`, st.FirstName, st.LastName, st.GradeLevel, st.Section, st.GuardianName,
		st.GuardianEmail, st.GuardianPhone, st.Active, st.UpdatedAt, st.ID)
	if err != nil {
		return ledger.Student{}, err
	}
	if ct.RowsAffected() == 0 {
		return ledger.Student{}, errs.ErrStudentNotFound
	}
	return st, nil
}

// GetStudent fetches a single student by id.
func (s *Store) GetStudent(ctx context.Context, id uuid.UUID) (ledger.Student, error) {
	st, err := scanStudent(s.pool.QueryRow(ctx, `select `+studentColumns+` from students where id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Student{}, errs.ErrStudentNotFound
	}
	return st, err
}

// ListStudents returns students matching f ordered by name.
func (s *Store) ListStudents(ctx context.Context, f student.Filter) ([]ledger.Student, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ActiveOnly {
		where = append(where, "active")
	}
	if f.GradeLevel != "" {
		add("lower(grade_level) = lower($%d)", f.GradeLevel)
	}
	if f.Section != "" {
		add("lower(section) = lower($%d)", f.Section)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		add("lower(student_number || ' ' || first_name || ' ' || last_name) like '%%' || lower($%d) || '%%'", q)
	}
	sql := `select ` + studentColumns + ` from students`
	if len(where) > 0 {
		sql += ` where ` + strings.Join(where, " and ")
	}
	sql += ` order by last_name, first_name, student_number`
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Student, 0)
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// BeginStudentTx starts a transaction for batch registration.
func (s *Store) BeginStudentTx(ctx context.Context) (student.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Tx wraps a pgx.Tx and implements student.Tx.
type Tx struct{ tx pgx.Tx }

func (t *Tx) CreateStudent(ctx context.Context, st ledger.Student) (ledger.Student, error) {
	return insertStudent(ctx, t.tx, st)
}

func (t *Tx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// --- Ledgers ---

const ledgerColumns = `id, student_id, school_year, term, total_amount::text, amount_paid::text,
	balance::text, status, due_date, created_at, updated_at`

func scanLedger(row pgx.Row) (ledger.Ledger, error) {
	var l ledger.Ledger
	var total, paid, balance, status string
	if err := row.Scan(&l.ID, &l.StudentID, &l.SchoolYear, &l.Term, &total, &paid, &balance, &status,
		&l.DueDate, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return ledger.Ledger{}, err
	}
	var err error
	if l.TotalAmount, err = parseAmount(total); err != nil {
		return ledger.Ledger{}, err
	}
	if l.AmountPaid, err = parseAmount(paid); err != nil {
		return ledger.Ledger{}, err
	}
	if l.Balance, err = parseAmount(balance); err != nil {
		return ledger.Ledger{}, err
	}
	l.Status = ledger.Status(status)
	l.Entries = []ledger.Entry{}
	return l, nil
}

// loadEntries fills Entries for every ledger in ls.
func (s *Store) loadEntries(ctx context.Context, ls []ledger.Ledger) error {
	if len(ls) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(ls))
	idx := make(map[uuid.UUID]*ledger.Ledger, len(ls))
	for i := range ls {
		ids[i] = ls[i].ID
		idx[ls[i].ID] = &ls[i]
	}
	rows, err := s.pool.Query(ctx, `
		select ledger_id, id, amount::text, payment_date, receipt_number, payment_method, remarks,
		       balance_after_payment::text
		from ledger_entries
		where ledger_id = any($1)
		order by ledger_id, position
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ledgerID uuid.UUID
		var e ledger.Entry
		var amount, after string
		if err := rows.Scan(&ledgerID, &e.ID, &amount, &e.PaymentDate, &e.ReceiptNumber, &e.PaymentMethod,
			&e.Remarks, &after); err != nil {
			return err
		}
		if e.Amount, err = parseAmount(amount); err != nil {
			return err
		}
		if e.BalanceAfterPayment, err = parseAmount(after); err != nil {
			return err
		}
		if l := idx[ledgerID]; l != nil {
			l.Entries = append(l.Entries, e)
		}
	}
	return rows.Err()
}

func insertEntries(ctx context.Context, tx pgx.Tx, l ledger.Ledger) error {
	for i, e := range l.Entries {
		if _, err := tx.Exec(ctx, `
			insert into ledger_entries (id, ledger_id, position, amount, payment_date, receipt_number,
			                            payment_method, remarks, balance_after_payment)
			values ($1,$2,$3,$4::numeric,$5,$6,$7,$8,$9::numeric)
		`, e.ID, l.ID, i, e.Amount.String(), e.PaymentDate, e.ReceiptNumber, e.PaymentMethod, e.Remarks,
			e.BalanceAfterPayment.String()); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}
	return nil
}

// CreateLedger inserts the ledger and its entries in one transaction.
func (s *Store) CreateLedger(ctx context.Context, l ledger.Ledger) (ledger.Ledger, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Ledger{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	_, err = tx.Exec(ctx, `
		insert into ledgers (id, student_id, school_year, term, term_key, total_amount, amount_paid, balance,
		                     status, due_date, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6::numeric,$7::numeric,$8::numeric,$9,$10,$11,$12)
	`, l.ID, l.StudentID, l.SchoolYear, l.Term, period.TermKey(l.Term), l.TotalAmount.String(),
		l.AmountPaid.String(), l.Balance.String(), string(l.Status), l.DueDate, l.CreatedAt, l.UpdatedAt)
	if uniqueViolation(err, "ledgers_period_key") {
		return ledger.Ledger{}, errs.ErrDuplicateLedger
	}
	if err != nil {
		return ledger.Ledger{}, err
	}
	if err := insertEntries(ctx, tx, l); err != nil {
		return ledger.Ledger{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Ledger{}, err
	}
	return l.Clone(), nil
}

// SaveLedger updates the ledger row and rewrites its entries in one transaction.
func (s *Store) SaveLedger(ctx context.Context, l ledger.Ledger) (ledger.Ledger, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Ledger{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	ct, err := tx.Exec(ctx, `
		update ledgers
		set school_year=$1, term=$2, term_key=$3, total_amount=$4::numeric, amount_paid=$5::numeric,
		    balance=$6::numeric, status=$7, due_date=$8, updated_at=$9
		where id=$10
	`, l.SchoolYear, l.Term, period.TermKey(l.Term), l.TotalAmount.String(), l.AmountPaid.String(),
		l.Balance.String(), string(l.Status), l.DueDate, l.UpdatedAt, l.ID)
	if uniqueViolation(err, "ledgers_period_key") {
		return ledger.Ledger{}, errs.ErrDuplicateLedger
	}
	if err != nil {
		return ledger.Ledger{}, err
	}
	if ct.RowsAffected() == 0 {
		return ledger.Ledger{}, errs.ErrLedgerNotFound
	}
	if _, err := tx.Exec(ctx, `delete from ledger_entries where ledger_id = $1`, l.ID); err != nil {
		return ledger.Ledger{}, err
	}
	if err := insertEntries(ctx, tx, l); err != nil {
		return ledger.Ledger{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Ledger{}, err
	}
	return l.Clone(), nil
}

// DeleteLedger removes a ledger; entries cascade.
func (s *Store) DeleteLedger(ctx context.Context, id uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `delete from ledgers where id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrLedgerNotFound
	}
	return nil
}

// MarkOverdue sets only the status column, and only while a balance remains.
func (s *Store) MarkOverdue(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	ct, err := s.pool.Exec(ctx, `update ledgers set status=$1, updated_at=$2 where id=$3 and balance > 0`,
		string(ledger.StatusOverdue), at, id)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() > 0 {
		return true, nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `select exists(select 1 from ledgers where id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, errs.ErrLedgerNotFound
	}
	return false, nil
}

// GetLedger returns a ledger with entries in payment order.
func (s *Store) GetLedger(ctx context.Context, id uuid.UUID) (ledger.Ledger, error) {
	l, err := scanLedger(s.pool.QueryRow(ctx, `select `+ledgerColumns+` from ledgers where id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Ledger{}, errs.ErrLedgerNotFound
	}
	if err != nil {
		return ledger.Ledger{}, err
	}
	ls := []ledger.Ledger{l}
	if err := s.loadEntries(ctx, ls); err != nil {
		return ledger.Ledger{}, err
	}
	return ls[0], nil
}

// LedgerByPeriod looks a ledger up by its uniqueness triple.
func (s *Store) LedgerByPeriod(ctx context.Context, studentID uuid.UUID, schoolYear, termKey string) (ledger.Ledger, bool, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		select id from ledgers where student_id = $1 and school_year = $2 and term_key = $3
	`, studentID, schoolYear, period.TermKey(termKey)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Ledger{}, false, nil
	}
	if err != nil {
		return ledger.Ledger{}, false, err
	}
	l, err := s.GetLedger(ctx, id)
	if err != nil {
		return ledger.Ledger{}, false, err
	}
	return l, true, nil
}

// ListLedgers returns ledgers matching f ordered by due date.
func (s *Store) ListLedgers(ctx context.Context, f tuition.Filter) ([]ledger.Ledger, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.StudentID != uuid.Nil {
		add("student_id = $%d", f.StudentID)
	}
	if f.SchoolYear != "" {
		add("school_year = $%d", f.SchoolYear)
	}
	if f.Term != "" {
		add("term_key = $%d", period.TermKey(f.Term))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.OutstandingOnly {
		where = append(where, "balance > 0")
	}
	if f.DueFrom != nil {
		add("due_date >= $%d", *f.DueFrom)
	}
	if f.DueTo != nil {
		add("due_date <= $%d", *f.DueTo)
	}
	sql := `select ` + ledgerColumns + ` from ledgers`
	if len(where) > 0 {
		sql += ` where ` + strings.Join(where, " and ")
	}
	sql += ` order by due_date, school_year, term`
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Ledger, 0)
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadEntries(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Notifications ---

const notificationColumns = `id, student_id, ledger_id, type, title, message, school_year, read, created_at`

func scanNotification(row pgx.Row) (ledger.Notification, error) {
	var n ledger.Notification
	var ledgerID *uuid.UUID
	var typ string
	if err := row.Scan(&n.ID, &n.StudentID, &ledgerID, &typ, &n.Title, &n.Message, &n.SchoolYear, &n.Read, &n.CreatedAt); err != nil {
		return ledger.Notification{}, err
	}
	if ledgerID != nil {
		n.LedgerID = *ledgerID
	}
	n.Type = ledger.NotificationType(typ)
	return n, nil
}

func (s *Store) CreateNotification(ctx context.Context, n ledger.Notification) (ledger.Notification, error) {
	var ledgerID *uuid.UUID
	if n.LedgerID != uuid.Nil {
		ledgerID = &n.LedgerID
	}
	_, err := s.pool.Exec(ctx, `
		insert into notifications (`+notificationColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, n.ID, n.StudentID, ledgerID, string(n.Type), n.Title, n.Message, n.SchoolYear, n.Read, n.CreatedAt)
	if err != nil {
		return ledger.Notification{}, err
	}
	return n, nil
}

func (s *Store) RecentNotificationExists(ctx context.Context, k notify.DedupKey, since time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		select exists (
			select 1 from notifications
			where student_id = $1 and type = $2 and school_year = $3 and title = $4 and created_at >= $5
		)
	`, k.StudentID, string(k.Type), k.SchoolYear, k.Title, since).Scan(&exists)
	return exists, err
}

func (s *Store) GetNotification(ctx context.Context, id uuid.UUID) (ledger.Notification, error) {
	n, err := scanNotification(s.pool.QueryRow(ctx, `select `+notificationColumns+` from notifications where id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Notification{}, errs.ErrNotificationNotFound
	}
	return n, err
}

// ListNotifications returns matching notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, f notify.Filter) ([]ledger.Notification, error) {
	var where []string
	var args []any
	if f.StudentID != uuid.Nil {
		args = append(args, f.StudentID)
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if f.UnreadOnly {
		where = append(where, "not read")
	}
	sql := `select ` + notificationColumns + ` from notifications`
	if len(where) > 0 {
		sql += ` where ` + strings.Join(where, " and ")
	}
	sql += ` order by created_at desc, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += fmt.Sprintf(` limit $%d`, len(args))
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) UpdateNotification(ctx context.Context, n ledger.Notification) (ledger.Notification, error) {
	ct, err := s.pool.Exec(ctx, `update notifications set read=$1 where id=$2`, n.Read, n.ID)
	if err != nil {
		return ledger.Notification{}, err
	}
	if ct.RowsAffected() == 0 {
		return ledger.Notification{}, errs.ErrNotificationNotFound
	}
	return n, nil
}

func (s *Store) DeleteNotification(ctx context.Context, id uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `delete from notifications where id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotificationNotFound
	}
	return nil
}
