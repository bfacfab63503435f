package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/govalues/decimal"

	"github.com/tinoosan/tuition/internal/errs"
	"github.com/tinoosan/tuition/internal/ledger"
	"github.com/tinoosan/tuition/internal/service/student"
	"github.com/tinoosan/tuition/internal/service/tuition"
)

// seedDev registers two demo students with first-term ledgers: one partly paid and due soon,
// one unpaid and already past due, so the first sweep has something to report.
// Re-running against a seeded database is a no-op.
func seedDev(ctx context.Context, l *slog.Logger, students student.Service, ledgers tuition.Service) error {
	now := time.Now().UTC()
	year := schoolYear(now)
	specs := []struct {
		st      ledger.Student
		total   string
		due     time.Time
		payment string
	}{
		{
			st:      ledger.Student{StudentNumber: "DEV-0001", FirstName: "Ana", LastName: "Cruz", GradeLevel: "Grade 7", Section: "Rizal", GuardianName: "Maria Cruz", GuardianEmail: "maria.cruz@example.com"},
			total:   "25000",
			due:     now.Add(48 * time.Hour),
			payment: "10000",
		},
		{
			st:    ledger.Student{StudentNumber: "DEV-0002", FirstName: "Ben", LastName: "Santos", GradeLevel: "Grade 8", Section: "Bonifacio", GuardianName: "Jose Santos"},
			total: "27500",
			due:   now.Add(-72 * time.Hour),
		},
	}

	fmt.Println("==================== DEV SEED ====================")
	for _, sp := range specs {
		st, err := students.Create(ctx, sp.st)
		if errors.Is(err, errs.ErrDuplicateStudent) {
			l.Info("dev seed already present", "student_number", sp.st.StudentNumber)
			continue
		}
		if err != nil {
			return err
		}
		in := tuition.CreateInput{
			StudentID:   st.ID,
			SchoolYear:  year,
			Term:        "1st Term",
			TotalAmount: decimal.MustParse(sp.total),
			DueDate:     sp.due,
		}
		if sp.payment != "" {
			in.InitialPayment = &tuition.PaymentInput{Amount: decimal.MustParse(sp.payment), PaymentMethod: "cash"}
		}
		lg, err := ledgers.Create(ctx, in)
		if err != nil {
			return err
		}
		l.Info("DEV seed", "student_id", st.ID.String(), "student_number", st.StudentNumber, "ledger_id", lg.ID.String(), "status", lg.Status)
		fmt.Printf("%s  student_id: %s  ledger_id: %s\n", st.StudentNumber, st.ID, lg.ID)
	}
	fmt.Println("==================================================")
	return nil
}

// schoolYear returns the school year containing t, assuming classes start in June.
func schoolYear(t time.Time) string {
	y := t.Year()
	if t.Month() < time.June {
		y--
	}
	return fmt.Sprintf("%d-%d", y, y+1)
}
