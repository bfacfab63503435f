// Package receipt renders official receipts and payment statements as PDF documents.
package receipt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/tinoosan/tuition/internal/service/history"
)

const dateLayout = "02-Jan-2006"

// Render produces a single-page A4 official receipt for one payment.
// The document is dated by the ledger revision it was built from, so the
// same revision always renders the same bytes.
func Render(v history.ReceiptView) ([]byte, error) {
	pdf := newDocument(revisionTime(v))
	header(pdf, v.SchoolName, "Official Receipt", "As of", revisionTime(v))

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Receipt No. "+v.Entry.ReceiptNumber, "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pair(pdf, "Student: "+v.Student.FullName(), "Student No: "+v.Student.StudentNumber)
	pair(pdf, "Grade/Section: "+gradeSection(v.Student.GradeLevel, v.Student.Section), "Guardian: "+v.Student.GuardianName)
	pair(pdf, "School Year: "+v.Ledger.SchoolYear, "Term: "+v.Ledger.Term)
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Payment", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pair(pdf, "Date: "+v.Entry.PaymentDate.Format(dateLayout), "Method: "+orDash(v.Entry.PaymentMethod))
	pdf.CellFormat(190, 7, "Remarks: "+orDash(v.Entry.Remarks), "LRB", 1, "L", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 14)
	pdf.SetFillColor(200, 255, 200)
	pdf.CellFormat(190, 10, "Amount Received: "+history.FormatAmount(v.Amount), "1", 1, "C", true, 0, "")
	if v.Balance.IsPos() {
		pdf.SetFillColor(255, 200, 200)
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 9, "Balance After Payment: "+history.FormatAmount(v.Balance), "1", 1, "C", true, 0, "")

	return output(pdf)
}

// RenderStatement lists every payment of a student's history with the running totals,
// dated at.
func RenderStatement(schoolName string, st history.Statement, at time.Time) ([]byte, error) {
	pdf := newDocument(at)
	header(pdf, schoolName, "Statement of Account", "Generated", at)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Student Information", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pair(pdf, "Name: "+st.Student.FullName(), "Student No: "+st.Student.StudentNumber)
	pair(pdf, "Grade/Section: "+gradeSection(st.Student.GradeLevel, st.Student.Section), "Guardian: "+st.Student.GuardianName)
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Payment History", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(30, 7, "Date", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Receipt #", "1", 0, "C", true, 0, "")
	pdf.CellFormat(50, 7, "Period", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 7, "Amount", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 7, "Balance", "1", 1, "C", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, r := range st.Rows {
		pdf.CellFormat(30, 6, r.PaymentDate.Format(dateLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, r.ReceiptNumber, "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, truncate(r.SchoolYear+" "+r.Term, 28), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, r.Amount.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, r.BalanceAfterPayment.String(), "1", 1, "R", false, 0, "")
	}
	if len(st.Rows) == 0 {
		pdf.CellFormat(190, 6, "No payments recorded.", "1", 1, "C", false, 0, "")
	}
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(63, 8, "Billed: "+history.FormatAmount(st.Totals.Billed), "1", 0, "C", false, 0, "")
	pdf.CellFormat(63, 8, "Paid: "+history.FormatAmount(st.Totals.Paid), "1", 0, "C", false, 0, "")
	if st.Totals.Outstanding.IsPos() {
		pdf.SetFillColor(255, 200, 200)
	} else {
		pdf.SetFillColor(200, 255, 200)
	}
	pdf.CellFormat(64, 8, "Outstanding: "+history.FormatAmount(st.Totals.Outstanding), "1", 1, "C", true, 0, "")

	return output(pdf)
}

// newDocument pins the PDF info dates to at; gofpdf falls back to the wall clock otherwise.
func newDocument(at time.Time) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(at)
	pdf.SetModificationDate(at)
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()
	return pdf
}

// revisionTime is the last change to the ledger a receipt reflects.
func revisionTime(v history.ReceiptView) time.Time {
	if !v.Ledger.UpdatedAt.IsZero() {
		return v.Ledger.UpdatedAt.UTC()
	}
	return v.Entry.PaymentDate.UTC()
}

func stamp(label string, at time.Time) string {
	return fmt.Sprintf("%s: %s", label, at.Format("02-Jan-2006 03:04 PM"))
}

func header(pdf *gofpdf.Fpdf, school, title, label string, at time.Time) {
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, orDefault(school, "Tuition Office"), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(190, 8, title, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, stamp(label, at), "", 1, "C", false, 0, "")
	pdf.Ln(5)
}

func pair(pdf *gofpdf.Fpdf, left, right string) {
	pdf.CellFormat(95, 7, left, "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, right, "RB", 1, "L", false, 0, "")
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gradeSection(grade, section string) string {
	if section == "" {
		return grade
	}
	return grade + " - " + section
}

func orDash(s string) string { return orDefault(s, "-") }

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
