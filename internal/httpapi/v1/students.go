package v1

import (
	"net/http"
	"time"

	"github.com/tinoosan/tuition/internal/ledger"
	"github.com/tinoosan/tuition/internal/receipt"
	"github.com/tinoosan/tuition/internal/service/history"
	"github.com/tinoosan/tuition/internal/service/student"
)

// POST /v1/students
func (s *Server) postStudent(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if !decodeJSON(w, r, &req) || !s.check(w, req) {
		return
	}
	st, err := s.students.Create(r.Context(), req.toDomain())
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, map[string]any{"message": "student created", "student": toStudentResponse(st)})
}

// POST /v1/students/batch registers every student or none of them.
func (s *Server) postStudentsBatch(w http.ResponseWriter, r *http.Request) {
	var req studentsBatchRequest
	if !decodeJSON(w, r, &req) || !s.check(w, req) {
		return
	}
	specs := make([]ledger.Student, 0, len(req.Students))
	for _, it := range req.Students {
		specs = append(specs, it.toDomain())
	}
	created, itemErrs, err := s.students.CreateBatch(r.Context(), specs)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	if len(itemErrs) > 0 {
		toJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "batch rejected",
			"code":    "batch_rejected",
			"errors":  toBatchErrors(itemErrs),
		})
		return
	}
	toJSON(w, http.StatusCreated, map[string]any{"message": "students created", "students": toStudentResponses(created)})
}

// GET /v1/students?grade_level=&section=&active=&q=
func (s *Server) listStudents(w http.ResponseWriter, r *http.Request) {
	active, ok := queryBool(w, r, "active")
	if !ok {
		return
	}
	q := r.URL.Query()
	f := student.Filter{
		GradeLevel: q.Get("grade_level"),
		Section:    q.Get("section"),
		ActiveOnly: active,
		Query:      q.Get("q"),
	}
	out, err := s.students.List(r.Context(), f)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"message": "ok", "students": toStudentResponses(out)})
}

func (s *Server) getStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	st, err := s.students.Get(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"message": "ok", "student": toStudentResponse(st)})
}

func (s *Server) patchStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req patchStudentRequest
	if !decodeJSON(w, r, &req) || !s.check(w, req) {
		return
	}
	current, err := s.students.Get(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	st, err := s.students.Update(r.Context(), req.apply(current))
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"message": "student updated", "student": toStudentResponse(st)})
}

// DELETE /v1/students/{id} deactivates; ledgers and payment history are kept.
func (s *Server) deactivateStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.students.Deactivate(r.Context(), id); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"message": "student deactivated"})
}

func (s *Server) listStudentLedgers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	out, err := s.tuition.ByStudent(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"message": "ok", "ledgers": toLedgerResponses(out)})
}

// GET /v1/students/{id}/history?school_year=&from=&to=
// Answers with a PDF statement when the client accepts application/pdf.
func (s *Server) getStudentHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	from, ok := queryTime(w, r, "from", false)
	if !ok {
		return
	}
	to, ok := queryTime(w, r, "to", true)
	if !ok {
		return
	}
	f := history.Filter{SchoolYear: r.URL.Query().Get("school_year"), From: from, To: to}
	st, err := s.history.ForStudent(r.Context(), id, f)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	if wantsPDF(r) {
		pdf, err := receipt.RenderStatement(s.opts.SchoolName, st, time.Now().UTC())
		if err != nil {
			s.writeServiceErr(w, r, err)
			return
		}
		writePDF(w, "statement-"+st.Student.StudentNumber+".pdf", pdf)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"message": "ok", "history": toHistoryResponse(st)})
}
