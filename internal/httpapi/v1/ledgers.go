package v1

import (
	"net/http"

	"github.com/tinoosan/tuition/internal/ledger"
	"github.com/tinoosan/tuition/internal/service/tuition"
)

// POST /v1/ledgers
func (s *Server) postLedger(w http.ResponseWriter, r *http.Request) {
	var req createLedgerRequest
	if !decodeJSON(w, r, &req) || !s.check(w, req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	l, err := s.tuition.Create(r.Context(), in)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, map[string]any{"message": "ledger created", "ledger": toLedgerResponse(l)})
}

// GET /v1/ledgers?student_id=&school_year=&term=&status=&outstanding=&due_from=&due_to=
func (s *Server) listLedgers(w http.ResponseWriter, r *http.Request) {
	studentID, ok := queryID(w, r, "student_id")
	if !ok {
		return
	}
	outstanding, ok := queryBool(w, r, "outstanding")
	if !ok {
		return
	}
	dueFrom, ok := queryTime(w, r, "due_from", false)
	if !ok {
		return
	}
	dueTo, ok := queryTime(w, r, "due_to", true)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := tuition.Filter{
		StudentID:       studentID,
		SchoolYear:      q.Get("school_year"),
		Term:            q.Get("term"),
		Status:          ledger.Status(q.Get("status")),
		OutstandingOnly: outstanding,
		DueFrom:         dueFrom,
		DueTo:           dueTo,
	}
	out, err := s.tuition.List(r.Context(), f)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"message": "ok", "ledgers": toLedgerResponses(out)})
}

func (s *Server) getLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	l, err := s.tuition.Get(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"message": "ok", "ledger": toLedgerResponse(l)})
}

// PATCH /v1/ledgers/{id} changes total, due date or period and recalculates.
func (s *Server) patchLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req patchLedgerRequest
	if !decodeJSON(w, r, &req) || !s.check(w, req) {
		return
	}
	p, err := req.toPatch()
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	l, err := s.tuition.Update(r.Context(), id, p)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"message": "ledger updated", "ledger": toLedgerResponse(l)})
}

func (s *Server) deleteLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.tuition.Delete(r.Context(), id); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"message": "ledger deleted"})
}
