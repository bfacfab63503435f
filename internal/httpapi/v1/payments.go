package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tinoosan/tuition/internal/receipt"
)

const receiptCacheTTL = 24 * time.Hour

// POST /v1/ledgers/{id}/payments
func (s *Server) postPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req paymentRequest
	if !decodeJSON(w, r, &req) || !s.check(w, req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	l, e, err := s.tuition.AddPayment(r.Context(), id, in)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, map[string]any{
		"message": "payment recorded",
		"ledger":  toLedgerResponse(l),
		"payment": toEntryResponse(e),
	})
}

func (s *Server) patchPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	entryID, ok := pathID(w, r, "entryID")
	if !ok {
		return
	}
	var req patchPaymentRequest
	if !decodeJSON(w, r, &req) || !s.check(w, req) {
		return
	}
	p, err := req.toPatch()
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	l, err := s.tuition.EditPayment(r.Context(), id, entryID, p)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"message": "payment updated", "ledger": toLedgerResponse(l)})
}

func (s *Server) deletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	entryID, ok := pathID(w, r, "entryID")
	if !ok {
		return
	}
	l, err := s.tuition.DeletePayment(r.Context(), id, entryID)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"message": "payment deleted", "ledger": toLedgerResponse(l)})
}

// GET /v1/ledgers/{id}/payments/{entryID}/receipt
// PDFs are cached per ledger revision, so any edit to the ledger produces a fresh document.
func (s *Server) getReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	entryID, ok := pathID(w, r, "entryID")
	if !ok {
		return
	}
	v, err := s.history.Receipt(r.Context(), id, entryID)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	if v.SchoolName == "" {
		v.SchoolName = s.opts.SchoolName
	}
	if !wantsPDF(r) {
		toJSON(w, http.StatusOK, map[string]any{"message": "ok", "receipt": toReceiptResponse(v)})
		return
	}

	filename := "receipt-" + v.Entry.ReceiptNumber + ".pdf"
	key := "receipt:" + entryID.String() + ":" + strconv.FormatInt(v.Ledger.UpdatedAt.UnixNano(), 10)
	if s.cache != nil {
		b, hit, err := s.cache.Get(r.Context(), key)
		if err != nil {
			s.log.WarnContext(r.Context(), "receipt cache read failed", "key", key, "err", err)
		} else if hit {
			writePDF(w, filename, b)
			return
		}
	}
	pdf, err := receipt.Render(v)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	if s.cache != nil {
		if err := s.cache.Set(r.Context(), key, pdf, receiptCacheTTL); err != nil {
			s.log.WarnContext(r.Context(), "receipt cache write failed", "key", key, "err", err)
		}
	}
	writePDF(w, filename, pdf)
}

func writePDF(w http.ResponseWriter, filename string, b []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
