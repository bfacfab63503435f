package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tinoosan/tuition/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// toJSON writes a JSON response with status code.
func toJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Message: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeErr(w, http.StatusBadRequest, msg, "validation_error")
}

// decodeJSON requires a JSON content type and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !requireJSON(w, r) {
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// serviceErrors maps sentinels to status and code, most specific first.
var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{errs.ErrStudentNotFound, http.StatusNotFound, "student_not_found"},
	{errs.ErrLedgerNotFound, http.StatusNotFound, "ledger_not_found"},
	{errs.ErrEntryNotFound, http.StatusNotFound, "payment_not_found"},
	{errs.ErrNotificationNotFound, http.StatusNotFound, "notification_not_found"},
	{errs.ErrNotFound, http.StatusNotFound, "not_found"},
	{errs.ErrDuplicateLedger, http.StatusConflict, "duplicate_ledger"},
	{errs.ErrDuplicateStudent, http.StatusConflict, "duplicate_student"},
	{errs.ErrConflict, http.StatusConflict, "conflict"},
	{errs.ErrAmountExceedsBalance, http.StatusUnprocessableEntity, "amount_exceeds_balance"},
	{errs.ErrInvalidAmount, http.StatusUnprocessableEntity, "invalid_amount"},
	{errs.ErrInactiveStudent, http.StatusUnprocessableEntity, "inactive_student"},
	{errs.ErrUnprocessable, http.StatusUnprocessableEntity, "unprocessable"},
	{errs.ErrInvalid, http.StatusBadRequest, "validation_error"},
}

// writeServiceErr translates a service error into the API error envelope. Unknown errors are
// logged and reported as a generic 500.
func (s *Server) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			writeErr(w, m.status, err.Error(), m.code)
			return
		}
	}
	s.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	writeErr(w, http.StatusInternalServerError, "internal server error", "internal_error")
}
