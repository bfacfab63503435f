package v1

import (
	"net/http"
	"strings"
)

// requireJSON ensures the request has Content-Type application/json (optionally with params).
// Writes 415 if not JSON and returns false; otherwise returns true.
func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	mime := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	if mime != "application/json" {
		writeErr(w, http.StatusUnsupportedMediaType, "unsupported media type", "unsupported_media_type")
		return false
	}
	return true
}

// wantsPDF reports whether the client asked for a PDF rendition.
func wantsPDF(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "pdf") {
		return true
	}
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		if strings.EqualFold(strings.TrimSpace(strings.Split(part, ";")[0]), "application/pdf") {
			return true
		}
	}
	return false
}
