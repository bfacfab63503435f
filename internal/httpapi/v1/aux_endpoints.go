package v1

import (
	"context"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/tinoosan/tuition/internal/dictionary"
)

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

// readyz checks every registered dependency with a short timeout.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
	defer cancel()
	for _, rc := range s.ready {
		if err := rc.Ready(ctx); err != nil {
			s.log.WarnContext(ctx, "readiness check failed", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// GET /v1/dictionary/{name}
func (s *Server) getDictionary(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	items, ok := dictionary.Lookup(name)
	if !ok {
		toJSON(w, http.StatusNotFound, map[string]any{
			"message":   "unknown dictionary",
			"code":      "not_found",
			"available": dictionary.Names(),
		})
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"message": "ok", "items": items})
}
