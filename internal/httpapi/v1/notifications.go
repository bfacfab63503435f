package v1

import (
	"net/http"

	"github.com/tinoosan/tuition/internal/service/notify"
)

// GET /v1/notifications?student_id=&unread=&limit=
func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	studentID, ok := queryID(w, r, "student_id")
	if !ok {
		return
	}
	unread, ok := queryBool(w, r, "unread")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", 500)
	if !ok {
		return
	}
	out, err := s.feed.List(r.Context(), notify.Filter{StudentID: studentID, UnreadOnly: unread, Limit: limit})
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"message": "ok", "notifications": toNotificationResponses(out)})
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	n, err := s.feed.MarkRead(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"message": "notification marked as read", "notification": toNotificationResponse(n)})
}

func (s *Server) deleteNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.feed.Delete(r.Context(), id); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"message": "notification deleted"})
}

// POST /v1/notifications/sweep runs one sweep synchronously and reports what it did.
func (s *Server) runSweep(w http.ResponseWriter, r *http.Request) {
	if s.sweeper == nil {
		writeErr(w, http.StatusServiceUnavailable, "sweep is not configured", "unavailable")
		return
	}
	rep, err := s.sweeper.Run(r.Context())
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, sweepResponse{Message: "sweep complete", Report: rep})
}
