package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campustools/gridcal/internal/auth"
	"github.com/campustools/gridcal/internal/feed"
	httperrors "github.com/campustools/gridcal/internal/http/errors"
	"github.com/campustools/gridcal/internal/run"
	"github.com/campustools/gridcal/internal/store"
	"github.com/campustools/gridcal/internal/timetable"
)

// Feed serves a subscriber's selection as an ICS calendar. The token query
// parameter must match the subscriber's feed token; calendar apps poll this
// URL without any other credentials.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	sub, err := h.store.Subscribers.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		httperrors.InternalError(w, r, err, "load subscriber")
		return
	}
	if !sub.Active {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if !auth.VerifyFeedToken(sub.FeedTokenHash, r.URL.Query().Get("token")) {
		http.Error(w, "invalid feed token", http.StatusUnauthorized)
		return
	}

	// Cancelled events stay in the feed as STATUS:CANCELLED tombstones. An
	// empty selection yields an empty calendar, mirroring the sync behavior.
	var events []timetable.ScheduleEvent
	if len(sub.Courses) > 0 {
		events, err = h.store.Events.List(r.Context(), store.EventFilter{
			Courses:          sub.Courses,
			IncludeCancelled: true,
		})
		if err != nil {
			httperrors.InternalError(w, r, err, "load events")
			return
		}
	}

	builder := feed.Builder{Zone: h.zone, Name: run.DefaultCalendarName}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	_, _ = w.Write([]byte(builder.Calendar(events)))
}
