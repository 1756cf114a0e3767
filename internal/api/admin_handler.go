package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httperrors "github.com/campustools/gridcal/internal/http/errors"
	"github.com/campustools/gridcal/internal/store"
)

// TriggerIngest refreshes the stored snapshot from the grid source.
func (h *Handler) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.Ingest(r.Context())
	if err != nil {
		httperrors.LogError(r, "ingest", err)
	}
	if report == nil {
		httperrors.InternalError(w, r, err, "ingest")
		return
	}
	h.writeJSON(w, r, reportStatus(err), report)
}

// TriggerSync runs a full ingest plus reconciliation of every active
// subscriber and returns the per-run reports.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	reports, err := h.runner.SyncAll(r.Context())
	if err != nil {
		httperrors.LogError(r, "sync run", err)
	}
	if reports == nil {
		reports = []store.SyncReport{}
	}
	h.writeJSON(w, r, reportStatus(err), reports)
}

// ListReports returns recent sync reports, newest first.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httperrors.BadRequestError(w, r, fmt.Errorf("limit %q", v), "invalid limit")
			return
		}
		limit = n
	}
	reports, err := h.store.Reports.ListRecent(r.Context(), limit)
	if err != nil {
		httperrors.InternalError(w, r, err, "list reports")
		return
	}
	if reports == nil {
		reports = []store.SyncReport{}
	}
	h.writeJSON(w, r, http.StatusOK, reports)
}

// ListSubscribers returns all subscribers; pass active=true to narrow to
// active ones.
func (h *Handler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	onlyActive := false
	if v := r.URL.Query().Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			httperrors.BadRequestError(w, r, err, "invalid active value")
			return
		}
		onlyActive = b
	}
	subs, err := h.store.Subscribers.List(r.Context(), onlyActive)
	if err != nil {
		httperrors.InternalError(w, r, err, "list subscribers")
		return
	}
	if subs == nil {
		subs = []store.Subscriber{}
	}
	h.writeJSON(w, r, http.StatusOK, subs)
}

// SyncSubscriber reconciles one subscriber's calendar by ID.
func (h *Handler) SyncSubscriber(w http.ResponseWriter, r *http.Request) {
	id, ok := h.subscriberID(w, r)
	if !ok {
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

	report, err := h.runner.SyncSubscriber(r.Context(), *sub)
	if err != nil {
		httperrors.LogError(r, "subscriber sync", err)
	}
	if report == nil {
		httperrors.InternalError(w, r, err, "subscriber sync")
		return
	}
	h.writeJSON(w, r, reportStatus(err), report)
}

// DeactivateSubscriber retires a subscriber. The feed stops serving,
// scheduled runs skip them and a best-effort sync clears their mirrored
// calendar right away.
func (h *Handler) DeactivateSubscriber(w http.ResponseWriter, r *http.Request) {
	id, ok := h.subscriberID(w, r)
	if !ok {
		return
	}
	if err := h.store.Subscribers.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		httperrors.InternalError(w, r, err, "deactivate subscriber")
		return
	}
	h.cleanupDeactivated(r, id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) subscriberID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid subscriber id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
