package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/campustools/gridcal/internal/auth"
	httperrors "github.com/campustools/gridcal/internal/http/errors"
	"github.com/campustools/gridcal/internal/store"
)

type createSubscriberRequest struct {
	Email   string   `json:"email" validate:"required,email,max=254"`
	Name    string   `json:"name" validate:"required,max=128"`
	Courses []string `json:"courses" validate:"dive,required,max=64"`
}

type subscriberCreatedResponse struct {
	Subscriber *store.Subscriber `json:"subscriber"`
	FeedToken  string            `json:"feedToken"`
	FeedURL    string            `json:"feedUrl"`
}

type updateCoursesRequest struct {
	Courses []string `json:"courses" validate:"dive,required,max=64"`
}

type feedTokenResponse struct {
	FeedToken string `json:"feedToken"`
	FeedURL   string `json:"feedUrl"`
}

// CreateSubscriber registers a new subscriber and returns the feed token.
// The token is shown exactly once; only its hash is stored.
func (h *Handler) CreateSubscriber(w http.ResponseWriter, r *http.Request) {
	var req createSubscriberRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	req.Courses = normalizeCourses(req.Courses)

	unknown, err := h.unknownCourse(r.Context(), req.Courses)
	if err != nil {
		httperrors.InternalError(w, r, err, "check course catalog")
		return
	}
	if unknown != "" {
		httperrors.BadRequestError(w, r, fmt.Errorf("unknown course %q", unknown), "unknown course code: "+unknown)
		return
	}

	existing, err := h.store.Subscribers.GetByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		httperrors.InternalError(w, r, err, "check existing subscriber")
		return
	}
	if existing != nil {
		http.Error(w, "email already registered", http.StatusConflict)
		return
	}

	token, hash, err := auth.NewFeedToken()
	if err != nil {
		httperrors.InternalError(w, r, err, "generate feed token")
		return
	}

	sub, err := h.store.Subscribers.Create(r.Context(), store.Subscriber{
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		Name:          strings.TrimSpace(req.Name),
		Courses:       req.Courses,
		FeedTokenHash: hash,
		Active:        true,
	})
	if err != nil {
		httperrors.InternalError(w, r, err, "create subscriber")
		return
	}

	httperrors.LogInfo(r, "subscriber registered: "+sub.Email)
	h.writeJSON(w, r, http.StatusCreated, subscriberCreatedResponse{
		Subscriber: sub,
		FeedToken:  token,
		FeedURL:    h.feedURL(sub.ID, token),
	})
}

// Me returns the authenticated subscriber.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sub, ok := auth.SubscriberFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.writeJSON(w, r, http.StatusOK, sub)
}

// UpdateMyCourses replaces the authenticated subscriber's course selection.
// An empty list is valid and clears the mirrored calendar on the next sync.
func (h *Handler) UpdateMyCourses(w http.ResponseWriter, r *http.Request) {
	sub, ok := auth.SubscriberFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req updateCoursesRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	req.Courses = normalizeCourses(req.Courses)

	unknown, err := h.unknownCourse(r.Context(), req.Courses)
	if err != nil {
		httperrors.InternalError(w, r, err, "check course catalog")
		return
	}
	if unknown != "" {
		httperrors.BadRequestError(w, r, fmt.Errorf("unknown course %q", unknown), "unknown course code: "+unknown)
		return
	}

	if err := h.store.Subscribers.UpdateCourses(r.Context(), sub.ID, req.Courses); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		httperrors.InternalError(w, r, err, "update courses")
		return
	}

	updated, err := h.store.Subscribers.GetByID(r.Context(), sub.ID)
	if err != nil {
		httperrors.InternalError(w, r, err, "reload subscriber")
		return
	}
	h.writeJSON(w, r, http.StatusOK, updated)
}

// RotateMyFeedToken issues a fresh feed token for the authenticated
// subscriber, invalidating the previous one.
func (h *Handler) RotateMyFeedToken(w http.ResponseWriter, r *http.Request) {
	sub, ok := auth.SubscriberFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	token, hash, err := auth.NewFeedToken()
	if err != nil {
		httperrors.InternalError(w, r, err, "generate feed token")
		return
	}
	if err := h.store.Subscribers.SetFeedTokenHash(r.Context(), sub.ID, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		httperrors.InternalError(w, r, err, "store feed token")
		return
	}

	h.writeJSON(w, r, http.StatusOK, feedTokenResponse{
		FeedToken: token,
		FeedURL:   h.feedURL(sub.ID, token),
	})
}

// DeactivateMe retires the authenticated subscriber. The feed stops
// serving and a best-effort sync clears the mirrored calendar right away.
func (h *Handler) DeactivateMe(w http.ResponseWriter, r *http.Request) {
	sub, ok := auth.SubscriberFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.store.Subscribers.Deactivate(r.Context(), sub.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		httperrors.InternalError(w, r, err, "deactivate subscriber")
		return
	}

	httperrors.LogInfo(r, "subscriber deactivated: "+sub.Email)
	h.cleanupDeactivated(r, sub.ID)
	w.WriteHeader(http.StatusNoContent)
}

// SyncMe reconciles the authenticated subscriber's calendar now.
func (h *Handler) SyncMe(w http.ResponseWriter, r *http.Request) {
	sub, ok := auth.SubscriberFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
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

func (h *Handler) feedURL(id uuid.UUID, token string) string {
	base := strings.TrimRight(h.cfg.BaseURL, "/")
	return fmt.Sprintf("%s/feeds/%s.ics?token=%s", base, id, token)
}
