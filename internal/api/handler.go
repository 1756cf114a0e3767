// Package api serves the JSON administration and subscriber endpoints plus
// the public ICS feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/campustools/gridcal/internal/config"
	httperrors "github.com/campustools/gridcal/internal/http/errors"
	"github.com/campustools/gridcal/internal/store"
)

// Runner triggers pipeline work on demand. *run.Service implements it.
type Runner interface {
	Ingest(ctx context.Context) (*store.SyncReport, error)
	SyncAll(ctx context.Context) ([]store.SyncReport, error)
	SyncSubscriber(ctx context.Context, sub store.Subscriber) (*store.SyncReport, error)
}

// Handler carries the dependencies shared by all API endpoints.
type Handler struct {
	cfg      *config.Config
	store    *store.Store
	runner   Runner
	zone     *time.Location
	validate *validator.Validate
}

// NewHandler creates the API handler. The zone is the timetable timezone and
// drives feed rendering.
func NewHandler(cfg *config.Config, st *store.Store, runner Runner, zone *time.Location) *Handler {
	if zone == nil {
		zone = time.UTC
	}
	return &Handler{
		cfg:      cfg,
		store:    st,
		runner:   runner,
		zone:     zone,
		validate: validator.New(),
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		httperrors.LogError(r, "encode response", err)
	}
}

// decodeJSON reads and validates a request body. It writes the error
// response itself and reports whether the handler should proceed.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httperrors.BadRequestError(w, r, err, "invalid request payload")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httperrors.BadRequestError(w, r, err, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request payload"
	}
	field := strings.ToLower(verrs[0].Field())
	switch verrs[0].Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "email is not valid"
	case "max":
		return fmt.Sprintf("%s is too long", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// reportStatus maps a sync run outcome to a response code. The report body
// is returned either way so callers see the partial counts.
func reportStatus(err error) int {
	if err != nil {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

// cleanupDeactivated clears a freshly deactivated subscriber's mirrored
// calendar. The deactivation already succeeded, so failures here are logged
// and left for the next scheduled sync to retry.
func (h *Handler) cleanupDeactivated(r *http.Request, id uuid.UUID) {
	sub, err := h.store.Subscribers.GetByID(r.Context(), id)
	if err != nil {
		httperrors.LogError(r, "reload deactivated subscriber", err)
		return
	}
	if sub.CalendarID == "" {
		return
	}
	if _, err := h.runner.SyncSubscriber(r.Context(), *sub); err != nil {
		httperrors.LogError(r, "clear deactivated subscriber calendar", err)
	}
}

// unknownCourse returns the first requested code missing from the catalog.
func (h *Handler) unknownCourse(ctx context.Context, codes []string) (string, error) {
	if len(codes) == 0 {
		return "", nil
	}
	catalog, err := h.store.Courses.List(ctx)
	if err != nil {
		return "", err
	}
	known := make(map[string]bool, len(catalog))
	for _, c := range catalog {
		known[c.Code] = true
	}
	for _, code := range codes {
		if !known[code] {
			return code, nil
		}
	}
	return "", nil
}

// normalizeCourses trims whitespace and drops empties and duplicates while
// keeping the caller's order.
func normalizeCourses(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}
