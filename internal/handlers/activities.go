package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sport-activities/internal/activity"
	"sport-activities/internal/config"
	"sport-activities/internal/fetch"
	"sport-activities/internal/metrics"
	"sport-activities/internal/middleware"
	"sport-activities/internal/report"
)

// Fetcher is the activity source behind the API
type Fetcher interface {
	FetchRange(ctx context.Context, q fetch.Query) (*fetch.Result, error)
	FetchDetail(ctx context.Context, id string) (map[string]any, error)
}

// HealthChecker reports whether the session store is reachable
type HealthChecker interface {
	Health() error
}

// ActivitiesHandler serves activity listings, details and reports
type ActivitiesHandler struct {
	fetcher Fetcher
	health  HealthChecker
	config  *config.Config
	logger  *slog.Logger
}

// NewActivitiesHandler creates a new activities handler
func NewActivitiesHandler(fetcher Fetcher, health HealthChecker, cfg *config.Config, logger *slog.Logger) *ActivitiesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivitiesHandler{
		fetcher: fetcher,
		health:  health,
		config:  cfg,
		logger:  logger,
	}
}

// Routes mounts every endpoint on a chi router. All routes except /health
// require the internal API key.
func (h *ActivitiesHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	instrument := func(endpoint string, fn http.HandlerFunc) http.Handler {
		return middleware.Instrument(endpoint, h.logger)(fn)
	}

	r.Method(http.MethodGet, "/health", instrument(metrics.EndpointHealth, h.HandleHealth))

	r.Group(func(r chi.Router) {
		r.Use(h.requireAPIKey)
		r.Method(http.MethodGet, "/activities", instrument(metrics.EndpointActivities, h.HandleActivities))
		r.Method(http.MethodGet, "/activities/{id}", instrument(metrics.EndpointActivity, h.HandleActivity))
		r.Method(http.MethodGet, "/aggregate/day", instrument(metrics.EndpointAggregateDay, h.HandleAggregateDay))
		r.Method(http.MethodGet, "/aggregate/type", instrument(metrics.EndpointAggregateType, h.HandleAggregateType))
		r.Method(http.MethodGet, "/quality", instrument(metrics.EndpointQuality, h.HandleQuality))
	})

	return r
}

func (h *ActivitiesHandler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if h.config.InternalAPIKey == "" || authHeader != "Bearer "+h.config.InternalAPIKey {
			h.logger.Warn("Unauthorized request", "path", r.URL.Path, "has_auth", authHeader != "")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleActivities handles GET /activities
// Query parameters:
//   - start, end: YYYY-MM-DD, inclusive (required)
//   - type: activity type key, repeatable or comma separated
//   - include_raw: include the upstream payload of each activity
//   - page_size, max_pages: override the configured walk limits
//   - newest_first: allow the walk to stop once it is past start
func (h *ActivitiesHandler) HandleActivities(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	includeRaw, err := parseBool(r, "include_raw")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.fetcher.FetchRange(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var activities any
	if includeRaw {
		activities = res.Activities
	} else {
		public := make([]activity.Fields, len(res.Activities))
		for i, s := range res.Activities {
			public[i] = s.Public()
		}
		activities = public
	}
	if res.Activities == nil {
		activities = []activity.Fields{}
	}

	malformed := res.Malformed
	if malformed == nil {
		malformed = []fetch.MalformedRecord{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"start":      q.Start.Format("2006-01-02"),
		"end":        q.End.Format("2006-01-02"),
		"count":      len(res.Activities),
		"skipped":    res.Skipped,
		"pages":      res.Pages,
		"duplicates": res.Duplicates,
		"malformed":  malformed,
		"activities": activities,
	})
}

// HandleActivity handles GET /activities/{id}
func (h *ActivitiesHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	details, err := h.fetcher.FetchDetail(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"activity_id": id,
		"details":     details,
	})
}

// HandleAggregateDay handles GET /aggregate/day
func (h *ActivitiesHandler) HandleAggregateDay(w http.ResponseWriter, r *http.Request) {
	res, ok := h.fetchForReport(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, report.ByDay(res.Activities))
}

// HandleAggregateType handles GET /aggregate/type
func (h *ActivitiesHandler) HandleAggregateType(w http.ResponseWriter, r *http.Request) {
	res, ok := h.fetchForReport(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, report.ByType(res.Activities))
}

// HandleQuality handles GET /quality
func (h *ActivitiesHandler) HandleQuality(w http.ResponseWriter, r *http.Request) {
	res, ok := h.fetchForReport(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, report.Quality(res.Activities))
}

// HandleHealth handles GET /health
func (h *ActivitiesHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Health(); err != nil {
			h.logger.Error("Health check failed", "error", err)
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ActivitiesHandler) fetchForReport(w http.ResponseWriter, r *http.Request) (*fetch.Result, bool) {
	q, err := h.parseQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	res, err := h.fetcher.FetchRange(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return res, true
}

// errBadParam marks query parameters that could not be parsed
var errBadParam = errors.New("invalid parameter")

func (h *ActivitiesHandler) parseQuery(r *http.Request) (fetch.Query, error) {
	query := r.URL.Query()

	if query.Get("start") == "" || query.Get("end") == "" {
		return fetch.Query{}, fmt.Errorf("%w: start and end are required", fetch.ErrInvalidRange)
	}
	q, err := fetch.NewQuery(query.Get("start"), query.Get("end"))
	if err != nil {
		return fetch.Query{}, err
	}
	q.Types = activity.ParseTypes(query["type"]...)

	q.PageSize = h.config.PageSize
	if v := query.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fetch.Query{}, fmt.Errorf("%w: page_size %q", fetch.ErrInvalidPageSize, v)
		}
		q.PageSize = n
	}

	q.MaxPages = h.config.MaxPages
	if v := query.Get("max_pages"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fetch.Query{}, fmt.Errorf("%w: max_pages %q", fetch.ErrInvalidPageSize, v)
		}
		q.MaxPages = n
	}

	if q.NewestFirst, err = parseBool(r, "newest_first"); err != nil {
		return fetch.Query{}, err
	}
	return q, nil
}

func parseBool(r *http.Request, name string) (bool, error) {
	query := r.URL.Query()
	if !query.Has(name) {
		return false, nil
	}
	v := query.Get(name)
	if v == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", errBadParam, name, v)
	}
	return b, nil
}

func (h *ActivitiesHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *fetch.FetchError
	switch {
	case errors.Is(err, fetch.ErrInvalidRange),
		errors.Is(err, fetch.ErrInvalidPageSize),
		errors.Is(err, fetch.ErrInvalidActivityID),
		errors.Is(err, errBadParam):
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	case errors.As(err, &fe):
		body := map[string]any{"error": err.Error(), "operation": fe.Op}
		if fe.Op == fetch.OpDetail {
			body["activity_id"] = fe.ActivityID
		} else {
			body["page"] = fe.Page
		}
		h.writeJSON(w, http.StatusBadGateway, body)
	default:
		h.logger.Error("Request failed", "path", r.URL.Path, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

func (h *ActivitiesHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
