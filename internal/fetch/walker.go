// Package fetch walks the paged Garmin activity listing and returns the
// complete, deduplicated set of activities inside a date range.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sport-activities/internal/activity"
	"sport-activities/internal/metrics"
	"sport-activities/internal/session"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Query selects activities by inclusive UTC calendar days.
type Query struct {
	Start time.Time
	End   time.Time
	// Types keeps only these type keys. Empty keeps everything.
	Types []string
	// PageSize of 0 uses DefaultPageSize.
	PageSize int
	// MaxPages of 0 walks until the listing is exhausted.
	MaxPages int
	// NewestFirst allows the walk to stop early once a full page lies
	// entirely before Start. It is ignored for the rest of a walk as soon
	// as the listing is seen out of order.
	NewestFirst bool
}

// normalize validates q and fills defaults.
func (q Query) normalize() (Query, error) {
	if q.Start.IsZero() || q.End.IsZero() {
		return q, fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}
	q.Start, q.End = day(q.Start), day(q.End)
	if q.Start.After(q.End) {
		return q, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, q.Start.Format(dateLayout), q.End.Format(dateLayout))
	}

	switch {
	case q.PageSize == 0:
		q.PageSize = DefaultPageSize
	case q.PageSize < 0 || q.PageSize > MaxPageSize:
		return q, fmt.Errorf("%w: page size %d not in 1..%d", ErrInvalidPageSize, q.PageSize, MaxPageSize)
	}
	if q.MaxPages < 0 {
		return q, fmt.Errorf("%w: max pages %d is negative", ErrInvalidPageSize, q.MaxPages)
	}
	q.Types = activity.ParseTypes(q.Types...)
	return q, nil
}

// window returns the half-open instant range [from, to) covered by q.
func (q Query) window() (time.Time, time.Time) {
	return q.Start, q.End.AddDate(0, 0, 1)
}

// MalformedRecord describes a listed record that could not be placed in
// the result.
type MalformedRecord struct {
	Page       int         `json:"page"`
	Index      int         `json:"index"`
	ActivityID activity.ID `json:"activity_id,omitempty"`
	Reason     string      `json:"reason"`
}

// Result is the outcome of a complete walk.
type Result struct {
	Activities []activity.Summary
	// Skipped counts records dropped for range, type or malformation.
	Skipped    int
	Malformed  []MalformedRecord
	Pages      int
	Duplicates int
}

// Walker pages through the remote listing.
type Walker struct {
	provider         session.Provider
	logger           *slog.Logger
	remoteDateFilter bool
}

// Option configures a Walker
type Option func(*Walker)

// WithRemoteDateFilter passes the query range to upstream with each page
// request. Records are re-checked locally either way.
func WithRemoteDateFilter(enabled bool) Option {
	return func(w *Walker) { w.remoteDateFilter = enabled }
}

func NewWalker(provider session.Provider, logger *slog.Logger, opts ...Option) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Walker{provider: provider, logger: logger}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// FetchRange returns every activity whose start falls inside the query's
// days, in upstream order, each id at most once. On any upstream failure it
// returns a *FetchError and no activities.
func (w *Walker) FetchRange(ctx context.Context, q Query) (*Result, error) {
	q, err := q.normalize()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := w.walk(ctx, q)
	if err != nil {
		metrics.WalkDuration.WithLabelValues(metrics.ResultFailure).Observe(time.Since(start).Seconds())
		op := OpList
		var fe *FetchError
		if errors.As(err, &fe) {
			op = fe.Op
		}
		metrics.FetchFailuresTotal.WithLabelValues(op).Inc()
		w.logger.Error("activity walk failed", "start", q.Start.Format(dateLayout), "end", q.End.Format(dateLayout), "error", err)
		return nil, err
	}
	metrics.WalkDuration.WithLabelValues(metrics.ResultSuccess).Observe(time.Since(start).Seconds())
	metrics.WalkRecordsTotal.Add(float64(len(res.Activities)))

	w.logger.Info("activity walk complete",
		"start", q.Start.Format(dateLayout),
		"end", q.End.Format(dateLayout),
		"pages", res.Pages,
		"count", len(res.Activities),
		"skipped", res.Skipped,
		"malformed", len(res.Malformed),
		"duplicates", res.Duplicates,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (w *Walker) walk(ctx context.Context, q Query) (*Result, error) {
	h, err := w.provider.Acquire(ctx)
	if err != nil {
		return nil, &FetchError{Op: OpAcquire, Err: err}
	}
	defer w.provider.Release(h)

	from, to := q.window()
	wanted := make(map[string]bool, len(q.Types))
	for _, t := range q.Types {
		wanted[t] = true
	}

	var (
		res      = &Result{}
		seen     = make(map[activity.ID]bool)
		ordered  = q.NewestFirst
		previous time.Time
	)

	for page := 0; q.MaxPages == 0 || page < q.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{Op: OpList, Page: page, Err: err}
		}

		req := session.PageRequest{Offset: page * q.PageSize, Limit: q.PageSize}
		if w.remoteDateFilter {
			req.Start, req.End = q.Start, q.End
		}
		records, err := h.ListActivities(ctx, req)
		if err != nil {
			return nil, &FetchError{Op: OpList, Page: page, Err: err}
		}
		res.Pages++
		metrics.WalkPagesTotal.Inc()
		w.logger.Debug("listing page fetched", "page", page, "offset", req.Offset, "records", len(records))

		if len(records) == 0 {
			break
		}

		pageBeforeStart, pageDated := true, false
		for i, raw := range records {
			s := activity.Classify(raw)
			begin, ok := s.Begin()
			if ok {
				if ordered && !previous.IsZero() && begin.After(previous) {
					ordered = false
					w.logger.Warn("listing not newest-first, early stop disabled", "page", page, "index", i)
				}
				previous = begin
				pageDated = true
				if !begin.Before(from) {
					pageBeforeStart = false
				}
			}

			switch {
			case s.ActivityID == "":
				res.skipMalformed(page, i, s.ActivityID, "missing activity id")
				continue
			case !ok:
				res.skipMalformed(page, i, s.ActivityID, "missing begin timestamp")
				continue
			}

			if seen[s.ActivityID] {
				res.Duplicates++
				metrics.WalkDuplicatesTotal.Inc()
				continue
			}
			seen[s.ActivityID] = true

			if begin.Before(from) || !begin.Before(to) {
				res.skip(metrics.SkipOutOfRange)
				continue
			}
			if len(wanted) > 0 && !wanted[s.TypeKey] {
				res.skip(metrics.SkipType)
				continue
			}
			res.Activities = append(res.Activities, s)
		}

		if ordered && pageDated && pageBeforeStart && len(records) >= q.PageSize {
			w.logger.Debug("listing passed range start, stopping", "page", page)
			break
		}
	}

	return res, nil
}

func (r *Result) skip(reason string) {
	r.Skipped++
	metrics.WalkSkippedTotal.WithLabelValues(reason).Inc()
}

func (r *Result) skipMalformed(page, index int, id activity.ID, reason string) {
	r.skip(metrics.SkipMalformed)
	r.Malformed = append(r.Malformed, MalformedRecord{Page: page, Index: index, ActivityID: id, Reason: reason})
}
