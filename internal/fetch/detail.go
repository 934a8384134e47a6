package fetch

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"sport-activities/internal/activity"
	"sport-activities/internal/metrics"
)

// FetchDetail returns the upstream detail payload for one activity with
// fractional numbers rounded to two decimals. Detail payloads are
// informational: when upstream has nothing the result is a stub carrying
// only the id. Only transport and session failures are returned, as
// *FetchError.
func (w *Walker) FetchDetail(ctx context.Context, id string) (map[string]any, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidActivityID
	}

	h, err := w.provider.Acquire(ctx)
	if err != nil {
		metrics.FetchFailuresTotal.WithLabelValues(OpDetail).Inc()
		return nil, &FetchError{Op: OpDetail, ActivityID: id, Err: err}
	}
	defer w.provider.Release(h)

	raw, err := h.ActivityDetails(ctx, id)
	if err != nil {
		metrics.FetchFailuresTotal.WithLabelValues(OpDetail).Inc()
		w.logger.Error("activity details failed", "activity_id", id, "error", err)
		return nil, &FetchError{Op: OpDetail, ActivityID: id, Err: err}
	}
	if len(raw) == 0 {
		w.logger.Debug("activity details empty", "activity_id", id)
		return map[string]any{"activityId": id}, nil
	}
	return roundTree(raw).(map[string]any), nil
}

// roundTree copies v, rounding every fractional number to two decimals.
// Integers keep their decoded type.
func roundTree(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = roundTree(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = roundTree(item)
		}
		return out
	case json.Number:
		if _, err := val.Int64(); err == nil {
			return val
		}
		f, err := val.Float64()
		if err != nil || math.IsInf(f, 0) {
			return val
		}
		return activity.Round2(f)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) || val == math.Trunc(val) {
			return val
		}
		return activity.Round2(val)
	case float32:
		return roundTree(float64(val))
	default:
		return v
	}
}
