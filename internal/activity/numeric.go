package activity

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxSafeInteger bounds values that survive a float64 round trip exactly.
const maxSafeInteger = 1 << 53

// Round2 rounds half away from zero to two decimal places.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// ToFloat coerces a decoded JSON value to float64. Booleans, NaN, infinities
// and strings that do not parse as numbers are reported as absent.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// firstFloat returns the first alias holding a numeric value, rounded.
func firstFloat(raw Raw, keys ...string) *float64 {
	return firstFloatWhere(raw, anyValue, keys...)
}

// firstMeasure is firstFloat for quantities that cannot be negative, such
// as distances, durations and energy. Negative values count as absent.
func firstMeasure(raw Raw, keys ...string) *float64 {
	return firstFloatWhere(raw, nonNegative, keys...)
}

func firstFloatWhere(raw Raw, accept func(float64) bool, keys ...string) *float64 {
	for _, key := range keys {
		f, ok := ToFloat(raw[key])
		if !ok || !accept(f) {
			continue
		}
		rounded := Round2(f)
		return &rounded
	}
	return nil
}

// firstCount is firstMeasure for integer-valued fields.
func firstCount(raw Raw, keys ...string) *int {
	for _, key := range keys {
		f, ok := ToFloat(raw[key])
		if !ok || f < 0 || f > maxSafeInteger {
			continue
		}
		n := int(math.Round(f))
		return &n
	}
	return nil
}

func anyValue(float64) bool { return true }

func nonNegative(f float64) bool { return f >= 0 }

func firstString(raw Raw, keys ...string) *string {
	for _, key := range keys {
		if s, ok := raw[key].(string); ok {
			return &s
		}
	}
	return nil
}

func firstBool(raw Raw, keys ...string) *bool {
	for _, key := range keys {
		if b, ok := raw[key].(bool); ok {
			return &b
		}
	}
	return nil
}

// formatID renders scalar id values. Fractional numbers are rejected.
func formatID(v any) (ID, bool) {
	switch id := v.(type) {
	case string:
		s := strings.TrimSpace(id)
		return ID(s), s != ""
	case json.Number:
		if n, err := id.Int64(); err == nil {
			return ID(strconv.FormatInt(n, 10)), true
		}
	}
	f, ok := ToFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > maxSafeInteger {
		return "", false
	}
	if _, isString := v.(string); isString {
		return "", false
	}
	return ID(strconv.FormatInt(int64(f), 10)), true
}

var wallClockLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses the timestamp formats Garmin uses. Values without
// a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if len(s) > 19 {
		s = s[:19]
	}
	for _, layout := range wallClockLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// epochMillis converts an epoch-milliseconds value to a UTC instant.
func epochMillis(v any) (time.Time, bool) {
	f, ok := ToFloat(v)
	if !ok || math.Abs(f) > maxSafeInteger {
		return time.Time{}, false
	}
	if _, isString := v.(string); isString {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(f)).UTC(), true
}
