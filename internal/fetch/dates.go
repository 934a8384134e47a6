package fetch

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate reads a YYYY-MM-DD date or a date-time and returns UTC midnight
// of the calendar date it names.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(dateLayout, s, time.UTC); err == nil {
		return t, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse date %q", ErrInvalidRange, s)
}

// NewQuery builds a query from two date-likes: time.Time values or strings
// accepted by ParseDate.
func NewQuery(start, end any) (Query, error) {
	from, err := toDate(start)
	if err != nil {
		return Query{}, err
	}
	to, err := toDate(end)
	if err != nil {
		return Query{}, err
	}
	if from.After(to) {
		return Query{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, from.Format(dateLayout), to.Format(dateLayout))
	}
	return Query{Start: from, End: to}, nil
}

// MonthQuery covers every day of a YYYY-MM calendar month.
func MonthQuery(month string) (Query, error) {
	first, err := time.ParseInLocation(monthLayout, strings.TrimSpace(month), time.UTC)
	if err != nil {
		return Query{}, fmt.Errorf("%w: cannot parse month %q", ErrInvalidRange, month)
	}
	return Query{Start: first, End: first.AddDate(0, 1, -1)}, nil
}

func toDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return time.Time{}, fmt.Errorf("%w: missing date", ErrInvalidRange)
		}
		return day(d), nil
	case *time.Time:
		if d == nil {
			return time.Time{}, fmt.Errorf("%w: missing date", ErrInvalidRange)
		}
		return toDate(*d)
	case string:
		return ParseDate(d)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported date value %T", ErrInvalidRange, v)
	}
}

// day returns UTC midnight of the calendar date t shows in its own
// location, so 2025-06-01 00:00 CEST stays 2025-06-01.
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
