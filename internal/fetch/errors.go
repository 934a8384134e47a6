package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange reports an unparseable date or a start after the end.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrInvalidPageSize reports page size or page limit values out of bounds.
	ErrInvalidPageSize = errors.New("invalid page size")
	// ErrInvalidActivityID reports an empty activity id.
	ErrInvalidActivityID = errors.New("invalid activity id")
	// ErrFetchFailed matches every *FetchError.
	ErrFetchFailed = errors.New("activity fetch failed")
)

// Operations reported by FetchError
const (
	OpAcquire = "acquire"
	OpList    = "list"
	OpDetail  = "detail"
)

// FetchError is returned when upstream could not be reached, refused the
// session or failed mid-walk. No partial results accompany it.
type FetchError struct {
	Op         string
	Page       int
	ActivityID string
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Op {
	case OpDetail:
		return fmt.Sprintf("fetch activity %s details: %v", e.ActivityID, e.Err)
	case OpAcquire:
		return fmt.Sprintf("acquire session: %v", e.Err)
	default:
		return fmt.Sprintf("fetch page %d: %v", e.Page, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }
