package garmin

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is a non-2xx response from Garmin Connect
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("garmin returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("garmin returned status %d: %s", e.StatusCode, e.Body)
}

func statusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from Garmin
func IsNotFound(err error) bool { return statusOf(err) == http.StatusNotFound }

// IsUnauthorized reports whether err is a 401 or 403 from Garmin
func IsUnauthorized(err error) bool {
	code := statusOf(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsTooManyRequests reports whether err is a 429 from Garmin
func IsTooManyRequests(err error) bool { return statusOf(err) == http.StatusTooManyRequests }
