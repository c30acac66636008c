package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// HTTPError is returned for non-2xx responses from the completion API.
// The error text deliberately starts with "<status> <body>" so callers can
// match on client-error signatures like `400 {`.
type HTTPError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Body)
}

// IsAuthError reports whether err is a credential failure (invalid or
// expired API key). Such errors are terminal: no amount of retrying helps.
func IsAuthError(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status == http.StatusUnauthorized || he.Status == http.StatusForbidden
	}
	return false
}

// ParseRetryAfter converts a Retry-After header value to a duration.
// Returns 0 if the header is absent or unparseable.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
