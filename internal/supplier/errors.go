package supplier

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrAuthExpired marks a 401 from the supplier. It must surface to the job
// immediately so credential re-issuance can be triggered; retrying is
// pointless until a fresh token exists.
var ErrAuthExpired = errors.New("supplier token expired")

// StatusError is a non-2xx reply with its body preserved for the fetch log.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, truncate(e.Body, 200))
}

// IsRetryable classifies an error as transient: timeouts, connection
// failures, 429 and 5xx. Everything else (other 4xx, malformed responses,
// auth expiry) is fatal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthExpired) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
