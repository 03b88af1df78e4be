// scraper/errors.go
package scraper

import (
	"context"
	"errors"
	"net"
)

// ErrTrailNotFound marks a permanently invalid trail ID: the upstream
// responded with a redirect or not-found status for the detail page. Callers
// use it to decide between blacklisting the ID and retrying later; transient
// failures are never wrapped in it.
var ErrTrailNotFound = errors.New("trail not found upstream")

// IsNotFound reports whether err carries the permanent not-found signal.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTrailNotFound)
}

// errorTypeLabel buckets an error for the metrics counter.
func errorTypeLabel(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTrailNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection"
	}
	return "other"
}
