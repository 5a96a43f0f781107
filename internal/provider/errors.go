package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind classifies a provider failure for retry decisions.
type Kind int

const (
	// KindPermanent failures are not worth retrying.
	KindPermanent Kind = iota
	// KindTransient failures (rate limits, 5xx, timeouts) are retryable.
	KindTransient
)

// Error is the error type every provider variant returns on failure.
type Error struct {
	Kind     Kind
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s provider: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s provider: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status to a retry kind.
func classifyStatus(status int) Kind {
	if status == http.StatusTooManyRequests || status >= 500 {
		return KindTransient
	}
	return KindPermanent
}

// transientMarkers is the compatibility baseline: error text containing
// any of these is treated as retryable even when the error carries no
// structured kind.
var transientMarkers = []string{
	"429",
	"quota",
	"rate limit",
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"temporarily",
}

// IsTransient reports whether err should be retried. Structured provider
// errors carry their kind; anything else falls back to scanning the error
// text for the documented markers.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind == KindTransient
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// wrapErr converts a transport or API error into a *Error with the right
// kind. status may be 0 when there was no HTTP response.
func wrapErr(name string, status int, err error) *Error {
	kind := KindPermanent
	if status > 0 {
		kind = classifyStatus(status)
	} else if IsTransient(err) {
		kind = KindTransient
	}
	return &Error{
		Kind:     kind,
		Provider: name,
		Status:   status,
		Message:  err.Error(),
		Err:      err,
	}
}
