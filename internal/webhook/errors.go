package webhook

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mattjoyce/grhooks/internal/origin"
)

var (
	errBodyTooLarge   = errors.New("payload too large")
	errInvalidPayload = errors.New("invalid JSON payload")
	errRateLimited    = errors.New("rate limit exceeded")
)

// eventNotAllowedError is returned when the event type is not in the
// definition's allow-list.
type eventNotAllowedError struct {
	EventType string
}

func (e *eventNotAllowedError) Error() string {
	return fmt.Sprintf("Event '%s' not allowed", e.EventType)
}

// routeNotFoundError is returned for a path with no webhook definition.
type routeNotFoundError struct {
	Path string
}

func (e *routeNotFoundError) Error() string {
	return fmt.Sprintf("Path %q not registered", e.Path)
}

// statusFor maps a pipeline error to the HTTP status and the message sent to
// the client. Authentication failures get fixed messages.
func statusFor(err error) (int, string) {
	var (
		notAllowed *eventNotAllowedError
		notFound   *routeNotFoundError
	)
	if header, ok := origin.IsMissingHeader(err); ok {
		return http.StatusBadRequest, "Missing required header: " + header
	}

	switch {
	case errors.Is(err, origin.ErrInvalidUserAgent):
		return http.StatusBadRequest, "Invalid user agent"
	case errors.Is(err, origin.ErrInvalidSignature):
		return http.StatusUnauthorized, "Invalid signature"
	case errors.As(err, &notAllowed):
		return http.StatusBadRequest, notAllowed.Error()
	case errors.Is(err, errInvalidPayload):
		return http.StatusBadRequest, "Invalid JSON payload"
	case errors.As(err, &notFound):
		return http.StatusNotFound, notFound.Error()
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "Payload too large"
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, "Rate limit exceeded"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// outcome is the metrics label for a pipeline result.
func outcome(err error) string {
	if err == nil {
		return "dispatched"
	}
	switch status, _ := statusFor(err); status {
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusInternalServerError:
		return "failed"
	default:
		return "rejected"
	}
}
