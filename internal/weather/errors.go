package weather

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failed fetch or location resolution.
type Kind string

const (
	KindPermissionDenied    Kind = "permission_denied"
	KindLocationUnavailable Kind = "location_unavailable"
	KindLocation            Kind = "location_error"
	KindNetwork             Kind = "network"
	KindService             Kind = "service"
	KindParse               Kind = "parse"
	KindUnknown             Kind = "unknown"
)

// Failure is the error half of every fetch and resolve outcome.
type Failure struct {
	Kind    Kind
	Message string

	// StatusCode is set for KindService failures caused by an HTTP status.
	StatusCode int
}

func (f *Failure) Error() string {
	return f.Message
}

// NewFailure builds a Failure of the given kind.
func NewFailure(kind Kind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NetworkFailure reports a transport problem.
func NetworkFailure(detail string) *Failure {
	return NewFailure(KindNetwork, "network error: %s", detail)
}

// ServiceFailure reports a non-2xx response.
func ServiceFailure(status int) *Failure {
	f := NewFailure(KindService, "weather service returned error: %d", status)
	f.StatusCode = status
	return f
}

// ParseFailure reports a malformed or incomplete payload.
func ParseFailure(detail string) *Failure {
	return NewFailure(KindParse, "failed to parse weather data: %s", detail)
}

// ErrEmptyResponse is the Network failure for a 2xx response without a body.
var ErrEmptyResponse = &Failure{Kind: KindNetwork, Message: "empty response"}

// KindOf returns the Kind of err, KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

// IsCancellation reports whether err is a context cancellation or deadline
// that must be propagated rather than rendered.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
