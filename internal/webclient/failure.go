package webclient

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks against a *Failure.
var (
	ErrHTTPStatus     = errors.New("http error status")
	ErrTransport      = errors.New("transport failure")
	ErrRateLimited    = errors.New("rate limit retries exhausted")
	ErrCircuitOpen    = errors.New("circuit breaker open")
	ErrCanceled       = errors.New("request canceled")
	ErrInvalidRequest = errors.New("invalid request")
)

// FailureKind says why Engine.Request gave up.
type FailureKind int

const (
	// KindHTTPStatus is a status >= 400 other than 429.
	KindHTTPStatus FailureKind = iota + 1
	// KindTransport is a failure below HTTP: DNS, connect, TLS, timeout, body read.
	KindTransport
	// KindAttemptsExhausted is a 429 on the last attempt allowed by MaxAttempts.
	KindAttemptsExhausted
	KindCircuitOpen
	KindCanceled
	KindInvalidRequest
)

func (k FailureKind) String() string {
	switch k {
	case KindHTTPStatus:
		return "http_status"
	case KindTransport:
		return "transport"
	case KindAttemptsExhausted:
		return "attempts_exhausted"
	case KindCircuitOpen:
		return "circuit_open"
	case KindCanceled:
		return "canceled"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// Failure is the non-success outcome of Engine.Request.
type Failure struct {
	Kind       FailureKind
	Method     string
	URL        string
	StatusCode int
	Reason     string
	Attempts   int
	Err        error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case KindHTTPStatus, KindAttemptsExhausted:
		return fmt.Sprintf("%s %s: %s: %d %s (attempts: %d)", f.Method, f.URL, f.Kind, f.StatusCode, f.Reason, f.Attempts)
	default:
		if f.Err != nil {
			return fmt.Sprintf("%s %s: %s: %v", f.Method, f.URL, f.Kind, f.Err)
		}
		return fmt.Sprintf("%s %s: %s", f.Method, f.URL, f.Kind)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Is implements errors.Is for sentinel error matching.
func (f *Failure) Is(target error) bool {
	switch f.Kind {
	case KindHTTPStatus:
		return target == ErrHTTPStatus
	case KindTransport:
		return target == ErrTransport
	case KindAttemptsExhausted:
		return target == ErrRateLimited
	case KindCircuitOpen:
		return target == ErrCircuitOpen
	case KindCanceled:
		return target == ErrCanceled
	case KindInvalidRequest:
		return target == ErrInvalidRequest
	}
	return false
}

// AsFailure unwraps err into a *Failure.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
