package httpclient

import (
	"context"
	"errors"
	"net/http"
)

// Reserved statuses for failures that never produced an HTTP response.
const (
	StatusNetworkError = 0
	StatusTimeout      = http.StatusRequestTimeout
)

const (
	msgTimeout      = "Request timeout"
	msgNetwork      = "Network error occurred"
	msgStatusFailed = "An error occurred"
)

// Error is the normalised failure of a call.
type Error struct {
	Message    string `json:"message"`
	Status     int    `json:"status"`
	StatusText string `json:"statusText,omitempty"`
	// Data is the decoded error body, if any.
	Data  any   `json:"data,omitempty"`
	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// Unwrap returns the transport error behind a status 0 or 408 failure.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Kind groups failures the way callers usually branch on them.
type Kind int

const (
	KindNetwork Kind = iota
	KindTimeout
	KindClient
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindClient:
		return "client"
	default:
		return "server"
	}
}

func (e *Error) Kind() Kind {
	switch {
	case e.Status == StatusNetworkError:
		return KindNetwork
	case e.Status == StatusTimeout:
		return KindTimeout
	case e.Status >= 400 && e.Status < 500:
		return KindClient
	default:
		return KindServer
	}
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func IsTimeout(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind() == KindTimeout
}

func IsNetwork(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind() == KindNetwork
}

// IsRetryable reports whether repeating the call could succeed. Client errors
// other than 429 are final; errors of unknown origin are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	apiErr, ok := AsError(err)
	if !ok {
		return true
	}
	switch apiErr.Kind() {
	case KindClient:
		return apiErr.Status == http.StatusTooManyRequests
	case KindNetwork:
		return !errors.Is(apiErr, context.Canceled)
	default:
		return true
	}
}

// isTimeout reports whether err was caused by the request deadline.
func isTimeout(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func timeoutError(cause error) *Error {
	return &Error{Message: msgTimeout, Status: StatusTimeout, cause: cause}
}

func networkError(cause error) *Error {
	msg := msgNetwork
	if cause != nil && cause.Error() != "" {
		msg = cause.Error()
	}
	return &Error{Message: msg, Status: StatusNetworkError, cause: cause}
}

// transportError classifies an error returned by http.Client.Do.
func transportError(ctx context.Context, err error) *Error {
	if isTimeout(ctx, err) {
		return timeoutError(err)
	}
	return networkError(err)
}

// statusError converts a non-2xx response, keeping its decoded body.
func statusError(ctx context.Context, r *http.Response) *Error {
	data, err := decodeBody(r)
	if err != nil {
		var readErr *bodyReadError
		if errors.As(err, &readErr) {
			return transportError(ctx, readErr.err)
		}
		data = nil
	}
	text := statusText(r)
	msg := text
	if msg == "" {
		msg = msgStatusFailed
	}
	return &Error{
		Message:    msg,
		Status:     r.StatusCode,
		StatusText: text,
		Data:       data,
	}
}
