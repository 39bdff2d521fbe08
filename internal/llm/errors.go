package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/yaya56vv/cortex/internal/toolclient"
)

// Reason categorizes why a model call failed. Callers use it to decide
// whether a retry can help and how the failure surfaces in tool results.
type Reason string

const (
	// ReasonTimeout marks a call that exceeded its deadline.
	ReasonTimeout Reason = "timeout"

	// ReasonRateLimit marks provider throttling (HTTP 429).
	ReasonRateLimit Reason = "rate_limit"

	// ReasonAuth marks rejected credentials (HTTP 401, 403).
	ReasonAuth Reason = "auth"

	// ReasonServer marks provider-side failures (HTTP 5xx).
	ReasonServer Reason = "server"

	// ReasonTransport marks connection-level failures before any response.
	ReasonTransport Reason = "transport"

	// ReasonInvalidRequest marks requests the provider rejected (HTTP 400).
	ReasonInvalidRequest Reason = "invalid_request"

	// ReasonUnknown marks everything else.
	ReasonUnknown Reason = "unknown"
)

// Retryable reports whether the same call may succeed on another attempt.
func (r Reason) Retryable() bool {
	switch r {
	case ReasonTimeout, ReasonRateLimit, ReasonServer, ReasonTransport:
		return true
	}
	return false
}

// ToolKind maps the reason onto the tool error taxonomy, so a model failure
// inside a tool step carries the same retry semantics as any other tool call.
func (r Reason) ToolKind() toolclient.ErrorKind {
	switch r {
	case ReasonTimeout:
		return toolclient.KindTimeout
	case ReasonTransport:
		return toolclient.KindTransport
	case ReasonRateLimit, ReasonServer, ReasonUnknown:
		return toolclient.KindRemoteError
	case ReasonAuth, ReasonInvalidRequest:
		return toolclient.KindBadRequest
	}
	return toolclient.KindRemoteError
}

// Error is a structured failure from a model provider.
type Error struct {
	// Provider is the provider name the call went through.
	Provider string

	// Model is the model that was requested.
	Model string

	// Reason categorizes the failure.
	Reason Reason

	// Status is the HTTP status code when one was received.
	Status int

	// Message is the provider's human-readable message.
	Message string

	// Cause is the underlying error.
	Cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Reason, e.Provider)
	if e.Model != "" {
		fmt.Fprintf(&b, " model=%s", e.Model)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " status=%d", e.Status)
	}
	switch {
	case e.Message != "":
		b.WriteString(" " + e.Message)
	case e.Cause != nil:
		b.WriteString(" " + e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// newError wraps a provider failure, classifying the reason from the cause.
func newError(provider, model string, cause error) *Error {
	e := &Error{Provider: provider, Model: model, Cause: cause, Reason: ReasonUnknown}
	if cause != nil {
		e.Message = cause.Error()
		e.Reason = Classify(cause)
	}
	return e
}

// withStatus records the HTTP status and reclassifies from it. The status is
// authoritative over message sniffing.
func (e *Error) withStatus(status int) *Error {
	e.Status = status
	if reason := classifyStatus(status); reason != ReasonUnknown {
		e.Reason = reason
	}
	return e
}

// AsError extracts a structured *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ReasonOf returns the failure reason of any error: the structured reason
// when present, a message classification otherwise.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonUnknown
	}
	if e, ok := AsError(err); ok {
		return e.Reason
	}
	return Classify(err)
}

// Classify infers a failure reason from an error's text. Providers that
// surface structured status codes classify those directly; this handles the
// rest, including SDK errors that only stringify.
func Classify(err error) Reason {
	if err == nil {
		return ReasonUnknown
	}
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "timeout", "deadline exceeded", "context deadline"):
		return ReasonTimeout
	case containsAny(msg, "rate limit", "rate_limit", "too many requests", "throttl", "429"):
		return ReasonRateLimit
	case containsAny(msg, "unauthorized", "invalid api key", "invalid_api_key", "authentication", "access denied", "401", "403"):
		return ReasonAuth
	case containsAny(msg, "connection refused", "connection reset", "no such host", "broken pipe", "eof"):
		return ReasonTransport
	case containsAny(msg, "internal server", "server error", "bad gateway", "service unavailable", "overloaded", "500", "502", "503", "504"):
		return ReasonServer
	case containsAny(msg, "invalid request", "invalid_request", "400"):
		return ReasonInvalidRequest
	}
	return ReasonUnknown
}

func classifyStatus(status int) Reason {
	switch {
	case status == http.StatusTooManyRequests:
		return ReasonRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ReasonAuth
	case status == http.StatusBadRequest || status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		return ReasonInvalidRequest
	case status == http.StatusRequestTimeout:
		return ReasonTimeout
	case status >= 500:
		return ReasonServer
	}
	return ReasonUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
