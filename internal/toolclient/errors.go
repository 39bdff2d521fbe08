package toolclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies a failed tool call for retry decisions and reporting.
type ErrorKind string

const (
	// KindTransport is a connection-level failure reaching the service.
	KindTransport ErrorKind = "transport"

	// KindTimeout means the call exceeded its deadline.
	KindTimeout ErrorKind = "timeout"

	// KindRemoteError means the service answered but reported a server-side
	// failure.
	KindRemoteError ErrorKind = "remote_error"

	// KindBadRequest means the service rejected the arguments.
	KindBadRequest ErrorKind = "bad_request"

	// KindUnknownAction means the (tool, action) pair resolves to nothing.
	KindUnknownAction ErrorKind = "unknown_action"

	// KindPermissionDenied means a sensitive action was attempted without
	// the confirmation it requires.
	KindPermissionDenied ErrorKind = "permission_denied"

	// KindMissingPrevious means a step referenced the previous step's output
	// but no predecessor had succeeded.
	KindMissingPrevious ErrorKind = "missing_previous"

	// KindEmbeddingUnavailable means the embedding provider could not serve
	// the request, so dependent writes were not performed.
	KindEmbeddingUnavailable ErrorKind = "embedding_unavailable"

	// KindParseError means a response or plan could not be decoded.
	KindParseError ErrorKind = "parse_error"

	// KindFatal is an unclassified internal failure.
	KindFatal ErrorKind = "fatal"
)

// Retryable reports whether retrying the call may succeed. Only transient
// failure kinds qualify; argument and permission failures never do.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTransport, KindTimeout, KindRemoteError:
		return true
	}
	return false
}

// Error is a structured tool call failure carrying its classification.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Tool and Action identify the call that failed, when known.
	Tool   string
	Action string

	// Message is the human-readable failure description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[tool:%s]", e.Kind))
	if e.Tool != "" {
		name := e.Tool
		if e.Action != "" {
			name += "." + e.Action
		}
		parts = append(parts, name)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, tool, action, message string) *Error {
	return &Error{Kind: kind, Tool: tool, Action: action, Message: message}
}

// WrapError classifies cause and wraps it with call identity.
func WrapError(tool, action string, cause error) *Error {
	e := &Error{Kind: Classify(cause), Tool: tool, Action: action, Cause: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

// Classify maps an arbitrary error onto the closest error kind. A wrapped
// *Error keeps its own kind; context deadlines and net timeouts become
// "timeout"; connection-level failures become "transport"; anything else is
// matched on message content, defaulting to "fatal".
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindTransport
	}

	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") {
		return KindTimeout
	}

	if strings.Contains(msg, "connection") ||
		strings.Contains(msg, "refused") ||
		strings.Contains(msg, "unreachable") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "broken pipe") {
		return KindTransport
	}

	if strings.Contains(msg, "embedding") {
		return KindEmbeddingUnavailable
	}

	if strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "required") ||
		strings.Contains(msg, "missing") {
		return KindBadRequest
	}

	return KindFatal
}
