// Package toolclient defines the uniform contract between the executor and
// tool services: a Client per catalog tool, a Result shape that never panics
// or throws, and a static Registry resolving tool names to clients.
//
// Clients are stateless connectors. Transport failures, timeouts, and remote
// errors surface inside the Result as an error kind; a Call never returns a
// Go error to its caller.
package toolclient

import (
	"context"
	"encoding/json"
	"fmt"
)

// Result is the uniform outcome of one tool action call.
type Result struct {
	// OK is true when the action succeeded.
	OK bool `json:"ok"`

	// Action echoes the action that was invoked.
	Action string `json:"action"`

	// Data is the action's payload when OK.
	Data any `json:"data,omitempty"`

	// ErrorKind classifies the failure when not OK.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// ErrorMessage is the human-readable failure description.
	ErrorMessage string `json:"error_message,omitempty"`
}

// Health is the outcome of a client health probe.
type Health struct {
	// OK is true when the backing service is reachable and ready.
	OK bool `json:"ok"`

	// Details carries service-reported fields, or an "error" entry on failure.
	Details map[string]any `json:"details,omitempty"`
}

// Client is implemented by every tool service connector.
type Client interface {
	// Tool returns the catalog tool name this client serves.
	Tool() string

	// Call invokes one action with the given arguments. Failures are
	// reported in the Result, never as a panic or thrown error.
	Call(ctx context.Context, action string, args map[string]any) Result

	// Health probes the backing service.
	Health(ctx context.Context) Health
}

// Success builds a successful result for an action.
func Success(action string, data any) Result {
	return Result{OK: true, Action: action, Data: data}
}

// Failure builds a failed result for an action.
func Failure(action string, kind ErrorKind, message string) Result {
	return Result{OK: false, Action: action, ErrorKind: kind, ErrorMessage: message}
}

// FailureFromError builds a failed result by classifying err.
func FailureFromError(action string, err error) Result {
	return Failure(action, Classify(err), err.Error())
}

// DecodeArgs converts a step argument map into a typed request struct via a
// JSON round trip. Unknown keys are ignored; a type mismatch is an error the
// caller should report as bad_request.
func DecodeArgs(args map[string]any, into any) error {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}
