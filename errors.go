package toolrelay

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed call on the wire. Kinds travel in the
// error member of a ToolResponse frame and map one-to-one onto the
// exported sentinel errors, so errors.Is works on errors returned by
// Client.Call regardless of which side produced them.
type ErrorKind string

const (
	// ErrorKindSessionNotFound marks a call addressed to a session id
	// the server does not know (never created, or already torn down).
	ErrorKindSessionNotFound ErrorKind = "session_not_found"

	// ErrorKindUnknownTool marks a call naming a tool that is not
	// registered or not allowed on this server.
	ErrorKindUnknownTool ErrorKind = "unknown_tool"

	// ErrorKindInvalidArguments marks arguments that failed schema
	// validation or could not be decoded at all.
	ErrorKindInvalidArguments ErrorKind = "invalid_arguments"

	// ErrorKindToolExecutionFailed marks a handler that returned an
	// error, reported a failure result, or panicked.
	ErrorKindToolExecutionFailed ErrorKind = "tool_execution_failed"

	// ErrorKindHandlerTimeout marks a handler that exceeded the server's
	// per-call execution deadline.
	ErrorKindHandlerTimeout ErrorKind = "handler_timeout"
)

// Sentinel errors for wire-level failures. A *RelayError with the
// matching kind satisfies errors.Is against these.
var (
	ErrSessionNotFound     = errors.New("toolrelay: session not found")
	ErrUnknownTool         = errors.New("toolrelay: unknown tool")
	ErrInvalidArguments    = errors.New("toolrelay: invalid arguments")
	ErrToolExecutionFailed = errors.New("toolrelay: tool execution failed")
	ErrHandlerTimeout      = errors.New("toolrelay: handler timed out")
)

// Sentinel errors for client-local failures.
var (
	// ErrNotReady is returned by Call before the endpoint handshake has
	// completed or after the client has started closing.
	ErrNotReady = errors.New("toolrelay: client not ready")

	// ErrClientClosed is returned by operations on a closed client.
	ErrClientClosed = errors.New("toolrelay: client closed")

	// ErrHandshakeTimeout is returned by Connect when the server does not
	// deliver the endpoint event in time.
	ErrHandshakeTimeout = errors.New("toolrelay: endpoint handshake timed out")

	// ErrCallTimeout is returned by Call when the correlated response does
	// not arrive in time. The response, if it arrives later, is dropped.
	ErrCallTimeout = errors.New("toolrelay: call timed out")

	// ErrConnectionClosed is returned for calls that were still pending
	// when the stream connection ended.
	ErrConnectionClosed = errors.New("toolrelay: connection closed")

	// ErrServerClosed is returned by server operations after Shutdown.
	ErrServerClosed = errors.New("toolrelay: server closed")
)

// RelayError is a call failure as carried on the wire. The server encodes
// one into the error member of a ToolResponse; the client returns it from
// Call. Message is human-readable and unstable; match on Kind.
type RelayError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message,omitempty"`
}

func (e *RelayError) Error() string {
	if e.Message == "" {
		return "toolrelay: " + string(e.Kind)
	}
	return "toolrelay: " + string(e.Kind) + ": " + e.Message
}

// Is reports whether target is the sentinel for this error's kind.
func (e *RelayError) Is(target error) bool {
	s := e.sentinel()
	return s != nil && target == s
}

func (e *RelayError) sentinel() error {
	switch e.Kind {
	case ErrorKindSessionNotFound:
		return ErrSessionNotFound
	case ErrorKindUnknownTool:
		return ErrUnknownTool
	case ErrorKindInvalidArguments:
		return ErrInvalidArguments
	case ErrorKindToolExecutionFailed:
		return ErrToolExecutionFailed
	case ErrorKindHandlerTimeout:
		return ErrHandlerTimeout
	}
	return nil
}

func relayErrorf(kind ErrorKind, format string, args ...any) *RelayError {
	return &RelayError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
