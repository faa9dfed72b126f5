package toolrelay

import "encoding/json"

// SSE event names used by the transport.
const (
	// EventEndpoint is the first event on every stream. Its data is the
	// call URL for the session, with the session id embedded as a query
	// parameter. The client must not send calls before receiving it.
	EventEndpoint = "endpoint"

	// EventMessage carries one ToolResponse per frame.
	EventMessage = "message"
)

// sessionIDParam is the query parameter carrying the session id on the
// call URL.
const sessionIDParam = "session_id"

// CallRequest is the body of a POST to the call endpoint. ID is a
// client-chosen correlation token echoed back verbatim in the response.
type CallRequest struct {
	ID        string          `json:"id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResponse is the payload of an EventMessage frame. Exactly one of
// Result and Error is set.
type ToolResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RelayError     `json:"error,omitempty"`
}

// ToolInfo describes one registered tool. The tools endpoint returns a
// list of these; Registry.List produces them.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// toolList is the body of the tools endpoint.
type toolList struct {
	Tools []ToolInfo `json:"tools"`
}

// errorBody is the body of a synchronous HTTP error (pre-session
// failures only; session-addressable failures ride the stream).
type errorBody struct {
	Error *RelayError `json:"error"`
}
