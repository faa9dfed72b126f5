package toolrelay

import "time"

// Route defaults under the server base path.
const (
	// DefaultStreamPath is the GET route serving the SSE stream.
	DefaultStreamPath = "/sse"

	// DefaultCallPath is the POST route accepting tool calls.
	DefaultCallPath = "/message"

	// DefaultToolsPath is the GET route listing registered tools.
	DefaultToolsPath = "/tools"
)

// Server defaults.
const (
	// DefaultAddr is the listen address used by config-driven deployments.
	DefaultAddr = ":8941"

	// DefaultSessionBuffer is the per-session outbound event buffer size.
	// A full buffer blocks dispatch completion until the stream writer
	// catches up; it never drops responses for a live session.
	DefaultSessionBuffer = 64

	// DefaultHeartbeatInterval is how often comment frames are sent to
	// keep idle connections alive through proxies.
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultHandlerTimeout bounds one tool execution. A handler that
	// exceeds it produces a handler_timeout response.
	DefaultHandlerTimeout = 60 * time.Second
)

// Client defaults.
const (
	// DefaultHandshakeTimeout bounds the wait for the endpoint event
	// during Connect.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultCallTimeout bounds one Call round trip.
	DefaultCallTimeout = 30 * time.Second
)
