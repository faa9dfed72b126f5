package toolrelay

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// ServerOption configures a Server via the functional options pattern.
type ServerOption func(*serverOptions)

// serverOptions holds all configurable fields set via ServerOption functions.
type serverOptions struct {
	basePath      string
	registry      *Registry
	logger        *zerolog.Logger
	clock         clockwork.Clock
	sessionBuffer int

	// Durations use -1 internally for "explicitly disabled" so that the
	// zero value can still mean "use the default".
	heartbeat      time.Duration
	handlerTimeout time.Duration
	idleTimeout    time.Duration

	allowedTools []string
	bearerToken  string
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (o *serverOptions) applyDefaults() {
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if o.logger == nil {
		nop := zerolog.Nop()
		o.logger = &nop
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}
	if o.sessionBuffer <= 0 {
		o.sessionBuffer = DefaultSessionBuffer
	}
	if o.heartbeat == 0 {
		o.heartbeat = DefaultHeartbeatInterval
	}
	if o.handlerTimeout == 0 {
		o.handlerTimeout = DefaultHandlerTimeout
	}
}

// resolveServerOptions applies all option functions and fills defaults.
func resolveServerOptions(opts []ServerOption) serverOptions {
	var o serverOptions
	for _, fn := range opts {
		fn(&o)
	}
	o.applyDefaults()
	return o
}

// --- Routing & Registry ---

// WithBasePath mounts all routes under the given prefix, e.g. "/mcp".
func WithBasePath(prefix string) ServerOption {
	return func(o *serverOptions) { o.basePath = prefix }
}

// WithRegistry uses an existing Registry instead of a fresh empty one.
func WithRegistry(r *Registry) ServerOption {
	return func(o *serverOptions) { o.registry = r }
}

// --- Sessions ---

// WithSessionBuffer sets the per-session outbound event buffer size.
func WithSessionBuffer(n int) ServerOption {
	return func(o *serverOptions) { o.sessionBuffer = n }
}

// WithHeartbeatInterval sets how often keepalive comment frames are sent.
// Zero or negative disables heartbeats.
func WithHeartbeatInterval(d time.Duration) ServerOption {
	return func(o *serverOptions) {
		if d <= 0 {
			d = -1
		}
		o.heartbeat = d
	}
}

// WithIdleTimeout closes sessions with no activity for the given window.
// Zero (the default) disables idle reaping.
func WithIdleTimeout(d time.Duration) ServerOption {
	return func(o *serverOptions) { o.idleTimeout = d }
}

// --- Dispatch ---

// WithHandlerTimeout bounds a single tool execution. A handler exceeding
// the bound produces a handler_timeout response and its context is
// canceled. Zero or negative disables the bound.
func WithHandlerTimeout(d time.Duration) ServerOption {
	return func(o *serverOptions) {
		if d <= 0 {
			d = -1
		}
		o.handlerTimeout = d
	}
}

// WithAllowedTools restricts callable tools to those matching one of the
// given glob patterns (doublestar syntax, e.g. "get_*"). Registered tools
// outside the allowlist are reported as unknown to callers.
func WithAllowedTools(patterns ...string) ServerOption {
	return func(o *serverOptions) { o.allowedTools = patterns }
}

// --- Auth, Logging & Clock ---

// WithBearerToken requires an Authorization: Bearer header with the given
// token on every route.
func WithBearerToken(token string) ServerOption {
	return func(o *serverOptions) { o.bearerToken = token }
}

// WithLogger sets the server's structured logger. Defaults to a no-op.
func WithLogger(logger zerolog.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = &logger }
}

// WithClock substitutes the time source, mainly so tests can drive the
// heartbeat and idle reaper with a fake clock.
func WithClock(clock clockwork.Clock) ServerOption {
	return func(o *serverOptions) { o.clock = clock }
}

// ClientOption configures a Client via the functional options pattern.
type ClientOption func(*clientOptions)

// clientOptions holds all configurable fields set via ClientOption functions.
type clientOptions struct {
	httpClient       *http.Client
	logger           *zerolog.Logger
	streamPath       string
	authToken        string
	handshakeTimeout time.Duration
	callTimeout      time.Duration
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (o *clientOptions) applyDefaults() {
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}
	if o.logger == nil {
		nop := zerolog.Nop()
		o.logger = &nop
	}
	if o.streamPath == "" {
		o.streamPath = DefaultStreamPath
	}
	if o.handshakeTimeout <= 0 {
		o.handshakeTimeout = DefaultHandshakeTimeout
	}
	if o.callTimeout == 0 {
		o.callTimeout = DefaultCallTimeout
	}
}

// resolveClientOptions applies all option functions and fills defaults.
func resolveClientOptions(opts []ClientOption) clientOptions {
	var o clientOptions
	for _, fn := range opts {
		fn(&o)
	}
	o.applyDefaults()
	return o
}

// --- Connection ---

// WithHTTPClient sets the HTTP client used for the stream and for calls.
// Do not set http.Client.Timeout on it; the stream request is long-lived
// and a client timeout would sever it. Deadlines belong on contexts and
// the handshake/call timeout options.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithStreamPath overrides the stream route appended to the base URL.
func WithStreamPath(path string) ClientOption {
	return func(o *clientOptions) { o.streamPath = path }
}

// WithAuthToken sends Authorization: Bearer on the stream request and on
// every call.
func WithAuthToken(token string) ClientOption {
	return func(o *clientOptions) { o.authToken = token }
}

// --- Timeouts ---

// WithHandshakeTimeout bounds the wait for the endpoint event in Connect.
func WithHandshakeTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.handshakeTimeout = d }
}

// WithCallTimeout bounds a single Call round trip. Zero or negative
// disables the bound; the context alone limits the wait.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d <= 0 {
			d = -1
		}
		o.callTimeout = d
	}
}

// --- Logging ---

// WithClientLogger sets the client's structured logger. Defaults to a no-op.
func WithClientLogger(logger zerolog.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = &logger }
}
