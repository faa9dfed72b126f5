package toolrelay

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
)

// Server relays tool calls between HTTP clients and registered handlers
// over the SSE pairing: one long-lived GET stream per session plus a
// companion POST endpoint. A POST is acknowledged with 202 Accepted
// before the handler runs; the response rides the session's stream as an
// EventMessage frame.
//
// A Server is an http.Handler, so it mounts into any mux; ListenAndServe
// is a convenience that owns the http.Server. Tear down with Shutdown.
type Server struct {
	registry *Registry
	router   chi.Router
	logger   zerolog.Logger
	clock    clockwork.Clock

	basePath       string
	callPath       string
	sessionBuffer  int
	heartbeat      time.Duration
	handlerTimeout time.Duration
	idleTimeout    time.Duration
	allowedTools   []string
	bearerToken    string

	table    *sessionTable
	inflight sync.WaitGroup

	mu         sync.Mutex
	httpServer *http.Server

	closedCh  chan struct{}
	closeOnce sync.Once
}

// NewServer constructs a Server. With no options it serves /sse, /message
// and /tools on an empty registry; use WithRegistry or Registry() to add
// tools before or after construction.
func NewServer(opts ...ServerOption) *Server {
	o := resolveServerOptions(opts)

	base := strings.TrimRight(o.basePath, "/")
	if base != "" && !strings.HasPrefix(base, "/") {
		base = "/" + base
	}

	s := &Server{
		registry:       o.registry,
		logger:         *o.logger,
		clock:          o.clock,
		basePath:       base,
		callPath:       base + DefaultCallPath,
		sessionBuffer:  o.sessionBuffer,
		heartbeat:      o.heartbeat,
		handlerTimeout: o.handlerTimeout,
		idleTimeout:    o.idleTimeout,
		allowedTools:   o.allowedTools,
		bearerToken:    o.bearerToken,
		table:          newSessionTable(),
		closedCh:       make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.bearerToken != "" {
		r.Use(s.requireBearer)
	}
	register := func(r chi.Router) {
		r.Get(DefaultStreamPath, s.handleStream)
		r.Post(DefaultCallPath, s.handleCall)
		r.Get(DefaultToolsPath, s.handleTools)
	}
	if base == "" {
		register(r)
	} else {
		r.Route(base, register)
	}
	s.router = r

	if s.idleTimeout > 0 {
		go s.reapIdle()
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Registry returns the server's tool registry. Tools may be registered
// at any point in the server's life.
func (s *Server) Registry() *Registry { return s.registry }

// Sessions returns the ids of live sessions, sorted.
func (s *Server) Sessions() []string { return s.table.ids() }

// CloseSession force-closes one live session and reports whether the id
// was live. The session's stream handler observes the teardown and
// returns; queued responses are dropped.
func (s *Server) CloseSession(id string) bool {
	sess, ok := s.table.remove(id)
	if !ok {
		return false
	}
	sess.close()
	s.logger.Debug().Str("session_id", id).Msg("session closed")
	return true
}

// ListenAndServe runs the relay on addr until Shutdown. For custom
// http.Server settings or shared muxes, mount the Server as a handler
// instead.
func (s *Server) ListenAndServe(addr string) error {
	if s.isClosed() {
		return ErrServerClosed
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting new sessions, tears down live ones, and waits
// for in-flight dispatches to finish. The context bounds the wait.
// Idempotent; errors from the stages are aggregated.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closedCh) })

	var result *multierror.Error

	// Sessions first: live streams only end once their session is gone,
	// and the HTTP server below waits for active requests.
	for _, sess := range s.table.drain() {
		sess.close()
	}

	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("http server: %w", err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		result = multierror.Append(result, fmt.Errorf("waiting for in-flight calls: %w", ctx.Err()))
	}
	return result.ErrorOrNil()
}

func (s *Server) isClosed() bool {
	select {
	case <-s.closedCh:
		return true
	default:
		return false
	}
}

// --- HTTP handlers ---

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if s.isClosed() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	sess := newSession(uuid.NewString(), s.sessionBuffer, s.clock.Now())
	s.table.register(sess)
	logger := s.logger.With().Str("session_id", sess.id).Logger()
	logger.Debug().Msg("stream opened")

	defer func() {
		s.table.remove(sess.id)
		sess.close()
		logger.Debug().Int("undelivered", len(sess.out)).Msg("stream closed")
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	endpoint := s.callPath + "?" + sessionIDParam + "=" + url.QueryEscape(sess.id)
	if _, err := w.Write(formatEvent(EventEndpoint, []byte(endpoint))); err != nil {
		return
	}
	flusher.Flush()

	var heartbeat <-chan time.Time
	if s.heartbeat > 0 {
		ticker := s.clock.NewTicker(s.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.Chan()
	}

	ctx := r.Context()
	for {
		select {
		case ev := <-sess.out:
			if _, err := w.Write(formatEvent(ev.name, ev.data)); err != nil {
				logger.Debug().Err(err).Msg("stream write failed")
				return
			}
			flusher.Flush()
		case <-heartbeat:
			if _, err := w.Write(formatComment("keepalive")); err != nil {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		case <-sess.done:
			return
		}
	}
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get(sessionIDParam)
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest,
			relayErrorf(ErrorKindSessionNotFound, "missing %s parameter", sessionIDParam))
		return
	}
	sess, ok := s.table.get(sessionID)
	if !ok {
		s.writeError(w, http.StatusNotFound,
			relayErrorf(ErrorKindSessionNotFound, "session %s is not live", sessionID))
		return
	}

	var req CallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest,
			relayErrorf(ErrorKindInvalidArguments, "decode request body: %v", err))
		return
	}
	if req.ID == "" {
		s.writeError(w, http.StatusBadRequest,
			relayErrorf(ErrorKindInvalidArguments, "missing request id"))
		return
	}
	if req.Tool == "" {
		s.writeError(w, http.StatusBadRequest,
			relayErrorf(ErrorKindInvalidArguments, "missing tool name"))
		return
	}

	sess.touch(s.clock.Now())

	// Accept before executing; the response rides the stream.
	w.WriteHeader(http.StatusAccepted)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.execute(sess, req)
	}()
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	var infos []ToolInfo
	if q := r.URL.Query().Get("q"); q != "" {
		infos = s.registry.Search(q)
	} else {
		infos = s.registry.List()
	}
	visible := make([]ToolInfo, 0, len(infos))
	for _, info := range infos {
		if s.toolAllowed(info.Name) {
			visible = append(visible, info)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toolList{Tools: visible})
}

// --- Dispatch ---

// execute runs one accepted call: allowlist, registry dispatch under
// panic isolation and the handler timeout, response enqueue.
func (s *Server) execute(sess *session, req CallRequest) {
	logger := s.logger.With().
		Str("session_id", sess.id).
		Str("request_id", req.ID).
		Str("tool", req.Tool).
		Logger()

	if !s.toolAllowed(req.Tool) {
		s.respond(logger, sess, ToolResponse{
			ID:    req.ID,
			Error: relayErrorf(ErrorKindUnknownTool, "tool not found: %s", req.Tool),
		})
		return
	}

	ctx := WithContextSessionID(sess.ctx, sess.id)
	ctx = WithContextRequestID(ctx, req.ID)
	var cancel context.CancelFunc
	if s.handlerTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.handlerTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type outcome struct {
		result   json.RawMessage
		relayErr *RelayError
	}
	done := make(chan outcome, 1)
	go func() {
		var (
			result   json.RawMessage
			relayErr *RelayError
		)
		recovered := panics.Try(func() {
			result, relayErr = s.registry.dispatch(ctx, req.Tool, req.Arguments)
		})
		if recovered != nil {
			logger.Error().Any("panic", recovered.Value).Msg("tool panicked")
			result, relayErr = nil, relayErrorf(ErrorKindToolExecutionFailed,
				"tool %s panicked: %v", req.Tool, recovered.Value)
		}
		done <- outcome{result: result, relayErr: relayErr}
	}()

	timedOut := func() *RelayError {
		return relayErrorf(ErrorKindHandlerTimeout,
			"tool %s exceeded the %s execution deadline", req.Tool, s.handlerTimeout)
	}

	select {
	case out := <-done:
		resp := ToolResponse{ID: req.ID}
		switch {
		case out.relayErr != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
			// The handler died of the deadline; report it as such no
			// matter how the error surfaced.
			resp.Error = timedOut()
		case out.relayErr != nil:
			resp.Error = out.relayErr
		default:
			resp.Result = out.result
		}
		s.respond(logger, sess, resp)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.respond(logger, sess, ToolResponse{ID: req.ID, Error: timedOut()})
			return
		}
		// Session torn down mid-flight; nobody is listening anymore.
		logger.Debug().Msg("session closed during dispatch")
	}
}

// respond encodes and enqueues one response. Delivery failures are
// logged, never retried.
func (s *Server) respond(logger zerolog.Logger, sess *session, resp ToolResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Error().Err(err).Msg("encode response")
		return
	}
	if err := sess.enqueue(sseEvent{name: EventMessage, data: data}); err != nil {
		logger.Debug().Msg("session gone, response dropped")
		return
	}
	if resp.Error != nil {
		logger.Debug().Str("kind", string(resp.Error.Kind)).Msg("call failed")
	} else {
		logger.Debug().Msg("call completed")
	}
}

// toolAllowed applies the allowlist. An empty allowlist allows everything.
func (s *Server) toolAllowed(name string) bool {
	if len(s.allowedTools) == 0 {
		return true
	}
	for _, pattern := range s.allowedTools {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// --- Housekeeping ---

// reapIdle closes sessions whose last activity is older than the idle
// window. It runs until Shutdown.
func (s *Server) reapIdle() {
	interval := s.idleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			now := s.clock.Now()
			for _, sess := range s.table.snapshot() {
				if sess.idleFor(now) < s.idleTimeout {
					continue
				}
				if removed, ok := s.table.remove(sess.id); ok {
					removed.close()
					s.logger.Info().Str("session_id", sess.id).Msg("idle session reaped")
				}
			}
		case <-s.closedCh:
			return
		}
	}
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.bearerToken)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError emits a synchronous HTTP error with the wire error shape.
// Only pre-session failures take this path.
func (s *Server) writeError(w http.ResponseWriter, status int, relayErr *RelayError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: relayErr})
}
