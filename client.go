package toolrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ConnState is the lifecycle state of a Client.
type ConnState int32

const (
	// StateDisconnected is a freshly built client, before Connect.
	StateDisconnected ConnState = iota
	// StateConnecting covers the stream dial.
	StateConnecting
	// StateAwaitingHandshake covers the wait for the endpoint event.
	StateAwaitingHandshake
	// StateReady accepts calls.
	StateReady
	// StateClosing is an orderly Close in progress.
	StateClosing
	// StateClosed is terminal.
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Client talks to a relay Server: one long-lived SSE stream supplies the
// session's responses while calls go out as POSTs against the URL the
// server announced in the endpoint handshake.
//
// A Client is single-use. Once its stream ends, for any reason, it stays
// closed; build a new one to reconnect. All methods are safe for
// concurrent use, and any number of Calls may be in flight at once.
type Client struct {
	baseURL          *url.URL
	httpClient       *http.Client
	logger           zerolog.Logger
	streamPath       string
	authToken        string
	handshakeTimeout time.Duration
	callTimeout      time.Duration

	state atomic.Int32

	mu           sync.Mutex
	callURL      *url.URL
	pending      map[string]chan ToolResponse
	cancelStream context.CancelFunc
	listenerDone chan struct{}

	endpointOnce sync.Once
	endpointCh   chan struct{}
	closeOnce    sync.Once
}

// NewClient builds a client for the relay server at baseURL, e.g.
// "http://127.0.0.1:8941". Connect must succeed before Call.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	o := resolveClientOptions(opts)
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("toolrelay: parse base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("toolrelay: base URL %q must be absolute", baseURL)
	}
	return &Client{
		baseURL:          u,
		httpClient:       o.httpClient,
		logger:           *o.logger,
		streamPath:       o.streamPath,
		authToken:        o.authToken,
		handshakeTimeout: o.handshakeTimeout,
		callTimeout:      o.callTimeout,
		pending:          make(map[string]chan ToolResponse),
		endpointCh:       make(chan struct{}),
	}, nil
}

// State returns the connection state.
func (c *Client) State() ConnState { return ConnState(c.state.Load()) }

// CallURL returns the per-session call URL announced by the server, or
// empty before the handshake.
func (c *Client) CallURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.callURL == nil {
		return ""
	}
	return c.callURL.String()
}

// Connect opens the stream and waits for the endpoint handshake. The
// context bounds Connect itself; the stream then lives until Close or
// until the server drops it. A failed Connect leaves the client closed.
func (c *Client) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		switch c.State() {
		case StateClosing, StateClosed:
			return ErrClientClosed
		default:
			return errors.New("toolrelay: already connected")
		}
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancelStream = cancel
	c.mu.Unlock()

	streamURL := c.baseURL.JoinPath(c.streamPath)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, streamURL.String(), nil)
	if err != nil {
		c.abortConnect(cancel)
		return fmt.Errorf("toolrelay: build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.setAuth(req)

	// The watchdog bounds dial plus handshake together; it is disarmed
	// the moment the endpoint event lands.
	watchdog := time.AfterFunc(c.handshakeTimeout, cancel)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		fired := !watchdog.Stop()
		c.abortConnect(cancel)
		if fired {
			return ErrHandshakeTimeout
		}
		return fmt.Errorf("toolrelay: open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		watchdog.Stop()
		drainBody(resp.Body)
		c.abortConnect(cancel)
		return fmt.Errorf("toolrelay: open stream: unexpected status %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		watchdog.Stop()
		drainBody(resp.Body)
		c.abortConnect(cancel)
		return fmt.Errorf("toolrelay: open stream: unexpected content type %q", ct)
	}

	c.state.Store(int32(StateAwaitingHandshake))

	done := make(chan struct{})
	c.mu.Lock()
	c.listenerDone = done
	c.mu.Unlock()
	go c.listen(resp.Body, done)

	select {
	case <-c.endpointCh:
		watchdog.Stop()
		if !c.state.CompareAndSwap(int32(StateAwaitingHandshake), int32(StateReady)) {
			return ErrClientClosed
		}
		c.logger.Debug().Str("call_url", c.CallURL()).Msg("connected")
		return nil
	case <-done:
		fired := !watchdog.Stop()
		c.abortConnect(cancel)
		if fired {
			return ErrHandshakeTimeout
		}
		return ErrConnectionClosed
	case <-ctx.Done():
		watchdog.Stop()
		c.abortConnect(cancel)
		return ctx.Err()
	}
}

func (c *Client) abortConnect(cancel context.CancelFunc) {
	cancel()
	c.state.Store(int32(StateClosed))
}

// Call invokes a tool and waits for the correlated response. args is
// marshaled to JSON; nil sends no arguments. Wire-level failures come
// back as *RelayError; local conditions surface as the package sentinels
// (ErrNotReady, ErrCallTimeout, ErrConnectionClosed). A response that
// arrives after the wait has given up is dropped.
func (c *Client) Call(ctx context.Context, tool string, args any) (json.RawMessage, error) {
	if c.State() != StateReady {
		return nil, ErrNotReady
	}

	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("toolrelay: encode arguments: %w", err)
		}
		raw = b
	}

	id := GenerateID(PrefixRequest)
	ch := make(chan ToolResponse, 1)

	c.mu.Lock()
	callURL := c.callURL
	done := c.listenerDone
	c.pending[id] = ch
	c.mu.Unlock()
	defer c.forget(id)

	if callURL == nil {
		return nil, ErrNotReady
	}

	body, err := json.Marshal(CallRequest{ID: id, Tool: tool, Arguments: raw})
	if err != nil {
		return nil, fmt.Errorf("toolrelay: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("toolrelay: build call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("toolrelay: post call: %w", err)
	}
	data, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		var eb errorBody
		if readErr == nil && json.Unmarshal(data, &eb) == nil && eb.Error != nil {
			return nil, eb.Error
		}
		return nil, fmt.Errorf("toolrelay: call rejected: %s", resp.Status)
	}

	var timeout <-chan time.Time
	if c.callTimeout > 0 {
		timer := time.NewTimer(c.callTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-ch:
		if r.Error != nil {
			return nil, r.Error
		}
		return r.Result, nil
	case <-timeout:
		c.logger.Debug().Str("request_id", id).Str("tool", tool).Msg("call timed out")
		return nil, ErrCallTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
		// The stream may have delivered the response just before dying.
		select {
		case r := <-ch:
			if r.Error != nil {
				return nil, r.Error
			}
			return r.Result, nil
		default:
			return nil, ErrConnectionClosed
		}
	}
}

// ListTools fetches the server's tool listing from the route next to the
// stream path. It needs no session and works in any state.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	base := strings.TrimSuffix(c.streamPath, DefaultStreamPath)
	u := c.baseURL.JoinPath(base + DefaultToolsPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("toolrelay: build tools request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("toolrelay: list tools: %w", err)
	}
	defer drainBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("toolrelay: list tools: unexpected status %s", resp.Status)
	}
	var list toolList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("toolrelay: decode tools: %w", err)
	}
	return list.Tools, nil
}

// Close severs the stream and fails pending calls with
// ErrConnectionClosed. Idempotent; safe in any state.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		prev := ConnState(c.state.Swap(int32(StateClosing)))

		c.mu.Lock()
		cancel := c.cancelStream
		done := c.listenerDone
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if done != nil && prev != StateDisconnected {
			<-done
		}
		c.state.Store(int32(StateClosed))
		c.logger.Debug().Msg("client closed")
	})
	return nil
}

// listen is the stream reader goroutine. It resolves the endpoint
// handshake, routes message frames to their pending calls, and closes
// done on exit so every waiter observes the connection ending.
func (c *Client) listen(body io.ReadCloser, done chan struct{}) {
	defer close(done)
	defer func() { _ = body.Close() }()

	scanner := newEventScanner(body)
	for {
		ev, err := scanner.next()
		if err != nil {
			if c.State() == StateClosing || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				c.logger.Debug().Msg("stream ended")
			} else {
				c.logger.Warn().Err(err).Msg("stream read failed")
			}
			break
		}
		switch ev.name {
		case EventEndpoint:
			c.setEndpoint(ev.data)
		case EventMessage:
			var resp ToolResponse
			if err := json.Unmarshal(ev.data, &resp); err != nil {
				c.logger.Warn().Err(err).Msg("malformed message frame")
				continue
			}
			c.resolve(resp)
		default:
			c.logger.Debug().Str("event", ev.name).Msg("ignoring unknown event")
		}
	}

	c.mu.Lock()
	n := len(c.pending)
	c.mu.Unlock()
	if n > 0 {
		c.logger.Debug().Int("pending", n).Msg("stream ended with calls in flight")
	}

	// A dead stream makes the client unusable; reflect that unless an
	// orderly Close is already driving the state.
	c.state.CompareAndSwap(int32(StateReady), int32(StateClosed))
	c.state.CompareAndSwap(int32(StateAwaitingHandshake), int32(StateClosed))
}

// setEndpoint resolves the announced call URL against the base URL. Only
// the first endpoint event counts; duplicates are ignored.
func (c *Client) setEndpoint(data []byte) {
	ref, err := url.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		c.logger.Error().Err(err).Msg("unparseable endpoint URL")
		return
	}
	target := c.baseURL.ResolveReference(ref)

	accepted := false
	c.endpointOnce.Do(func() {
		c.mu.Lock()
		c.callURL = target
		c.mu.Unlock()
		close(c.endpointCh)
		accepted = true
	})
	if !accepted {
		c.logger.Debug().Msg("ignoring duplicate endpoint event")
	}
}

func (c *Client) resolve(resp ToolResponse) {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()
	if !ok {
		c.logger.Debug().Str("request_id", resp.ID).Msg("dropping uncorrelated response")
		return
	}
	ch <- resp
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) setAuth(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

func drainBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<16))
	_ = body.Close()
}
