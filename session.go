package toolrelay

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// session is the server-side state of one live stream connection. The
// stream writer goroutine is the sole consumer of out; dispatch
// goroutines are the producers.
type session struct {
	id  string
	out chan sseEvent

	// ctx is canceled at teardown so in-flight handlers observe the
	// stream going away.
	ctx    context.Context
	cancel context.CancelFunc

	done      chan struct{}
	closeOnce sync.Once

	lastActive atomic.Int64 // unix nanos of the most recent activity
}

func newSession(id string, buffer int, now time.Time) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:     id,
		out:    make(chan sseEvent, buffer),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.touch(now)
	return s
}

// touch records activity for the idle reaper.
func (s *session) touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

func (s *session) idleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastActive.Load()))
}

// close tears the session down: cancels in-flight handler contexts and
// releases any producer blocked on a full buffer. Safe to call twice.
func (s *session) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.done)
	})
}

// enqueue hands one event to the stream writer. It blocks while the
// buffer is full and the session is alive. After teardown the event is
// dropped and ErrSessionNotFound reported; a response is either written
// to the stream in full or not at all.
func (s *session) enqueue(ev sseEvent) error {
	select {
	case <-s.done:
		return ErrSessionNotFound
	default:
	}
	select {
	case s.out <- ev:
		return nil
	case <-s.done:
		return ErrSessionNotFound
	}
}

// sessionTable is the bookkeeping for live sessions. Every lookup goes
// through it; there is no package-level session state.
type sessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionTable() *sessionTable {
	return &sessionTable{sessions: make(map[string]*session)}
}

func (t *sessionTable) register(s *session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.id] = s
}

func (t *sessionTable) get(id string) (*session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	return s, ok
}

// remove unregisters and returns the session; the caller closes it.
// Removing first keeps new calls from racing onto a dying session.
func (t *sessionTable) remove(id string) (*session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if ok {
		delete(t.sessions, id)
	}
	return s, ok
}

// drain empties the table and returns everything that was live.
func (t *sessionTable) drain() []*session {
	t.mu.Lock()
	defer t.mu.Unlock()
	all := make([]*session, 0, len(t.sessions))
	for _, s := range t.sessions {
		all = append(all, s)
	}
	t.sessions = make(map[string]*session)
	return all
}

// snapshot returns the live sessions without removing them.
func (t *sessionTable) snapshot() []*session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	all := make([]*session, 0, len(t.sessions))
	for _, s := range t.sessions {
		all = append(all, s)
	}
	return all
}

func (t *sessionTable) ids() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (t *sessionTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
