package toolrelay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionEnqueueAndReceive(t *testing.T) {
	sess := newSession("sess-1", 4, time.Now())
	defer sess.close()

	require.NoError(t, sess.enqueue(sseEvent{name: EventMessage, data: []byte("a")}))
	require.NoError(t, sess.enqueue(sseEvent{name: EventMessage, data: []byte("b")}))

	ev := <-sess.out
	assert.Equal(t, "a", string(ev.data))
	ev = <-sess.out
	assert.Equal(t, "b", string(ev.data))
}

func TestSessionEnqueueAfterCloseIsDropped(t *testing.T) {
	sess := newSession("sess-1", 4, time.Now())
	sess.close()

	err := sess.enqueue(sseEvent{name: EventMessage, data: []byte("late")})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Empty(t, sess.out)
}

func TestSessionCloseReleasesBlockedEnqueue(t *testing.T) {
	// Buffer of one, already full: the second enqueue blocks until close.
	sess := newSession("sess-1", 1, time.Now())
	require.NoError(t, sess.enqueue(sseEvent{name: EventMessage, data: []byte("first")}))

	errCh := make(chan error, 1)
	go func() {
		errCh <- sess.enqueue(sseEvent{name: EventMessage, data: []byte("blocked")})
	}()

	select {
	case err := <-errCh:
		t.Fatalf("enqueue returned before close: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	sess.close()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSessionNotFound)
	case <-time.After(time.Second):
		t.Fatal("enqueue still blocked after close")
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	sess := newSession("sess-1", 1, time.Now())
	sess.close()
	sess.close()
}

func TestSessionContextCanceledOnClose(t *testing.T) {
	sess := newSession("sess-1", 1, time.Now())
	require.NoError(t, sess.ctx.Err())
	sess.close()
	assert.Error(t, sess.ctx.Err())
}

func TestSessionIdleFor(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := newSession("sess-1", 1, base)
	defer sess.close()

	assert.Equal(t, 5*time.Minute, sess.idleFor(base.Add(5*time.Minute)))

	sess.touch(base.Add(4 * time.Minute))
	assert.Equal(t, time.Minute, sess.idleFor(base.Add(5*time.Minute)))
}

func TestSessionTableRegisterAndGet(t *testing.T) {
	table := newSessionTable()
	sess := newSession("sess-1", 1, time.Now())
	defer sess.close()

	table.register(sess)

	got, ok := table.get("sess-1")
	require.True(t, ok)
	assert.Same(t, sess, got)

	_, ok = table.get("sess-2")
	assert.False(t, ok)
}

func TestSessionTableRemove(t *testing.T) {
	table := newSessionTable()
	sess := newSession("sess-1", 1, time.Now())
	defer sess.close()
	table.register(sess)

	removed, ok := table.remove("sess-1")
	require.True(t, ok)
	assert.Same(t, sess, removed)

	_, ok = table.get("sess-1")
	assert.False(t, ok)

	_, ok = table.remove("sess-1")
	assert.False(t, ok)
}

func TestSessionTableDrain(t *testing.T) {
	table := newSessionTable()
	a := newSession("sess-a", 1, time.Now())
	b := newSession("sess-b", 1, time.Now())
	defer a.close()
	defer b.close()
	table.register(a)
	table.register(b)

	drained := table.drain()
	assert.Len(t, drained, 2)
	assert.Zero(t, table.len())
}

func TestSessionTableIDsSorted(t *testing.T) {
	table := newSessionTable()
	for _, id := range []string{"c", "a", "b"} {
		sess := newSession(id, 1, time.Now())
		defer sess.close()
		table.register(sess)
	}
	assert.Equal(t, []string{"a", "b", "c"}, table.ids())
}
