package toolrelay

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatEvent(t *testing.T) {
	out := formatEvent(EventEndpoint, []byte("/message?session_id=abc"))
	assert.Equal(t, "event: endpoint\ndata: /message?session_id=abc\n\n", string(out))
}

func TestFormatEventMultilineData(t *testing.T) {
	out := formatEvent(EventMessage, []byte("line one\nline two"))
	assert.Equal(t, "event: message\ndata: line one\ndata: line two\n\n", string(out))
}

func TestFormatEventNoName(t *testing.T) {
	out := formatEvent("", []byte("payload"))
	assert.Equal(t, "data: payload\n\n", string(out))
}

func TestFormatComment(t *testing.T) {
	assert.Equal(t, ": keepalive\n\n", string(formatComment("keepalive")))
}

func TestEventScannerSingleEvent(t *testing.T) {
	s := newEventScanner(strings.NewReader("event: endpoint\ndata: /message?session_id=abc\n\n"))

	ev, err := s.next()
	require.NoError(t, err)
	assert.Equal(t, EventEndpoint, ev.name)
	assert.Equal(t, "/message?session_id=abc", string(ev.data))

	_, err = s.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEventScannerSkipsComments(t *testing.T) {
	stream := ": keepalive\n\nevent: message\ndata: {\"id\":\"req_1\"}\n\n: keepalive\n\n"
	s := newEventScanner(strings.NewReader(stream))

	ev, err := s.next()
	require.NoError(t, err)
	assert.Equal(t, EventMessage, ev.name)
	assert.Equal(t, `{"id":"req_1"}`, string(ev.data))
}

func TestEventScannerJoinsDataLines(t *testing.T) {
	s := newEventScanner(strings.NewReader("event: message\ndata: first\ndata: second\n\n"))

	ev, err := s.next()
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", string(ev.data))
}

func TestEventScannerHandlesCRLF(t *testing.T) {
	s := newEventScanner(strings.NewReader("event: endpoint\r\ndata: /message\r\n\r\n"))

	ev, err := s.next()
	require.NoError(t, err)
	assert.Equal(t, EventEndpoint, ev.name)
	assert.Equal(t, "/message", string(ev.data))
}

func TestEventScannerNoSpaceAfterColon(t *testing.T) {
	s := newEventScanner(strings.NewReader("event:message\ndata:payload\n\n"))

	ev, err := s.next()
	require.NoError(t, err)
	assert.Equal(t, EventMessage, ev.name)
	assert.Equal(t, "payload", string(ev.data))
}

func TestEventScannerDiscardsPartialEventAtEOF(t *testing.T) {
	// Stream dies mid-event: no trailing blank line terminates the frame.
	s := newEventScanner(strings.NewReader("event: message\ndata: half"))

	_, err := s.next()
	assert.Error(t, err)
}

func TestEventScannerRoundTrip(t *testing.T) {
	frames := string(formatEvent(EventEndpoint, []byte("/message?session_id=s1"))) +
		string(formatComment("keepalive")) +
		string(formatEvent(EventMessage, []byte(`{"id":"req_2","result":"ok"}`)))
	s := newEventScanner(strings.NewReader(frames))

	ev, err := s.next()
	require.NoError(t, err)
	assert.Equal(t, EventEndpoint, ev.name)

	ev, err = s.next()
	require.NoError(t, err)
	assert.Equal(t, EventMessage, ev.name)
	assert.Equal(t, `{"id":"req_2","result":"ok"}`, string(ev.data))
}
