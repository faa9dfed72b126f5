package toolrelay

import (
	"bufio"
	"bytes"
	"io"
)

// sseEvent is one server-sent event: a name and its joined data payload.
type sseEvent struct {
	name string
	data []byte
}

// formatEvent renders one SSE frame. Multi-line data is split across
// consecutive "data:" lines per the SSE framing rules.
func formatEvent(name string, data []byte) []byte {
	var b bytes.Buffer
	if name != "" {
		b.WriteString("event: ")
		b.WriteString(name)
		b.WriteByte('\n')
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		b.WriteString("data: ")
		b.Write(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// formatComment renders a comment frame. The server sends these as
// heartbeats; scanners skip them.
func formatComment(text string) []byte {
	return []byte(": " + text + "\n\n")
}

// eventScanner incrementally decodes SSE frames from a stream body.
// Comment frames and unknown field names are skipped. Multiple data
// lines within one frame are joined with a newline.
type eventScanner struct {
	r *bufio.Reader
}

func newEventScanner(r io.Reader) *eventScanner {
	return &eventScanner{r: bufio.NewReader(r)}
}

// next blocks until a complete event has been read and returns it.
// Stream errors surface unchanged (io.EOF on clean close); a partial
// event at stream end is discarded.
func (s *eventScanner) next() (sseEvent, error) {
	var (
		ev      sseEvent
		data    bytes.Buffer
		sawData bool
	)
	for {
		line, err := s.r.ReadBytes('\n')
		if err != nil {
			return sseEvent{}, err
		}
		line = bytes.TrimRight(line, "\r\n")

		switch {
		case len(line) == 0:
			// A blank line dispatches the pending event, if any.
			if ev.name != "" || sawData {
				ev.data = data.Bytes()
				return ev, nil
			}
		case line[0] == ':':
			// Comment frame (heartbeat).
		case bytes.HasPrefix(line, []byte("event:")):
			ev.name = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			if sawData {
				data.WriteByte('\n')
			}
			data.Write(trimFieldValue(line[len("data:"):]))
			sawData = true
		}
	}
}

// trimFieldValue strips the single optional space after a field colon.
func trimFieldValue(v []byte) []byte {
	if len(v) > 0 && v[0] == ' ' {
		return v[1:]
	}
	return v
}
