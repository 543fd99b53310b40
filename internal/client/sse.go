package client

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// maxEventSize bounds a single SSE event payload. Full snapshots of large
// scans can run to megabytes.
const maxEventSize = 8 * 1024 * 1024

// readEvents parses a text/event-stream body and invokes fn once per
// complete event. Comment lines (heartbeats) and unknown fields are ignored;
// an event without an explicit name dispatches as "message". Returns nil on
// clean EOF.
func readEvents(r io.Reader, fn func(name string, data []byte)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var name string
	var data bytes.Buffer

	dispatch := func() {
		if data.Len() > 0 {
			ev := name
			if ev == "" {
				ev = "message"
			}
			payload := make([]byte, data.Len())
			copy(payload, data.Bytes())
			fn(ev, payload)
		}
		name = ""
		data.Reset()
	}

	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, ":"):
			// Comment; servers use these as keep-alives.
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// id:, retry: and unknown fields are not used by this protocol.
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("client.readEvents: %w", err)
	}

	// Flush a trailing event that was not followed by a blank line.
	dispatch()
	return nil
}
