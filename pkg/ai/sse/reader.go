// Package sse decodes the text/event-stream framing used by the Gemini
// streamGenerateContent endpoint.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// maxLine bounds a single SSE line. Gemini chunks carry whole candidate parts,
// which can be large when the model writes code.
const maxLine = 4 << 20

// Event is one dispatched SSE event.
type Event struct {
	Type string // "event:" field, empty for the default "message" type
	ID   string // last "id:" field seen in the event
	Data string // "data:" fields joined with "\n"
}

// Reader reads SSE events from an io.Reader.
type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	return &Reader{scanner: sc}
}

// Next returns the next event, or io.EOF once the stream is exhausted.
// A trailing event without a terminating blank line is still dispatched.
func (r *Reader) Next() (Event, error) {
	var ev Event
	var data []string
	pending := false

	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")

		if line == "" {
			if pending {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue // comment / keep-alive
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Type = value
			pending = true
		case "data":
			data = append(data, value)
			pending = true
		case "id":
			ev.ID = value
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	if pending {
		ev.Data = strings.Join(data, "\n")
		return ev, nil
	}
	return Event{}, io.EOF
}
