package event

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Event is a payload with string-keyed headers.
//
// Equality is byte equality of Body plus set equality of Headers; header
// order carries no meaning. A nil Body equals an empty one, and a nil
// Headers map equals an empty one.
type Event struct {
	Headers map[string]string
	Body    []byte
}

// New builds an Event, copying body and headers.
func New(body []byte, headers map[string]string) Event {
	return Event{
		Headers: copyHeaders(headers),
		Body:    copyBody(body),
	}
}

// Clone returns a deep copy of e.
func (e Event) Clone() Event {
	return New(e.Body, e.Headers)
}

// Equal reports whether e and other carry the same payload and headers.
func (e Event) Equal(other Event) bool {
	if !bytes.Equal(e.Body, other.Body) {
		return false
	}
	if len(e.Headers) != len(other.Headers) {
		return false
	}
	for k, v := range e.Headers {
		ov, ok := other.Headers[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// HeaderKeys returns the header keys in byte order.
func (e Event) HeaderKeys() []string {
	keys := make([]string, 0, len(e.Headers))
	for k := range e.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the event for logs and CLI output. Headers are printed in
// key order so the output is stable.
func (e Event) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range e.HeaderKeys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%s", k, e.Headers[k])
	}
	fmt.Fprintf(&sb, "} body=%dB", len(e.Body))
	return sb.String()
}

func copyHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

func copyBody(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
