package boltbackend

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/roach88/chanq/internal/event"
)

// An event value is a sequence of uvarint-prefixed byte strings:
//
//	body, header count, then key and value for each header in key order.
//
// Keys and values are stored byte for byte, so headers need not be UTF-8.

var errShortRecord = errors.New("truncated event record")

func encodeRecord(ev event.Event) []byte {
	keys := ev.HeaderKeys()
	size := binary.MaxVarintLen64 * (2 + 2*len(keys))
	size += len(ev.Body)
	for _, k := range keys {
		size += len(k) + len(ev.Headers[k])
	}

	buf := make([]byte, 0, size)
	buf = appendBytes(buf, ev.Body)
	buf = binary.AppendUvarint(buf, uint64(len(keys)))
	for _, k := range keys {
		buf = appendBytes(buf, []byte(k))
		buf = appendBytes(buf, []byte(ev.Headers[k]))
	}
	return buf
}

func appendBytes(buf, b []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// decodeRecord copies everything out of data, which may be bolt-owned
// memory that is only valid for the life of the transaction.
func decodeRecord(data []byte) (event.Event, error) {
	r := recordReader{data: data}
	body := r.bytes()
	n := r.uvarint()
	if r.err != nil {
		return event.Event{}, r.err
	}
	// Each header takes at least two bytes.
	if n > uint64(len(r.data))/2 {
		return event.Event{}, fmt.Errorf("%w: %d headers in %d bytes", errShortRecord, n, len(r.data))
	}

	var headers map[string]string
	if n > 0 {
		headers = make(map[string]string, n)
	}
	for i := uint64(0); i < n; i++ {
		k := r.bytes()
		v := r.bytes()
		if r.err != nil {
			return event.Event{}, r.err
		}
		headers[string(k)] = string(v)
	}
	if len(r.data) != 0 {
		return event.Event{}, fmt.Errorf("event record has %d trailing bytes", len(r.data))
	}
	if body == nil {
		body = []byte{}
	}
	return event.Event{Headers: headers, Body: body}, nil
}

type recordReader struct {
	data []byte
	err  error
}

func (r *recordReader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data)
	if n <= 0 {
		r.err = errShortRecord
		return 0
	}
	r.data = r.data[n:]
	return v
}

func (r *recordReader) bytes() []byte {
	n := r.uvarint()
	if r.err != nil {
		return nil
	}
	if n > uint64(len(r.data)) {
		r.err = errShortRecord
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[:n])
	r.data = r.data[n:]
	return b
}
