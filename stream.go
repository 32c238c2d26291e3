package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
)

// ---------------------------------------------------------------------------
// Scope stream framing
//
//	'(' start:i64 id:u64 len:u8 payload[len] size:u64 <children: size bytes> ')' stop:i64
//
// All integers are little endian. A ')' where a '(' is expected ends the
// sibling sequence of the enclosing scope.
// ---------------------------------------------------------------------------

const (
	scopeBegin = '('
	scopeEnd   = ')'

	// Bytes of a scope header up to and including the payload length byte.
	scopeHeaderSize  = 1 + 8 + 8 + 1
	scopeTrailerSize = 1 + 8
)

var errMalformedStream = errors.New("malformed scope stream")

type scopeEvent struct {
	id         uint64
	startNs    int64
	stopNs     int64
	payload    []byte
	childBegin int // offset of the first child
	next       int // offset just past this scope
}

func (e scopeEvent) durationNs() int64 { return e.stopNs - e.startNs }

// byteSize estimates the memory the scope occupies in a stream.
func (e scopeEvent) byteSize() int {
	return 1 + // '('
		8 + // start
		8 + // id
		1 + len(e.payload) + // payload
		8 + // scope size
		1 + // ')'
		8 // stop
}

// readScopes yields the sibling scopes that start at offset. Iteration stops at
// the end of the stream or at the closing sentinel of the parent scope. A
// framing problem is reported once and ends the sequence.
func readScopes(stream []byte, offset int) iter.Seq2[scopeEvent, error] {
	return func(yield func(scopeEvent, error) bool) {
		pos := offset
		for pos < len(stream) {
			if stream[pos] == scopeEnd {
				return
			}
			ev, err := parseScope(stream, pos)
			if err != nil {
				yield(scopeEvent{}, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
			pos = ev.next
		}
	}
}

func parseScope(stream []byte, pos int) (scopeEvent, error) {
	if stream[pos] != scopeBegin {
		return scopeEvent{}, fmt.Errorf("%w: expected '(' at offset %d, found 0x%02x", errMalformedStream, pos, stream[pos])
	}
	if len(stream)-pos < scopeHeaderSize {
		return scopeEvent{}, fmt.Errorf("%w: truncated scope header at offset %d", errMalformedStream, pos)
	}
	ev := scopeEvent{
		startNs: int64(binary.LittleEndian.Uint64(stream[pos+1:])),
		id:      binary.LittleEndian.Uint64(stream[pos+9:]),
	}
	n := int(stream[pos+17])
	p := pos + scopeHeaderSize
	if len(stream)-p < n+8 {
		return scopeEvent{}, fmt.Errorf("%w: truncated payload at offset %d", errMalformedStream, p)
	}
	ev.payload = stream[p : p+n]
	p += n
	size := binary.LittleEndian.Uint64(stream[p:])
	p += 8
	ev.childBegin = p
	if size > uint64(len(stream)-p) {
		return scopeEvent{}, fmt.Errorf("%w: child section of %d bytes overruns stream at offset %d", errMalformedStream, size, p)
	}
	end := p + int(size)
	if len(stream)-end < scopeTrailerSize || stream[end] != scopeEnd {
		return scopeEvent{}, fmt.Errorf("%w: missing ')' at offset %d", errMalformedStream, end)
	}
	ev.stopNs = int64(binary.LittleEndian.Uint64(stream[end+1:]))
	ev.next = end + scopeTrailerSize
	return ev, nil
}

// streamWriter builds scope streams. Calls to begin and end must nest.
type streamWriter struct {
	buf []byte
}

// begin opens a scope and returns the position to pass to end.
func (w *streamWriter) begin(id uint64, startNs int64, payload string) int {
	if len(payload) > 255 {
		payload = payload[:255]
	}
	w.buf = append(w.buf, scopeBegin)
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(startNs))
	w.buf = binary.LittleEndian.AppendUint64(w.buf, id)
	w.buf = append(w.buf, byte(len(payload)))
	w.buf = append(w.buf, payload...)
	pos := len(w.buf)
	w.buf = binary.LittleEndian.AppendUint64(w.buf, 0) // patched by end
	return pos
}

func (w *streamWriter) end(pos int, stopNs int64) {
	size := len(w.buf) - (pos + 8)
	binary.LittleEndian.PutUint64(w.buf[pos:], uint64(size))
	w.buf = append(w.buf, scopeEnd)
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(stopNs))
}

// scope writes a scope without children.
func (w *streamWriter) scope(id uint64, startNs, stopNs int64, payload string) {
	w.end(w.begin(id, startNs, payload), stopNs)
}

func (w *streamWriter) bytes() []byte { return w.buf }
