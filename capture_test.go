package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureRoundTrip(t *testing.T) {
	reg := testRegistry(map[uint64]string{1: "A", 2: "B", 300: "C"})
	reg.register(4, scopeDetails{name: "D", file: "", line: 0})
	c := &capture{scopes: reg, frames: []*frameData{
		frameOf(5, map[string][]byte{
			"main":   streamOf(scopeNode(1, -5, 100, scopeNode(2, 10, 40))),
			"worker": streamOf(scopeNode(300, 0, 7)),
		}),
		frameOf(6, map[string][]byte{"main": nil}),
	}}
	c.frames[1].threads[threadInfo{name: "main", startNs: 99}] = streamOf(scopeNode(4, 1, 2))

	var buf bytes.Buffer
	require.NoError(t, writeCapture(&buf, c))
	got, err := readCapture(&buf)
	require.NoError(t, err)

	assert.Equal(t, c.scopes.byID, got.scopes.byID)
	require.Len(t, got.frames, 2)
	for i := range c.frames {
		assert.Equal(t, c.frames[i].index, got.frames[i].index)
		require.Len(t, got.frames[i].threads, len(c.frames[i].threads))
		for ti, stream := range c.frames[i].threads {
			assert.Equal(t, len(stream), len(got.frames[i].threads[ti]), "thread %+v", ti)
			assert.True(t, bytes.Equal(stream, got.frames[i].threads[ti]), "thread %+v", ti)
		}
	}

	// New scopes interned after loading do not collide with stored ids.
	assert.Equal(t, uint64(301), got.scopes.intern("E", "e.go"))
}

func TestReadCaptureErrors(t *testing.T) {
	_, err := readCapture(bytes.NewReader([]byte("nope")))
	assert.ErrorContains(t, err, "bad magic")

	var buf bytes.Buffer
	require.NoError(t, writeCapture(&buf, scenarioCapture()))
	full := buf.Bytes()
	for _, n := range []int{len(captureMagic), len(captureMagic) + 3, len(full) - 1} {
		_, err := readCapture(bytes.NewReader(full[:n]))
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "truncated at %d: %v", n, err)
	}
}

func TestReadCaptureHugeLengthPrefix(t *testing.T) {
	// One scope whose name claims 512 MiB but carries three bytes.
	data := []byte(captureMagic)
	data = binary.AppendUvarint(data, 1)
	data = binary.AppendUvarint(data, 7)
	data = binary.AppendUvarint(data, 512<<20)
	data = append(data, "abc"...)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := readCapture(bytes.NewReader(data))
	runtime.ReadMemStats(&after)

	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "%v", err)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20))
}

func TestScopeRegistryIntern(t *testing.T) {
	reg := newScopeCollection()
	a := reg.intern("run", "App")
	b := reg.intern("work", "App")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, reg.intern("run", "App"))
	assert.NotEqual(t, a, reg.intern("run", "Other"))

	d, ok := reg.resolve(b)
	require.True(t, ok)
	assert.Equal(t, "work", d.name)
	_, ok = reg.resolve(12345)
	assert.False(t, ok)
}

func TestScopeLocation(t *testing.T) {
	assert.Equal(t, "a.go:3", scopeDetails{file: "a.go", line: 3}.location())
	assert.Equal(t, "a.go", scopeDetails{file: "a.go"}.location())
}

func TestCaptureSelection(t *testing.T) {
	reg := testRegistry(map[uint64]string{1: "A"})
	c := &capture{scopes: reg}
	for i := range 4 {
		c.frames = append(c.frames, frameOf(uint64(i), map[string][]byte{
			"render": streamOf(scopeNode(1, 0, 10)),
			"audio":  streamOf(scopeNode(1, 0, 10)),
		}))
	}

	last := c.lastFrames(2)
	require.Len(t, last.frames, 2)
	assert.Equal(t, uint64(2), last.frames[0].index)
	assert.Len(t, c.lastFrames(0).frames, 4)
	assert.Len(t, c.lastFrames(10).frames, 4)

	rendered := c.filterByThread("rend")
	require.Len(t, rendered.frames, 4)
	for _, f := range rendered.frames {
		assert.Len(t, f.threads, 1)
	}
	assert.Same(t, c, c.filterByThread(""))
}

func TestSortedThreads(t *testing.T) {
	f := newFrame(0)
	f.threads[threadInfo{name: "b", startNs: 1}] = nil
	f.threads[threadInfo{name: "a", startNs: 9}] = nil
	f.threads[threadInfo{name: "a", startNs: 2}] = nil
	assert.Equal(t, []threadInfo{{"a", 2}, {"a", 9}, {"b", 1}}, f.sortedThreads())
}
