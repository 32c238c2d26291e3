package main

import (
	"cmp"
	"slices"
	"strings"
)

// threadInfo identifies a thread. Two threads may share a name; the start time
// tells them apart.
type threadInfo struct {
	name    string
	startNs int64
}

// frameData is one captured frame: a scope stream per thread. Frames are
// shared read-only between commands and never modified after loading.
type frameData struct {
	index   uint64
	threads map[threadInfo][]byte
}

func newFrame(index uint64) *frameData {
	return &frameData{index: index, threads: make(map[threadInfo][]byte)}
}

// sortedThreads returns the frame's threads ordered by name, then start time.
func (f *frameData) sortedThreads() []threadInfo {
	out := make([]threadInfo, 0, len(f.threads))
	for ti := range f.threads {
		out = append(out, ti)
	}
	slices.SortFunc(out, func(a, b threadInfo) int {
		if c := strings.Compare(a.name, b.name); c != 0 {
			return c
		}
		return cmp.Compare(a.startNs, b.startNs)
	})
	return out
}

// capture is everything a command needs: the registry and the frames.
type capture struct {
	scopes *scopeCollection
	frames []*frameData
}

// filterByThread keeps only the thread streams whose name contains thread.
func (c *capture) filterByThread(thread string) *capture {
	if thread == "" {
		return c
	}
	out := &capture{scopes: c.scopes}
	for _, f := range c.frames {
		nf := newFrame(f.index)
		for ti, stream := range f.threads {
			if strings.Contains(ti.name, thread) {
				nf.threads[ti] = stream
			}
		}
		out.frames = append(out.frames, nf)
	}
	return out
}

// lastFrames keeps the n most recent frames; n <= 0 keeps all.
func (c *capture) lastFrames(n int) *capture {
	if n <= 0 || n >= len(c.frames) {
		return c
	}
	return &capture{scopes: c.scopes, frames: c.frames[len(c.frames)-n:]}
}
