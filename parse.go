package main

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/grafana/jfr-parser/parser"
	"github.com/grafana/jfr-parser/parser/types"
)

// ---------------------------------------------------------------------------
// Sampled stacks
// ---------------------------------------------------------------------------

type stack struct {
	frames []string // root → leaf order
	count  int
	thread string // "" if unknown
}

type stackFile struct {
	stacks       []stack
	totalSamples int
}

const noThreadName = "(no thread info)"

// toCapture turns sampled stacks into a single frame of nested scopes, one
// stream per thread, where each sample stands for intervalNs of time.
func (sf *stackFile) toCapture(intervalNs int64) *capture {
	c := &capture{scopes: newScopeCollection()}
	trees := make(map[string]*pathTree)
	var order []string
	for i := range sf.stacks {
		st := &sf.stacks[i]
		thread := st.thread
		if thread == "" {
			thread = noThreadName
		}
		pt, ok := trees[thread]
		if !ok {
			pt = &pathTree{}
			trees[thread] = pt
			order = append(order, thread)
		}
		pt.add(st.frames, st.count)
	}

	f := newFrame(0)
	for _, thread := range order {
		var w streamWriter
		trees[thread].emit(&w, c.scopes, 0, intervalNs)
		f.threads[threadInfo{name: thread}] = w.bytes()
	}
	c.frames = append(c.frames, f)
	return c
}

// ---------------------------------------------------------------------------
// JFR → stackFile
// ---------------------------------------------------------------------------

func resolveFrame(p *parser.Parser, sf types.StackFrame) string {
	method := p.GetMethod(sf.Method)
	if method == nil {
		return "<unknown>"
	}
	className := ""
	class := p.GetClass(method.Type)
	if class != nil {
		className = p.GetSymbolString(class.Name)
	}
	methodName := p.GetSymbolString(method.Name)
	if className == "" {
		return methodName
	}
	return className + "." + methodName
}

func resolveThread(p *parser.Parser, ref types.ThreadRef) string {
	idx, ok := p.Threads.IDMap[ref]
	if !ok {
		return ""
	}
	t := &p.Threads.Thread[idx]
	if t.JavaName != "" {
		return t.JavaName
	}
	return t.OsName
}

func readJFRBytes(path string) ([]byte, error) {
	rc, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// sampleRefs returns the stack and thread of the event just parsed when it is
// of the selected kind. typ is the type id returned by ParseEvent.
func sampleRefs(p *parser.Parser, typ any, eventType string) (types.StackTraceRef, types.ThreadRef, bool) {
	switch {
	case eventType == "cpu" && typ == p.TypeMap.T_EXECUTION_SAMPLE:
		return p.ExecutionSample.StackTrace, p.ExecutionSample.SampledThread, true
	case eventType == "wall" && typ == p.TypeMap.T_WALL_CLOCK_SAMPLE:
		return p.WallClockSample.StackTrace, p.WallClockSample.SampledThread, true
	case eventType == "alloc" && typ == p.TypeMap.T_ALLOC_IN_NEW_TLAB:
		return p.ObjectAllocationInNewTLAB.StackTrace, p.ObjectAllocationInNewTLAB.EventThread, true
	case eventType == "alloc" && typ == p.TypeMap.T_ALLOC_OUTSIDE_TLAB:
		return p.ObjectAllocationOutsideTLAB.StackTrace, p.ObjectAllocationOutsideTLAB.EventThread, true
	case eventType == "alloc" && typ == p.TypeMap.T_ALLOC_SAMPLE:
		return p.ObjectAllocationSample.StackTrace, p.ObjectAllocationSample.EventThread, true
	case eventType == "lock" && typ == p.TypeMap.T_MONITOR_ENTER:
		return p.JavaMonitorEnter.StackTrace, p.JavaMonitorEnter.EventThread, true
	}
	return 0, 0, false
}

func parseJFR(path, eventType string) (*stackFile, error) {
	buf, err := readJFRBytes(path)
	if err != nil {
		return nil, err
	}

	type aggKey struct {
		frames string
		thread string
	}
	p := parser.NewParser(buf, parser.Options{})
	agg := make(map[aggKey]int)
	var order []aggKey
	frames := make(map[aggKey][]string)

	for {
		typ, err := p.ParseEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse event: %w", err)
		}
		stRef, thRef, ok := sampleRefs(p, typ, eventType)
		if !ok {
			continue
		}
		st := p.GetStacktrace(stRef)
		if st == nil || len(st.Frames) == 0 {
			continue
		}

		// JFR frames are leaf-first.
		n := len(st.Frames)
		parts := make([]string, n)
		for i, f := range st.Frames {
			parts[n-1-i] = resolveFrame(p, f)
		}
		key := aggKey{frames: strings.Join(parts, ";"), thread: resolveThread(p, thRef)}
		if _, seen := agg[key]; !seen {
			order = append(order, key)
			frames[key] = parts
		}
		agg[key]++
	}

	sf := &stackFile{}
	for _, k := range order {
		sf.stacks = append(sf.stacks, stack{frames: frames[k], count: agg[k], thread: k.thread})
		sf.totalSamples += agg[k]
	}
	return sf, nil
}

// discoverEvents counts the supported sample events of a JFR recording.
func discoverEvents(path string) (map[string]int, error) {
	buf, err := readJFRBytes(path)
	if err != nil {
		return nil, err
	}

	p := parser.NewParser(buf, parser.Options{})
	counts := make(map[string]int)
	for {
		typ, err := p.ParseEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, ev := range []string{"cpu", "wall", "alloc", "lock"} {
			if _, _, ok := sampleRefs(p, typ, ev); ok {
				counts[ev]++
				break
			}
		}
	}
	return counts, nil
}

// ---------------------------------------------------------------------------
// Collapsed-stack text → stackFile
// ---------------------------------------------------------------------------

// openReader opens a file for reading, handling gzip and stdin ("-").
func openReader(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return &gzipReadCloser{gz: gr, f: f}, nil
	}
	return f, nil
}

type gzipReadCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }
func (g *gzipReadCloser) Close() error {
	g.gz.Close()
	return g.f.Close()
}

var (
	collapsedLineRe  = regexp.MustCompile(`^(.+)\s+(\d+)$`)
	threadFrameRe    = regexp.MustCompile(`^\[(.+?)(?:\s+tid=\d+)?\]$`)
	annotatedFrameRe = regexp.MustCompile(`^(.+?):(\d+)(?:_\[[^\]]*\])?$`)
)

func parseCollapsed(r io.Reader) (*stackFile, error) {
	sf := &stackFile{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		m := collapsedLineRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		count, _ := strconv.Atoi(m[2])
		if count <= 0 {
			continue
		}

		parts := strings.Split(m[1], ";")
		thread := ""
		if tm := threadFrameRe.FindStringSubmatch(parts[0]); tm != nil {
			thread = tm[1]
			parts = parts[1:]
		}
		frames := make([]string, 0, len(parts))
		for _, part := range parts {
			// Line annotations would split one method into many scopes.
			if am := annotatedFrameRe.FindStringSubmatch(part); am != nil {
				part = am[1]
			}
			frames = append(frames, part)
		}
		if len(frames) == 0 {
			continue
		}

		sf.stacks = append(sf.stacks, stack{frames: frames, count: count, thread: thread})
		sf.totalSamples += count
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sf, nil
}

// ---------------------------------------------------------------------------
// Unified input
// ---------------------------------------------------------------------------

func isJFRPath(path string) bool {
	if path == "-" {
		return false
	}
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".jfr") || strings.HasSuffix(p, ".jfr.gz")
}

type inputOptions struct {
	eventType string
	interval  time.Duration
}

// openInput loads a capture file, or imports a JFR recording or collapsed
// stacks as a one-frame capture.
func openInput(path string, in inputOptions) (*capture, error) {
	switch {
	case isCapturePath(path):
		rc, err := openReader(path)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return readCapture(rc)
	case isJFRPath(path):
		sf, err := parseJFR(path, in.eventType)
		if err != nil {
			return nil, err
		}
		return sf.toCapture(in.interval.Nanoseconds()), nil
	}
	rc, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	sf, err := parseCollapsed(rc)
	if err != nil {
		return nil, err
	}
	return sf.toCapture(in.interval.Nanoseconds()), nil
}
