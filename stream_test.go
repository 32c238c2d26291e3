package main

import (
	"errors"
	"testing"
)

func collectScopes(t *testing.T, stream []byte, offset int) ([]scopeEvent, error) {
	t.Helper()
	var out []scopeEvent
	for ev, err := range readScopes(stream, offset) {
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func TestReadScopesSiblingsAndChildren(t *testing.T) {
	stream := streamOf(
		scopeNode(1, 0, 100, scopeNode(2, 10, 40), scopeNode(3, 50, 70)),
		scopeNode(4, 100, 120),
	)
	top, err := collectScopes(t, stream, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d top-level scopes, want 2", len(top))
	}
	if top[0].id != 1 || top[0].durationNs() != 100 {
		t.Errorf("first scope = id %d dur %d, want id 1 dur 100", top[0].id, top[0].durationNs())
	}
	if top[1].id != 4 || top[1].startNs != 100 || top[1].stopNs != 120 {
		t.Errorf("second scope = %+v", top[1])
	}

	children, err := collectScopes(t, stream, top[0].childBegin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) != 2 || children[0].id != 2 || children[1].id != 3 {
		t.Fatalf("children = %+v, want ids 2, 3", children)
	}

	leaf, err := collectScopes(t, stream, children[0].childBegin)
	if err != nil || len(leaf) != 0 {
		t.Errorf("leaf children = %v, %v; want none", leaf, err)
	}
}

func TestReadScopesEmptyStream(t *testing.T) {
	got, err := collectScopes(t, nil, 0)
	if err != nil || len(got) != 0 {
		t.Errorf("empty stream gave %v, %v", got, err)
	}
}

func TestReadScopesPayload(t *testing.T) {
	var w streamWriter
	w.scope(7, 5, 9, "hello")
	got, err := collectScopes(t, w.bytes(), 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("got %v, %v", got, err)
	}
	if string(got[0].payload) != "hello" {
		t.Errorf("payload = %q", got[0].payload)
	}
	if got[0].byteSize() != 35+5 {
		t.Errorf("byteSize = %d, want 40", got[0].byteSize())
	}
}

func TestStreamWriterTruncatesLongPayload(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	var w streamWriter
	w.scope(1, 0, 1, string(long))
	got, err := collectScopes(t, w.bytes(), 0)
	if err != nil || len(got) != 1 || len(got[0].payload) != 255 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestReadScopesMalformed(t *testing.T) {
	good := streamOf(scopeNode(1, 0, 10, scopeNode(2, 1, 5)))

	tests := []struct {
		name   string
		stream []byte
	}{
		{"bad tag", []byte{'x', 0, 0}},
		{"truncated header", good[:10]},
		{"truncated children", good[:len(good)-12]},
		{"missing trailer", good[:len(good)-4]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := collectScopes(t, tt.stream, 0)
			if !errors.Is(err, errMalformedStream) {
				t.Errorf("err = %v, want errMalformedStream", err)
			}
		})
	}
}

func TestReadScopesStopsEarly(t *testing.T) {
	stream := streamOf(scopeNode(1, 0, 1), scopeNode(2, 1, 2), scopeNode(3, 2, 3))
	n := 0
	for range readScopes(stream, 0) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterated %d scopes, want 2", n)
	}
}
