package main

import (
	"github.com/rs/zerolog"
)

// statsKey identifies an aggregated row: the same scope on the same thread,
// whichever frame or call position it came from.
type statsKey struct {
	id     uint64
	thread string
}

type scopeStats struct {
	count int
	bytes int
	// Time covered by all scopes, minus the time covered by their children.
	totalSelfNs int64
	totalNs     int64
	// Largest self time of a single invocation.
	maxNs int64
}

func (s scopeStats) meanSelfNs() float64 { return float64(s.totalSelfNs) / float64(s.count) }
func (s scopeStats) meanNs() float64     { return float64(s.totalNs) / float64(s.count) }

type groupedStats struct {
	key      statsKey
	stats    scopeStats
	children scopeList
}

// scopeList is an ordered sibling list with a key index. Sorting drops the
// index; entry rebuilds it.
type scopeList struct {
	nodes []*groupedStats
	index map[statsKey]int
}

// entry finds the node for key, appending a new one if there is none.
func (l *scopeList) entry(key statsKey) *groupedStats {
	if i, ok := l.index[key]; ok {
		return l.nodes[i]
	}
	if l.index == nil {
		l.index = make(map[statsKey]int, len(l.nodes))
		for i, g := range l.nodes {
			l.index[g.key] = i
		}
		if i, ok := l.index[key]; ok {
			return l.nodes[i]
		}
	}
	g := &groupedStats{key: key}
	l.index[key] = len(l.nodes)
	l.nodes = append(l.nodes, g)
	return g
}

type statsTotals struct {
	bytes      int
	ns         int64
	scopes     int
	numThreads int

	// Scopes whose children outlasted them; their self time was clamped to 0.
	clampedScopes int
	// Thread streams abandoned part way because of a decode error.
	brokenStreams int
}

type aggregator struct {
	treeView bool
	logger   zerolog.Logger

	clamped int
}

// processScopes aggregates every thread stream of every frame and sorts the
// result according to opts.
func processScopes(reg scopeRegistry, frames []*frameData, opts *displayOptions, logger zerolog.Logger) ([]*groupedStats, statsTotals) {
	agg := &aggregator{treeView: opts.TreeView, logger: logger}
	threads := make(map[threadInfo]struct{})
	var roots scopeList
	broken := 0

	for _, frame := range frames {
		for _, ti := range frame.sortedThreads() {
			threads[ti] = struct{}{}
			if err := agg.collectStream(&roots, ti.name, frame.threads[ti]); err != nil {
				broken++
				logger.Warn().
					Err(err).
					Uint64("frame", frame.index).
					Str("thread", ti.name).
					Msg("Abandoning rest of thread stream")
			}
		}
	}

	totals := statsTotalsOf(roots.nodes)
	totals.numThreads = len(threads)
	totals.clampedScopes = agg.clamped
	totals.brokenStreams = broken
	if agg.clamped > 0 {
		logger.Warn().
			Int("scopes", agg.clamped).
			Msg("Child scopes outlasted their parent; self time clamped to zero")
	}

	sortGroupedStats(roots.nodes, opts.comparator(reg))
	return roots.nodes, totals
}

func (a *aggregator) collectStream(roots *scopeList, thread string, stream []byte) error {
	for scope, err := range readScopes(stream, 0) {
		if err != nil {
			return err
		}
		if err := a.collectScope(roots, thread, stream, scope); err != nil {
			return err
		}
	}
	return nil
}

// collectScope merges scope into target. Children go into the scope's own
// node in tree view and into target itself otherwise.
func (a *aggregator) collectScope(target *scopeList, thread string, stream []byte, scope scopeEvent) error {
	entry := target.entry(statsKey{id: scope.id, thread: thread})
	childTarget := target
	if a.treeView {
		childTarget = &entry.children
	}

	var childNs int64
	for child, err := range readScopes(stream, scope.childBegin) {
		if err != nil {
			return err
		}
		if err := a.collectScope(childTarget, thread, stream, child); err != nil {
			return err
		}
		childNs += child.durationNs()
	}

	selfNs := scope.durationNs() - childNs
	if selfNs < 0 {
		selfNs = 0
		a.clamped++
	}

	s := &entry.stats
	s.count++
	s.bytes += scope.byteSize()
	s.totalSelfNs += selfNs
	s.totalNs += scope.durationNs()
	s.maxNs = max(s.maxNs, selfNs)
	return nil
}

func statsTotalsOf(nodes []*groupedStats) statsTotals {
	var t statsTotals
	walkStats(nodes, 0, func(g *groupedStats, _ int) {
		t.bytes += g.stats.bytes
		t.ns += g.stats.totalSelfNs
		t.scopes++
	})
	return t
}

// walkStats calls fn for every node, parents before children.
func walkStats(nodes []*groupedStats, depth int, fn func(g *groupedStats, depth int)) {
	for _, g := range nodes {
		fn(g, depth)
		walkStats(g.children.nodes, depth+1, fn)
	}
}
