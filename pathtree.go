package main

// pathTree folds the sampled stacks of one thread into a call tree. Children
// keep the order in which they were first seen.
type pathTree struct {
	frame       string
	samples     int // samples in this subtree
	selfSamples int // samples where this frame was the leaf
	children    []*pathTree
	index       map[string]int
}

func (pt *pathTree) child(frame string) *pathTree {
	if i, ok := pt.index[frame]; ok {
		return pt.children[i]
	}
	if pt.index == nil {
		pt.index = make(map[string]int)
	}
	c := &pathTree{frame: frame}
	pt.index[frame] = len(pt.children)
	pt.children = append(pt.children, c)
	return c
}

// add records count samples of a root → leaf stack.
func (pt *pathTree) add(frames []string, count int) {
	pt.samples += count
	node := pt
	for _, fr := range frames {
		node = node.child(fr)
		node.samples += count
	}
	node.selfSamples += count
}

// emit writes the children of pt as nested scopes starting at startNs. Every
// node lasts samples*intervalNs and its children are laid out back to back
// from its start, so a node's self time is selfSamples*intervalNs.
func (pt *pathTree) emit(w *streamWriter, scopes *scopeCollection, startNs, intervalNs int64) {
	cursor := startNs
	for _, c := range pt.children {
		id := scopes.intern(shortName(c.frame), className(c.frame))
		stop := cursor + int64(c.samples)*intervalNs
		if len(c.children) == 0 {
			w.scope(id, cursor, stop, "")
		} else {
			pos := w.begin(id, cursor, "")
			c.emit(w, scopes, cursor, intervalNs)
			w.end(pos, stop)
		}
		cursor = stop
	}
}
