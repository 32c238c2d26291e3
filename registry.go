package main

import "fmt"

// scopeDetails is the static description of an instrumentation point.
type scopeDetails struct {
	name string
	file string
	line uint32
}

func (d scopeDetails) location() string {
	if d.line > 0 {
		return fmt.Sprintf("%s:%d", d.file, d.line)
	}
	return d.file
}

// scopeRegistry maps scope ids to their details. Lookups may miss, e.g. when a
// capture references a scope whose registration was never recorded.
type scopeRegistry interface {
	resolve(id uint64) (scopeDetails, bool)
}

type scopeCollection struct {
	byID   map[uint64]scopeDetails
	byName map[string]uint64 // name + "\x00" + file, for interning
	nextID uint64
}

func newScopeCollection() *scopeCollection {
	return &scopeCollection{
		byID:   make(map[uint64]scopeDetails),
		byName: make(map[string]uint64),
		nextID: 1,
	}
}

func (c *scopeCollection) resolve(id uint64) (scopeDetails, bool) {
	d, ok := c.byID[id]
	return d, ok
}

func (c *scopeCollection) register(id uint64, d scopeDetails) {
	c.byID[id] = d
	c.byName[d.name+"\x00"+d.file] = id
	if id >= c.nextID {
		c.nextID = id + 1
	}
}

// intern returns the id registered for (name, file), registering a new one if
// needed.
func (c *scopeCollection) intern(name, file string) uint64 {
	if id, ok := c.byName[name+"\x00"+file]; ok {
		return id
	}
	id := c.nextID
	c.register(id, scopeDetails{name: name, file: file})
	return id
}

func (c *scopeCollection) len() int { return len(c.byID) }
