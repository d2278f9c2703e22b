// Package toolindex owns tool invocations keyed by invocation id.
//
// An Index is not safe for concurrent use.
package toolindex

import (
	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
)

// Index keeps invocations in recording order.
type Index struct {
	items []*core.ToolInvocation
	byID  map[core.InvocationID]int
}

// New creates an empty index.
func New() *Index {
	return &Index{byID: make(map[core.InvocationID]int)}
}

// Record inserts inv, or overwrites the entry with the same id in place.
// The last write wins and the original position is kept.
func (x *Index) Record(inv *core.ToolInvocation) {
	if inv == nil || inv.ID == "" {
		return
	}
	c := inv.Clone()
	if idx, ok := x.byID[inv.ID]; ok {
		x.items[idx] = c
		return
	}
	x.byID[inv.ID] = len(x.items)
	x.items = append(x.items, c)
}

// Get returns a copy of the invocation with id.
func (x *Index) Get(id core.InvocationID) (*core.ToolInvocation, bool) {
	idx, ok := x.byID[id]
	if !ok {
		return nil, false
	}
	return x.items[idx].Clone(), true
}

// Has reports whether id has been recorded.
func (x *Index) Has(id core.InvocationID) bool {
	_, ok := x.byID[id]
	return ok
}

// List returns copies of all invocations in recording order.
func (x *Index) List() []*core.ToolInvocation {
	out := make([]*core.ToolInvocation, len(x.items))
	for i, inv := range x.items {
		out[i] = inv.Clone()
	}
	return out
}

// Latest returns the most recently recorded invocation.
func (x *Index) Latest() (*core.ToolInvocation, bool) {
	if len(x.items) == 0 {
		return nil, false
	}
	return x.items[len(x.items)-1].Clone(), true
}

// Len returns the number of recorded invocations.
func (x *Index) Len() int {
	return len(x.items)
}
