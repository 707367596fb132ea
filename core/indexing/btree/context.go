package btree

import "github.com/sushant-115/gojodb-storage/core/storage/diskmanager"

// guard is the subset ReadPageGuard and WritePageGuard both expose.
// latchContext holds this interface instead of either concrete type so the same
// crabbing machinery drives both read-only and mutating descents.
type guard interface {
	Drop()
	Data() []byte
	PageID() diskmanager.PageID
}

// latchContext is the per-operation FIFO of latches acquired root-to-leaf during
// a descent, per SPEC_FULL.md §9 ("latch crabbing ... a sequence of scoped
// acquisitions owned by a per-operation context; the context releases the
// prefix eagerly once safety is known"). Guards are pushed in acquisition
// order; releasePrefix drops everything except the most recently pushed
// guard once the current page is known safe, and releaseAll drops
// everything on return.
type latchContext struct {
	guards []guard
}

func (c *latchContext) push(g guard) {
	c.guards = append(c.guards, g)
}

// releasePrefix drops every guard except the last, front-to-back, matching
// the ordered-container-with-front-popping idiom SPEC_FULL.md §9 calls for.
func (c *latchContext) releasePrefix() {
	if len(c.guards) <= 1 {
		return
	}
	for _, g := range c.guards[:len(c.guards)-1] {
		g.Drop()
	}
	c.guards = c.guards[len(c.guards)-1:]
}

// releaseAll drops every held guard, in acquisition order, and is called on
// every exit path of an operation.
func (c *latchContext) releaseAll() {
	for _, g := range c.guards {
		g.Drop()
	}
	c.guards = nil
}

// popLast drops and removes the most recently pushed guard, used while
// unwinding a split/merge propagation back up toward the root.
func (c *latchContext) popLast() {
	if len(c.guards) == 0 {
		return
	}
	last := c.guards[len(c.guards)-1]
	last.Drop()
	c.guards = c.guards[:len(c.guards)-1]
}

// last returns the most recently pushed guard without removing it, or nil
// if the context is empty.
func (c *latchContext) last() guard {
	if len(c.guards) == 0 {
		return nil
	}
	return c.guards[len(c.guards)-1]
}

// parent returns the guard one level above the last, i.e. the node that
// would receive a propagated split/merge from the current node, or nil if
// there is no such ancestor left in the context.
func (c *latchContext) parent() guard {
	if len(c.guards) < 2 {
		return nil
	}
	return c.guards[len(c.guards)-2]
}
