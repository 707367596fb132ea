package buffer

import (
	"sync/atomic"

	"github.com/sushant-115/gojodb-storage/core/storage/diskmanager"
)

// ReadPageGuard is a scoped, read-latched handle on a pinned frame, per
// SPEC_FULL.md §4.4. Drop releases the latch, unpins the frame, and — once
// the pin count reaches zero — makes the frame evictable again.
type ReadPageGuard struct {
	bpm     *BufferPoolManager
	frame   *frame
	id      FrameID
	pageID  diskmanager.PageID
	dropped atomic.Bool
}

func (g *ReadPageGuard) PageID() diskmanager.PageID { return g.pageID }

func (g *ReadPageGuard) Data() []byte { return g.frame.data }

// Drop releases this guard. Safe to call more than once; only the first
// call has an effect.
func (g *ReadPageGuard) Drop() {
	if !g.dropped.CompareAndSwap(false, true) {
		return
	}
	g.frame.latch.RUnlock()
	g.bpm.unpin(g.id)
}

// WritePageGuard is a scoped, write-latched handle on a pinned frame.
// Acquiring one marks the frame dirty.
type WritePageGuard struct {
	bpm     *BufferPoolManager
	frame   *frame
	id      FrameID
	pageID  diskmanager.PageID
	dropped atomic.Bool
}

func (g *WritePageGuard) PageID() diskmanager.PageID { return g.pageID }

func (g *WritePageGuard) Data() []byte { return g.frame.data }

func (g *WritePageGuard) Drop() {
	if !g.dropped.CompareAndSwap(false, true) {
		return
	}
	g.frame.latch.Unlock()
	g.bpm.unpin(g.id)
}
