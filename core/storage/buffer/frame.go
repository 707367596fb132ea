package buffer

import (
	"sync"
	"sync/atomic"

	"github.com/sushant-115/gojodb-storage/core/storage/diskmanager"
)

// FrameID is a dense index into the pool's frame array, [0, num_frames).
type FrameID int

// frame is a buffer-pool slot: a byte buffer plus the bookkeeping needed to
// decide eviction and durability, per SPEC_FULL.md §3.
type frame struct {
	data     []byte
	pageID   diskmanager.PageID
	pinCount atomic.Int32
	dirty    bool

	// latch guards this frame's bytes; page guards are the only holders.
	latch sync.RWMutex
}

func newFrame(pageSize int) *frame {
	return &frame{data: make([]byte, pageSize), pageID: diskmanager.InvalidPageID}
}

func (f *frame) reset() {
	f.pageID = diskmanager.InvalidPageID
	f.pinCount.Store(0)
	f.dirty = false
	for i := range f.data {
		f.data[i] = 0
	}
}
