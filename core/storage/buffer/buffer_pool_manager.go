// Package buffer implements the fixed-capacity buffer pool of
// SPEC_FULL.md §4.3-§4.4: a page table over a fixed array of frames, backed
// by a disk scheduler and an LRU-K replacer, exposing latched page guards.
package buffer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sushant-115/gojodb-storage/core/storage/diskmanager"
	"github.com/sushant-115/gojodb-storage/core/storage/diskscheduler"
	"github.com/sushant-115/gojodb-storage/core/storage/replacer"
)

// BufferPoolManager owns a fixed set of frames, the page table, the free
// list, an LRU-K replacer, and a disk scheduler, all behind one pool latch.
type BufferPoolManager struct {
	mu        sync.Mutex
	frames    []*frame
	freeList  []FrameID
	pageTable map[diskmanager.PageID]FrameID

	scheduler *diskscheduler.DiskScheduler
	replacer  *replacer.LRUKReplacer
	log       *zap.Logger
	metrics   Metrics
	pageSize  int
}

// Config bundles the buffer pool's construction parameters.
type Config struct {
	NumFrames int
	KDist     int
	PageSize  int
}

func New(cfg Config, sched *diskscheduler.DiskScheduler, log *zap.Logger, metrics Metrics) *BufferPoolManager {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	bpm := &BufferPoolManager{
		frames:    make([]*frame, cfg.NumFrames),
		freeList:  make([]FrameID, 0, cfg.NumFrames),
		pageTable: make(map[diskmanager.PageID]FrameID, cfg.NumFrames),
		scheduler: sched,
		replacer:  replacer.New(cfg.KDist),
		log:       log,
		metrics:   metrics,
		pageSize:  cfg.PageSize,
	}
	for i := 0; i < cfg.NumFrames; i++ {
		bpm.frames[i] = newFrame(cfg.PageSize)
		bpm.freeList = append(bpm.freeList, FrameID(i))
	}
	return bpm
}

func (bpm *BufferPoolManager) PageSize() int { return bpm.pageSize }

// NewPage allocates a new page id by extending the backing store's capacity.
// It never fails by contract (SPEC_FULL.md §4.3); a disk-space failure is a
// fatal I/O error, logged and surfaced as the zero PageID.
func (bpm *BufferPoolManager) NewPage(ctx context.Context) diskmanager.PageID {
	// The disk manager's own page count is authoritative; it is what
	// IncreaseDiskSpace advances regardless of the watermark argument.
	id, err := bpm.scheduler.IncreaseDiskSpace(0)
	if err != nil {
		bpm.log.Error("failed to extend disk space for new page", zap.Error(err))
		return diskmanager.InvalidPageID
	}
	return id
}

// CheckedReadPage acquires a read guard on page id, or returns false when no
// frame can be made available.
func (bpm *BufferPoolManager) CheckedReadPage(ctx context.Context, id diskmanager.PageID) (*ReadPageGuard, bool) {
	f, fid, ok := bpm.fetch(ctx, id)
	if !ok {
		return nil, false
	}
	f.latch.RLock()
	return &ReadPageGuard{bpm: bpm, frame: f, id: fid, pageID: id}, true
}

// CheckedWritePage acquires a write guard on page id, or returns false when
// no frame can be made available.
func (bpm *BufferPoolManager) CheckedWritePage(ctx context.Context, id diskmanager.PageID) (*WritePageGuard, bool) {
	f, fid, ok := bpm.fetch(ctx, id)
	if !ok {
		return nil, false
	}
	f.latch.Lock()
	f.dirty = true
	return &WritePageGuard{bpm: bpm, frame: f, id: fid, pageID: id}, true
}

// ReadPage/WritePage are test-convenience variants that panic on pool
// exhaustion, matching SPEC_FULL.md §4.3's "abort the process" contract.
func (bpm *BufferPoolManager) ReadPage(ctx context.Context, id diskmanager.PageID) *ReadPageGuard {
	g, ok := bpm.CheckedReadPage(ctx, id)
	if !ok {
		panic("buffer: ReadPage: pool exhausted")
	}
	return g
}

func (bpm *BufferPoolManager) WritePage(ctx context.Context, id diskmanager.PageID) *WritePageGuard {
	g, ok := bpm.CheckedWritePage(ctx, id)
	if !ok {
		panic("buffer: WritePage: pool exhausted")
	}
	return g
}

// fetch implements the three-case algorithm of SPEC_FULL.md §4.3. The pool
// latch is held for the whole call, including across the blocking disk I/O
// on a miss: releasing it around the I/O would let a concurrent fetch of the
// same page re-pin the frame mid-eviction, or the evictor race a delete or
// flush of the very frame it just unlocked. Page-table/pin-count/dirty
// invariants are only safe under one latch held start to finish, matching
// how the reference buffer pool manager holds its pool latch across the
// equivalent I/O.
func (bpm *BufferPoolManager) fetch(ctx context.Context, id diskmanager.PageID) (*frame, FrameID, bool) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if fid, ok := bpm.pageTable[id]; ok {
		f := bpm.frames[fid]
		f.pinCount.Add(1)
		bpm.replacer.RecordAccess(replacer.FrameID(fid))
		bpm.replacer.SetEvictable(replacer.FrameID(fid), false)
		bpm.metrics.RecordHit()
		return f, fid, true
	}
	bpm.metrics.RecordMiss()

	fid, f, ok := bpm.acquireFrame(ctx)
	if !ok {
		return nil, 0, false
	}

	req := &diskscheduler.Request{Dir: diskscheduler.DirRead, PageID: id, Data: f.data}
	if err := bpm.scheduler.Schedule(ctx, req); err != nil {
		bpm.log.Error("read failed while fetching page", zap.Uint64("page_id", uint64(id)), zap.Error(err))
	}

	f.pageID = id
	f.pinCount.Store(1)
	f.dirty = false
	bpm.pageTable[id] = fid
	bpm.replacer.RecordAccess(replacer.FrameID(fid))
	bpm.replacer.SetEvictable(replacer.FrameID(fid), false)
	return f, fid, true
}

// acquireFrame returns a frame ready to be reused, from the free list or by
// evicting a replacer victim, flushing it first if dirty. Caller holds mu
// for the whole call, including the write-back.
func (bpm *BufferPoolManager) acquireFrame(ctx context.Context) (FrameID, *frame, bool) {
	for {
		if n := len(bpm.freeList); n > 0 {
			fid := bpm.freeList[n-1]
			bpm.freeList = bpm.freeList[:n-1]
			return fid, bpm.frames[fid], true
		}

		victim, ok := bpm.replacer.Evict()
		if !ok {
			return 0, nil, false
		}
		fid := FrameID(victim)
		f := bpm.frames[fid]

		if f.dirty {
			req := &diskscheduler.Request{Dir: diskscheduler.DirWrite, PageID: f.pageID, Data: f.data}
			if err := bpm.scheduler.Schedule(ctx, req); err != nil {
				bpm.log.Error("write-back of victim frame failed", zap.Uint64("page_id", uint64(f.pageID)), zap.Error(err))
			}
		}
		bpm.metrics.RecordEviction()
		delete(bpm.pageTable, f.pageID)
		f.reset()
		bpm.freeList = append(bpm.freeList, fid)
		// Loop back to pop it off the free list through the normal path.
	}
}

// DeletePage evicts page id from the pool. Returns false if the page is
// pinned; true if it was not resident or was successfully deleted. The pool
// latch is held across the write-back so a concurrent fetch cannot re-pin
// the frame while it is being torn down.
func (bpm *BufferPoolManager) DeletePage(ctx context.Context, id diskmanager.PageID) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	fid, ok := bpm.pageTable[id]
	if !ok {
		return true
	}
	f := bpm.frames[fid]
	if f.pinCount.Load() > 0 {
		return false
	}

	if f.dirty {
		req := &diskscheduler.Request{Dir: diskscheduler.DirWrite, PageID: f.pageID, Data: f.data}
		if err := bpm.scheduler.Schedule(ctx, req); err != nil {
			bpm.log.Error("write-back before delete failed", zap.Uint64("page_id", uint64(id)), zap.Error(err))
		}
	}

	delete(bpm.pageTable, id)
	_ = bpm.replacer.Remove(replacer.FrameID(fid))
	f.reset()
	bpm.freeList = append(bpm.freeList, fid)
	return true
}

// FlushPage writes page id back to disk if it is resident and dirty. The
// pool latch is held across the write so a concurrent fetch or eviction of
// this frame cannot interleave with the write-back it is racing to observe.
func (bpm *BufferPoolManager) FlushPage(ctx context.Context, id diskmanager.PageID) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	fid, ok := bpm.pageTable[id]
	if !ok {
		return false
	}
	f := bpm.frames[fid]
	if !f.dirty {
		return true
	}
	req := &diskscheduler.Request{Dir: diskscheduler.DirWrite, PageID: f.pageID, Data: f.data}
	if err := bpm.scheduler.Schedule(ctx, req); err != nil {
		bpm.log.Error("flush failed", zap.Uint64("page_id", uint64(id)), zap.Error(err))
		return false
	}

	f.dirty = false
	return true
}

// FlushAllPages applies FlushPage to every resident page.
func (bpm *BufferPoolManager) FlushAllPages(ctx context.Context) {
	bpm.mu.Lock()
	ids := make([]diskmanager.PageID, 0, len(bpm.pageTable))
	for id := range bpm.pageTable {
		ids = append(ids, id)
	}
	bpm.mu.Unlock()

	for _, id := range ids {
		bpm.FlushPage(ctx, id)
	}
}

// GetPinCount returns the pin count of page id if resident.
func (bpm *BufferPoolManager) GetPinCount(id diskmanager.PageID) (int32, bool) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	fid, ok := bpm.pageTable[id]
	if !ok {
		return 0, false
	}
	return bpm.frames[fid].pinCount.Load(), true
}

// unpin is called by page guards on Drop; when the pin count reaches zero
// the frame becomes a candidate for eviction again.
func (bpm *BufferPoolManager) unpin(fid FrameID) {
	bpm.mu.Lock()
	f := bpm.frames[fid]
	if f.pinCount.Add(-1) == 0 {
		bpm.replacer.SetEvictable(replacer.FrameID(fid), true)
	}
	bpm.mu.Unlock()
}
