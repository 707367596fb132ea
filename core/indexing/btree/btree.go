// Package btree implements a concurrent, disk-backed B+Tree index on top
// of the buffer pool, using latch crabbing for correctness under
// multi-reader/multi-writer workloads, per SPEC_FULL.md §4.6.
package btree

import (
	"context"
	"encoding/binary"
	"sort"

	"go.uber.org/zap"

	"github.com/sushant-115/gojodb-storage/core/storage/buffer"
	"github.com/sushant-115/gojodb-storage/core/storage/diskmanager"
)

// BTreeIndex is a generic ordered index over K->V pairs. K and V are
// serialized via the Codecs supplied to New, the same way the teacher's
// node.go took explicit keySerializer/valueSerializer functions rather than
// hard-coding a key/value type.
type BTreeIndex[K any, V any] struct {
	bpm          *buffer.BufferPoolManager
	headerPageID diskmanager.PageID
	cmp          Comparator[K]
	keyCodec     Codec[K]
	valCodec     Codec[V]
	leafMax      int
	internalMax  int
	log          *zap.Logger
}

// New constructs a BTreeIndex over an already-allocated, empty header page.
// Callers typically obtain headerPageID via bpm.NewPage immediately before
// calling New on a fresh tree, or persist/reload it for an existing one.
func New[K any, V any](
	bpm *buffer.BufferPoolManager,
	headerPageID diskmanager.PageID,
	cmp Comparator[K],
	keyCodec Codec[K],
	valCodec Codec[V],
	leafMax, internalMax int,
	log *zap.Logger,
) *BTreeIndex[K, V] {
	return &BTreeIndex[K, V]{
		bpm:          bpm,
		headerPageID: headerPageID,
		cmp:          cmp,
		keyCodec:     keyCodec,
		valCodec:     valCodec,
		leafMax:      leafMax,
		internalMax:  internalMax,
		log:          log,
	}
}

func readRootID(data []byte) diskmanager.PageID {
	return diskmanager.PageID(binary.LittleEndian.Uint64(data[:8]))
}

func writeRootID(data []byte, id diskmanager.PageID) {
	binary.LittleEndian.PutUint64(data[:8], uint64(id))
}

func pageKindOf(data []byte) pageKind {
	return pageKind(data[0])
}

// IsEmpty reports whether the tree currently has no root.
func (t *BTreeIndex[K, V]) IsEmpty(ctx context.Context) bool {
	g := t.bpm.ReadPage(ctx, t.headerPageID)
	defer g.Drop()
	return readRootID(g.Data()) == diskmanager.InvalidPageID
}

// GetRootPageId returns the page id of the tree's current root, or
// diskmanager.InvalidPageID if the tree is empty.
func (t *BTreeIndex[K, V]) GetRootPageId(ctx context.Context) diskmanager.PageID {
	g := t.bpm.ReadPage(ctx, t.headerPageID)
	defer g.Drop()
	return readRootID(g.Data())
}

// GetValue looks up key, returning (value, true) if present.
func (t *BTreeIndex[K, V]) GetValue(ctx context.Context, key K) (V, bool) {
	var zero V
	hg := t.bpm.ReadPage(ctx, t.headerPageID)
	rootID := readRootID(hg.Data())
	if rootID == diskmanager.InvalidPageID {
		hg.Drop()
		return zero, false
	}

	current := rootID
	var prev *buffer.ReadPageGuard
	for {
		g := t.bpm.ReadPage(ctx, current)
		if prev != nil {
			prev.Drop()
		} else {
			hg.Drop()
		}
		prev = g

		if pageKindOf(g.Data()) == leafPageKind {
			lp, err := decodeLeaf[K, V](g.Data(), t.keyCodec, t.valCodec)
			if err != nil {
				t.logError("decode leaf in GetValue", err)
				g.Drop()
				return zero, false
			}
			idx, found := t.search(lp.keys, key)
			g.Drop()
			if !found {
				return zero, false
			}
			return lp.values[idx], true
		}

		ip, err := decodeInternal[K](g.Data(), t.keyCodec)
		if err != nil {
			t.logError("decode internal in GetValue", err)
			g.Drop()
			return zero, false
		}
		current = ip.children[t.childIndex(ip.keys, key)]
	}
}

// search returns (index, true) if key is present in a sorted slice, else
// (insertion point, false).
func (t *BTreeIndex[K, V]) search(keys []K, key K) (int, bool) {
	idx := sort.Search(len(keys), func(i int) bool { return t.cmp(keys[i], key) >= 0 })
	if idx < len(keys) && t.cmp(keys[idx], key) == 0 {
		return idx, true
	}
	return idx, false
}

// childIndex returns which child subtree covers key in an internal page
// whose i-th separator key is keys[i-1] (children[0] covers everything
// less than keys[0]).
func (t *BTreeIndex[K, V]) childIndex(keys []K, key K) int {
	return sort.Search(len(keys), func(i int) bool { return t.cmp(keys[i], key) > 0 })
}

func (t *BTreeIndex[K, V]) logError(msg string, err error) {
	if t.log != nil {
		t.log.Error(msg, zap.Error(err))
	}
}

// Insert adds key->value, returning false without modifying the tree if
// key is already present.
func (t *BTreeIndex[K, V]) Insert(ctx context.Context, key K, value V) bool {
	cc := &latchContext{}
	defer cc.releaseAll()

	hg := t.bpm.WritePage(ctx, t.headerPageID)
	cc.push(hg)
	rootID := readRootID(hg.Data())

	if rootID == diskmanager.InvalidPageID {
		newID := t.bpm.NewPage(ctx)
		lg := t.bpm.WritePage(ctx, newID)
		lp := &leafPage[K, V]{maxSize: t.leafMax, nextPageID: diskmanager.InvalidPageID, keys: []K{key}, values: []V{value}}
		if err := encodeLeaf(lp, lg.Data(), t.keyCodec, t.valCodec); err != nil {
			t.logError("encode new root leaf", err)
			lg.Drop()
			return false
		}
		lg.Drop()
		writeRootID(hg.Data(), newID)
		return true
	}

	current := rootID
	for {
		g := t.bpm.WritePage(ctx, current)
		cc.push(g)

		if pageKindOf(g.Data()) == leafPageKind {
			lp, err := decodeLeaf[K, V](g.Data(), t.keyCodec, t.valCodec)
			if err != nil {
				t.logError("decode leaf in Insert", err)
				return false
			}
			idx, found := t.search(lp.keys, key)
			if found {
				return false
			}
			if len(lp.keys) < lp.maxSize {
				cc.releasePrefix()
				lp.keys = insertAt(lp.keys, idx, key)
				lp.values = insertAt(lp.values, idx, value)
				if err := encodeLeaf(lp, g.Data(), t.keyCodec, t.valCodec); err != nil {
					t.logError("encode leaf in Insert", err)
					return false
				}
				return true
			}
			// Overflow: split and propagate the separator upward.
			lp.keys = insertAt(lp.keys, idx, key)
			lp.values = insertAt(lp.values, idx, value)
			rightID := t.bpm.NewPage(ctx)
			right := &leafPage[K, V]{maxSize: t.leafMax}
			splitAt := (len(lp.keys) + 1) / 2
			right.keys = append(right.keys, lp.keys[splitAt:]...)
			right.values = append(right.values, lp.values[splitAt:]...)
			right.nextPageID = lp.nextPageID
			lp.keys = lp.keys[:splitAt]
			lp.values = lp.values[:splitAt]
			lp.nextPageID = rightID
			if err := encodeLeaf(lp, g.Data(), t.keyCodec, t.valCodec); err != nil {
				t.logError("encode split left leaf", err)
				return false
			}
			rg := t.bpm.WritePage(ctx, rightID)
			if err := encodeLeaf(right, rg.Data(), t.keyCodec, t.valCodec); err != nil {
				t.logError("encode split right leaf", err)
				rg.Drop()
				return false
			}
			rg.Drop()
			t.propagateInsert(ctx, cc, right.keys[0], rightID)
			return true
		}

		ip, err := decodeInternal[K](g.Data(), t.keyCodec)
		if err != nil {
			t.logError("decode internal in Insert", err)
			return false
		}
		if len(ip.children) < ip.maxSize {
			cc.releasePrefix()
		}
		current = ip.children[t.childIndex(ip.keys, key)]
	}
}

// propagateInsert inserts (sepKey, rightID) into the parent of the node
// that just split, splitting that parent in turn if it overflows, and so
// on up the chain of guards still held in cc. If the split reaches the
// root, a new root is created and the header page (still held in cc, since
// it was never prefix-released) is updated.
func (t *BTreeIndex[K, V]) propagateInsert(ctx context.Context, cc *latchContext, sepKey K, rightID diskmanager.PageID) {
	// Drop the child we just finished splitting; its write is already
	// encoded into its own page buffer.
	cc.popLast()

	for {
		parent := cc.last()
		if parent == nil || parent.PageID() == t.headerPageID {
			// No internal ancestor remains: the node that split was the
			// root. Build a new root pointing at the old root and rightID.
			hg := cc.last() // the header guard
			oldRoot := readRootID(hg.Data())
			newRootID := t.bpm.NewPage(ctx)
			root := &internalPage[K]{maxSize: t.internalMax, keys: []K{sepKey}, children: []diskmanager.PageID{oldRoot, rightID}}
			rg := t.bpm.WritePage(ctx, newRootID)
			if err := encodeInternal(root, rg.Data(), t.keyCodec); err != nil {
				t.logError("encode new root", err)
			}
			rg.Drop()
			writeRootID(hg.Data(), newRootID)
			return
		}

		ip, err := decodeInternal[K](parent.Data(), t.keyCodec)
		if err != nil {
			t.logError("decode parent during propagateInsert", err)
			return
		}
		idx := t.childIndex(ip.keys, sepKey)
		ip.keys = insertAt(ip.keys, idx, sepKey)
		ip.children = insertAt(ip.children, idx+1, rightID)

		if len(ip.children) <= ip.maxSize {
			if err := encodeInternal(ip, parent.Data(), t.keyCodec); err != nil {
				t.logError("encode parent during propagateInsert", err)
			}
			return
		}

		// Parent itself overflows: split it and keep propagating.
		splitAt := len(ip.children) / 2
		newSepKey := ip.keys[splitAt-1]
		rightID2 := t.bpm.NewPage(ctx)
		right := &internalPage[K]{maxSize: t.internalMax}
		right.keys = append(right.keys, ip.keys[splitAt:]...)
		right.children = append(right.children, ip.children[splitAt:]...)
		ip.keys = ip.keys[:splitAt-1]
		ip.children = ip.children[:splitAt]

		if err := encodeInternal(ip, parent.Data(), t.keyCodec); err != nil {
			t.logError("encode split-left internal", err)
		}
		rg := t.bpm.WritePage(ctx, rightID2)
		if err := encodeInternal(right, rg.Data(), t.keyCodec); err != nil {
			t.logError("encode split-right internal", err)
		}
		rg.Drop()

		cc.popLast()
		sepKey = newSepKey
		rightID = rightID2
	}
}

func insertAt[T any](s []T, idx int, v T) []T {
	s = append(s, v)
	copy(s[idx+1:], s[idx:len(s)-1])
	s[idx] = v
	return s
}

func removeAt[T any](s []T, idx int) []T {
	return append(s[:idx], s[idx+1:]...)
}
