package btree

import (
	"context"

	"github.com/sushant-115/gojodb-storage/core/storage/diskmanager"
)

// IndexIterator walks the leaf chain in key order. A zero-value iterator
// (from End) is always exhausted.
type IndexIterator[K any, V any] struct {
	t        *BTreeIndex[K, V]
	ctx      context.Context
	pageID   diskmanager.PageID
	keys     []K
	values   []V
	pos      int
	nextPage diskmanager.PageID
}

// Begin returns an iterator positioned at the smallest key in the tree.
func (t *BTreeIndex[K, V]) Begin(ctx context.Context) *IndexIterator[K, V] {
	hg := t.bpm.ReadPage(ctx, t.headerPageID)
	rootID := readRootID(hg.Data())
	if rootID == diskmanager.InvalidPageID {
		hg.Drop()
		return &IndexIterator[K, V]{t: t, ctx: ctx}
	}

	current := rootID
	var prevGuard guard = hg
	for {
		g := t.bpm.ReadPage(ctx, current)
		prevGuard.Drop()
		prevGuard = g

		if pageKindOf(g.Data()) == leafPageKind {
			lp, err := decodeLeaf[K, V](g.Data(), t.keyCodec, t.valCodec)
			g.Drop()
			if err != nil {
				t.logError("decode leaf in Begin", err)
				return &IndexIterator[K, V]{t: t, ctx: ctx}
			}
			return &IndexIterator[K, V]{t: t, ctx: ctx, pageID: current, keys: lp.keys, values: lp.values, nextPage: lp.nextPageID}
		}
		ip, err := decodeInternal[K](g.Data(), t.keyCodec)
		if err != nil {
			t.logError("decode internal in Begin", err)
			g.Drop()
			return &IndexIterator[K, V]{t: t, ctx: ctx}
		}
		current = ip.children[0]
	}
}

// BeginAt returns an iterator descended to the leaf containing key and
// positioned at key's LowerBound: the first entry whose key is not less
// than key, whether or not key itself is present.
func (t *BTreeIndex[K, V]) BeginAt(ctx context.Context, key K) *IndexIterator[K, V] {
	hg := t.bpm.ReadPage(ctx, t.headerPageID)
	rootID := readRootID(hg.Data())
	if rootID == diskmanager.InvalidPageID {
		hg.Drop()
		return &IndexIterator[K, V]{t: t, ctx: ctx}
	}

	current := rootID
	var prevGuard guard = hg
	for {
		g := t.bpm.ReadPage(ctx, current)
		prevGuard.Drop()
		prevGuard = g

		if pageKindOf(g.Data()) == leafPageKind {
			lp, err := decodeLeaf[K, V](g.Data(), t.keyCodec, t.valCodec)
			g.Drop()
			if err != nil {
				t.logError("decode leaf in BeginAt", err)
				return &IndexIterator[K, V]{t: t, ctx: ctx}
			}
			idx, _ := t.search(lp.keys, key)
			it := &IndexIterator[K, V]{t: t, ctx: ctx, pageID: current, keys: lp.keys, values: lp.values, pos: idx, nextPage: lp.nextPageID}
			if it.IsEnd() {
				// key is past this leaf's last entry, so its lower bound is
				// the first entry of the next leaf (if any).
				it.pos = len(it.keys) - 1
				it.Next()
			}
			return it
		}
		ip, err := decodeInternal[K](g.Data(), t.keyCodec)
		if err != nil {
			t.logError("decode internal in BeginAt", err)
			g.Drop()
			return &IndexIterator[K, V]{t: t, ctx: ctx}
		}
		current = ip.children[t.childIndex(ip.keys, key)]
	}
}

// End returns an iterator that IsEnd immediately, matching BusTub's
// Begin()..End() idiom used as a half-open range.
func (t *BTreeIndex[K, V]) End(ctx context.Context) *IndexIterator[K, V] {
	return &IndexIterator[K, V]{t: t, ctx: ctx}
}

// IsEnd reports whether the iterator has been exhausted.
func (it *IndexIterator[K, V]) IsEnd() bool {
	return it.pos >= len(it.keys)
}

// Key returns the current key. Calling on an exhausted iterator panics,
// matching SPEC_FULL.md §7's "programming error" class.
func (it *IndexIterator[K, V]) Key() K {
	if it.IsEnd() {
		panic(ErrIteratorExhausted)
	}
	return it.keys[it.pos]
}

// Value returns the current value.
func (it *IndexIterator[K, V]) Value() V {
	if it.IsEnd() {
		panic(ErrIteratorExhausted)
	}
	return it.values[it.pos]
}

// Next advances the iterator, crossing into the next leaf via its sibling
// link when the current leaf is exhausted.
func (it *IndexIterator[K, V]) Next() {
	it.pos++
	if it.pos < len(it.keys) || it.nextPage == diskmanager.InvalidPageID {
		return
	}
	g := it.t.bpm.ReadPage(it.ctx, it.nextPage)
	lp, err := decodeLeaf[K, V](g.Data(), it.t.keyCodec, it.t.valCodec)
	g.Drop()
	if err != nil {
		it.t.logError("decode leaf in Next", err)
		it.keys, it.values = nil, nil
		it.pos = 0
		return
	}
	it.pageID = it.nextPage
	it.keys = lp.keys
	it.values = lp.values
	it.nextPage = lp.nextPageID
	it.pos = 0
}
