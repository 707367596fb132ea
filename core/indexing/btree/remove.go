package btree

import (
	"context"

	"github.com/sushant-115/gojodb-storage/core/storage/diskmanager"
)

func minSize(maxSize int) int {
	return (maxSize + 1) / 2
}

// Remove deletes key if present. Removing an absent key is a no-op, per
// SPEC_FULL.md §7 ("remove of missing key is a no-op returning nothing").
func (t *BTreeIndex[K, V]) Remove(ctx context.Context, key K) {
	cc := &latchContext{}
	defer cc.releaseAll()

	hg := t.bpm.WritePage(ctx, t.headerPageID)
	cc.push(hg)
	rootID := readRootID(hg.Data())
	if rootID == diskmanager.InvalidPageID {
		return
	}

	current := rootID
	for {
		g := t.bpm.WritePage(ctx, current)
		cc.push(g)

		if pageKindOf(g.Data()) == leafPageKind {
			lp, err := decodeLeaf[K, V](g.Data(), t.keyCodec, t.valCodec)
			if err != nil {
				t.logError("decode leaf in Remove", err)
				return
			}
			idx, found := t.search(lp.keys, key)
			if !found {
				return
			}
			// A root leaf has no minimum-size invariant: there is nothing
			// to merge with or borrow from. Removing its last key empties
			// the tree, which needs the header latch to clear the root.
			isRoot := current == rootID
			safe := len(lp.keys)-1 >= minSize(lp.maxSize)
			if isRoot {
				safe = len(lp.keys) > 1
			}
			if safe {
				cc.releasePrefix()
			}
			lp.keys = removeAt(lp.keys, idx)
			lp.values = removeAt(lp.values, idx)
			if err := encodeLeaf(lp, g.Data(), t.keyCodec, t.valCodec); err != nil {
				t.logError("encode leaf in Remove", err)
			}
			if isRoot {
				if len(lp.keys) == 0 {
					writeRootID(hg.Data(), diskmanager.InvalidPageID)
					g.Drop()
					t.bpm.DeletePage(ctx, current)
				}
				return
			}
			if !safe {
				t.rebalanceLeaf(ctx, cc, lp, rootID)
			}
			return
		}

		ip, err := decodeInternal[K](g.Data(), t.keyCodec)
		if err != nil {
			t.logError("decode internal in Remove", err)
			return
		}
		// An internal root is only safe to release the header latch for
		// if it cannot collapse to a single child from this removal: that
		// takes more than two children going in. A non-root internal node
		// is safe once it can lose a child without underflowing.
		isRoot := current == rootID
		var safe bool
		if isRoot {
			safe = len(ip.children) > 2
		} else {
			safe = len(ip.children)-1 >= minSize(ip.maxSize)
		}
		if safe {
			cc.releasePrefix()
		}
		current = ip.children[t.childIndex(ip.keys, key)]
	}
}

// rebalanceLeaf is called with the underflowed leaf as cc.last() and its
// parent as cc.parent(); parent is never nil here because an underflowed
// non-root leaf always has a parent still held in cc (the descent never
// prefix-released past an unsafe node). It prefers merging with a sibling
// when the combined size still fits max_size — checking the left sibling
// before the right — and only falls back to redistribution, again
// preferring the left sibling, when neither merge fits.
func (t *BTreeIndex[K, V]) rebalanceLeaf(ctx context.Context, cc *latchContext, lp *leafPage[K, V], rootID diskmanager.PageID) {
	leafGuard := cc.last()
	parentGuard := cc.parent()
	if parentGuard == nil {
		return
	}
	ip, err := decodeInternal[K](parentGuard.Data(), t.keyCodec)
	if err != nil {
		t.logError("decode parent in rebalanceLeaf", err)
		return
	}
	myIdx := indexOfChild(ip.children, leafGuard.PageID())

	if myIdx > 0 {
		leftGuard := t.bpm.WritePage(ctx, ip.children[myIdx-1])
		left, err := decodeLeaf[K, V](leftGuard.Data(), t.keyCodec, t.valCodec)
		if err == nil && len(left.keys)+len(lp.keys) <= lp.maxSize {
			left.keys = append(left.keys, lp.keys...)
			left.values = append(left.values, lp.values...)
			left.nextPageID = lp.nextPageID
			_ = encodeLeaf(left, leftGuard.Data(), t.keyCodec, t.valCodec)
			leftGuard.Drop()
			t.bpm.DeletePage(ctx, leafGuard.PageID())
			ip.keys = removeAt(ip.keys, myIdx-1)
			ip.children = removeAt(ip.children, myIdx)
			t.shrinkInternal(ctx, cc, ip, parentGuard, rootID)
			return
		}
		leftGuard.Drop()
	}
	if myIdx < len(ip.children)-1 {
		rightGuard := t.bpm.WritePage(ctx, ip.children[myIdx+1])
		right, err := decodeLeaf[K, V](rightGuard.Data(), t.keyCodec, t.valCodec)
		if err == nil && len(lp.keys)+len(right.keys) <= lp.maxSize {
			lp.keys = append(lp.keys, right.keys...)
			lp.values = append(lp.values, right.values...)
			lp.nextPageID = right.nextPageID
			_ = encodeLeaf(lp, leafGuard.Data(), t.keyCodec, t.valCodec)
			rightGuard.Drop()
			t.bpm.DeletePage(ctx, ip.children[myIdx+1])
			ip.keys = removeAt(ip.keys, myIdx)
			ip.children = removeAt(ip.children, myIdx+1)
			t.shrinkInternal(ctx, cc, ip, parentGuard, rootID)
			return
		}
		rightGuard.Drop()
	}

	// Neither merge fits within max_size: redistribute instead, preferring
	// to borrow from the left sibling.
	if myIdx > 0 {
		leftGuard := t.bpm.WritePage(ctx, ip.children[myIdx-1])
		left, err := decodeLeaf[K, V](leftGuard.Data(), t.keyCodec, t.valCodec)
		if err == nil && len(left.keys) > minSize(left.maxSize) {
			borrowed := len(left.keys) - 1
			lp.keys = insertAt(lp.keys, 0, left.keys[borrowed])
			lp.values = insertAt(lp.values, 0, left.values[borrowed])
			left.keys = left.keys[:borrowed]
			left.values = left.values[:borrowed]
			_ = encodeLeaf(left, leftGuard.Data(), t.keyCodec, t.valCodec)
			_ = encodeLeaf(lp, leafGuard.Data(), t.keyCodec, t.valCodec)
			leftGuard.Drop()
			ip.keys[myIdx-1] = lp.keys[0]
			_ = encodeInternal(ip, parentGuard.Data(), t.keyCodec)
			return
		}
		leftGuard.Drop()
	}

	rightGuard := t.bpm.WritePage(ctx, ip.children[myIdx+1])
	right, err := decodeLeaf[K, V](rightGuard.Data(), t.keyCodec, t.valCodec)
	if err != nil {
		t.logError("decode right sibling for redistribution", err)
		rightGuard.Drop()
		return
	}
	lp.keys = append(lp.keys, right.keys[0])
	lp.values = append(lp.values, right.values[0])
	right.keys = removeAt(right.keys, 0)
	right.values = removeAt(right.values, 0)
	_ = encodeLeaf(right, rightGuard.Data(), t.keyCodec, t.valCodec)
	_ = encodeLeaf(lp, leafGuard.Data(), t.keyCodec, t.valCodec)
	rightGuard.Drop()
	ip.keys[myIdx] = right.keys[0]
	_ = encodeInternal(ip, parentGuard.Data(), t.keyCodec)
}

// shrinkInternal persists ip (one child lighter than before, on the page
// identified by selfGuard) and, if it now underflows, borrows from or
// merges with a sibling using the grandparent one level up in cc. If ip is
// the root and has collapsed to a single child, that child becomes the new
// root and ip's page is freed.
func (t *BTreeIndex[K, V]) shrinkInternal(ctx context.Context, cc *latchContext, ip *internalPage[K], selfGuard guard, rootID diskmanager.PageID) {
	cc.popLast() // the child level's guard; its merge is already encoded.

	if selfGuard.PageID() == rootID {
		if len(ip.children) == 1 {
			hg := cc.guards[0]
			writeRootID(hg.Data(), ip.children[0])
			t.bpm.DeletePage(ctx, selfGuard.PageID())
			return
		}
		_ = encodeInternal(ip, selfGuard.Data(), t.keyCodec)
		return
	}

	if len(ip.children) >= minSize(ip.maxSize) {
		_ = encodeInternal(ip, selfGuard.Data(), t.keyCodec)
		return
	}
	_ = encodeInternal(ip, selfGuard.Data(), t.keyCodec)

	grandGuard := cc.parent()
	if grandGuard == nil {
		return
	}
	gip, err := decodeInternal[K](grandGuard.Data(), t.keyCodec)
	if err != nil {
		t.logError("decode grandparent in shrinkInternal", err)
		return
	}
	myIdx := indexOfChild(gip.children, selfGuard.PageID())
	t.rebalanceInternal(ctx, cc, ip, selfGuard, gip, grandGuard, myIdx, rootID)
}

// rebalanceInternal prefers merging ip with a sibling when the combined
// child count still fits max_size — left sibling first, then right — and
// only falls back to redistribution, again preferring the left sibling,
// when neither merge fits.
func (t *BTreeIndex[K, V]) rebalanceInternal(ctx context.Context, cc *latchContext, ip *internalPage[K], ipGuard guard, gip *internalPage[K], grandGuard guard, myIdx int, rootID diskmanager.PageID) {
	if myIdx > 0 {
		leftGuard := t.bpm.WritePage(ctx, gip.children[myIdx-1])
		left, err := decodeInternal[K](leftGuard.Data(), t.keyCodec)
		if err == nil && len(left.children)+len(ip.children) <= ip.maxSize {
			left.keys = append(left.keys, gip.keys[myIdx-1])
			left.keys = append(left.keys, ip.keys...)
			left.children = append(left.children, ip.children...)
			_ = encodeInternal(left, leftGuard.Data(), t.keyCodec)
			leftGuard.Drop()
			t.bpm.DeletePage(ctx, ipGuard.PageID())
			gip.keys = removeAt(gip.keys, myIdx-1)
			gip.children = removeAt(gip.children, myIdx)
			t.shrinkInternal(ctx, cc, gip, grandGuard, rootID)
			return
		}
		leftGuard.Drop()
	}
	if myIdx < len(gip.children)-1 {
		rightGuard := t.bpm.WritePage(ctx, gip.children[myIdx+1])
		right, err := decodeInternal[K](rightGuard.Data(), t.keyCodec)
		if err == nil && len(ip.children)+len(right.children) <= ip.maxSize {
			ip.keys = append(ip.keys, gip.keys[myIdx])
			ip.keys = append(ip.keys, right.keys...)
			ip.children = append(ip.children, right.children...)
			_ = encodeInternal(ip, ipGuard.Data(), t.keyCodec)
			rightGuard.Drop()
			t.bpm.DeletePage(ctx, gip.children[myIdx+1])
			gip.keys = removeAt(gip.keys, myIdx)
			gip.children = removeAt(gip.children, myIdx+1)
			t.shrinkInternal(ctx, cc, gip, grandGuard, rootID)
			return
		}
		rightGuard.Drop()
	}

	// Neither merge fits within max_size: redistribute instead, preferring
	// to borrow from the left sibling.
	if myIdx > 0 {
		leftGuard := t.bpm.WritePage(ctx, gip.children[myIdx-1])
		left, err := decodeInternal[K](leftGuard.Data(), t.keyCodec)
		if err == nil && len(left.children) > minSize(left.maxSize) {
			borrowedChild := left.children[len(left.children)-1]
			borrowedKey := left.keys[len(left.keys)-1]
			left.children = left.children[:len(left.children)-1]
			left.keys = left.keys[:len(left.keys)-1]
			ip.keys = insertAt(ip.keys, 0, gip.keys[myIdx-1])
			ip.children = insertAt(ip.children, 0, borrowedChild)
			gip.keys[myIdx-1] = borrowedKey
			_ = encodeInternal(left, leftGuard.Data(), t.keyCodec)
			_ = encodeInternal(ip, ipGuard.Data(), t.keyCodec)
			_ = encodeInternal(gip, grandGuard.Data(), t.keyCodec)
			leftGuard.Drop()
			return
		}
		leftGuard.Drop()
	}

	rightGuard := t.bpm.WritePage(ctx, gip.children[myIdx+1])
	right, err := decodeInternal[K](rightGuard.Data(), t.keyCodec)
	if err != nil {
		t.logError("decode right sibling for redistribution", err)
		rightGuard.Drop()
		return
	}
	borrowedChild := right.children[0]
	borrowedKey := right.keys[0]
	right.children = right.children[1:]
	right.keys = right.keys[1:]
	ip.keys = append(ip.keys, gip.keys[myIdx])
	ip.children = append(ip.children, borrowedChild)
	gip.keys[myIdx] = borrowedKey
	_ = encodeInternal(right, rightGuard.Data(), t.keyCodec)
	_ = encodeInternal(ip, ipGuard.Data(), t.keyCodec)
	_ = encodeInternal(gip, grandGuard.Data(), t.keyCodec)
	rightGuard.Drop()
}

func indexOfChild(children []diskmanager.PageID, id diskmanager.PageID) int {
	for i, c := range children {
		if c == id {
			return i
		}
	}
	return -1
}
