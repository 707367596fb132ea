package btree

import "context"

// IndexService is the narrow, in-process boundary this core exposes to an
// executor/catalog layer, in place of a wire service: those layers are out
// of scope (SPEC_FULL.md §1, §6), so no gRPC/protobuf surface is generated
// here — a plain Go interface is the external contract instead.
type IndexService interface {
	GetValue(ctx context.Context, key []byte) ([]byte, bool)
	Insert(ctx context.Context, key, value []byte) bool
	Remove(ctx context.Context, key []byte)
	Scan(ctx context.Context) Scanner
	ScanFrom(ctx context.Context, key []byte) Scanner
}

// Scanner is the cursor IndexService.Scan returns: an in-order walk over
// the indexed keys, narrowed to byte slices for the external boundary.
type Scanner interface {
	IsEnd() bool
	Key() []byte
	Value() []byte
	Next()
}

// byteKeyedIndex adapts a BTreeIndex[[]byte, []byte] to IndexService.
type byteKeyedIndex struct {
	tree *BTreeIndex[[]byte, []byte]
}

// NewByteKeyedIndexService builds an IndexService over a BTreeIndex keyed
// by raw byte slices, comparing keys lexicographically — the index shape an
// executor/catalog layer would actually bind against.
func NewByteKeyedIndexService(tree *BTreeIndex[[]byte, []byte]) IndexService {
	return &byteKeyedIndex{tree: tree}
}

func (b *byteKeyedIndex) GetValue(ctx context.Context, key []byte) ([]byte, bool) {
	return b.tree.GetValue(ctx, key)
}

func (b *byteKeyedIndex) Insert(ctx context.Context, key, value []byte) bool {
	return b.tree.Insert(ctx, key, value)
}

func (b *byteKeyedIndex) Remove(ctx context.Context, key []byte) {
	b.tree.Remove(ctx, key)
}

func (b *byteKeyedIndex) Scan(ctx context.Context) Scanner {
	return b.tree.Begin(ctx)
}

// ScanFrom returns a cursor positioned at key's LowerBound, for range scans
// that start partway through the index rather than at its smallest key.
func (b *byteKeyedIndex) ScanFrom(ctx context.Context, key []byte) Scanner {
	return b.tree.BeginAt(ctx, key)
}

// BytesComparator orders byte slices lexicographically, matching
// bytes.Compare's semantics, for use as the Comparator[[]byte] of a
// byte-keyed BTreeIndex.
func BytesComparator(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

// IdentityBytesCodec is the Codec[[]byte] for a key/value type that is
// already the raw on-page representation.
var IdentityBytesCodec = Codec[[]byte]{
	Encode: func(b []byte) ([]byte, error) { return b, nil },
	Decode: func(b []byte) ([]byte, error) { return append([]byte(nil), b...), nil },
}
