package btree

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/sushant-115/gojodb-storage/core/storage/diskmanager"
)

// checksumSize is the trailing CRC32 footprint on every page, mirroring
// this codebase's page-checksum convention: the checksum covers the whole
// page except its own four bytes.
const checksumSize = 4

type pageKind byte

const (
	leafPageKind     pageKind = 1
	internalPageKind pageKind = 2
)

// leafPage is the in-memory, decoded form of a B+Tree leaf page: parallel
// key/value arrays plus the sibling link used by IndexIterator.
type leafPage[K any, V any] struct {
	maxSize    int
	nextPageID diskmanager.PageID
	keys       []K
	values     []V
}

// internalPage holds n children and n-1 separator keys: children[i] is the
// subtree for keys < keys[i] (i==0) or keys[i-1] <= key < keys[i].
type internalPage[K any] struct {
	maxSize  int
	keys     []K
	children []diskmanager.PageID
}

func encodeLeaf[K any, V any](lp *leafPage[K, V], buf []byte, keyCodec Codec[K], valCodec Codec[V]) error {
	if len(buf) <= checksumSize {
		return ErrPageTooSmall
	}
	b := new(bytes.Buffer)
	if err := binary.Write(b, binary.LittleEndian, byte(leafPageKind)); err != nil {
		return fmt.Errorf("%w: kind: %v", ErrSerialization, err)
	}
	if err := binary.Write(b, binary.LittleEndian, uint32(lp.maxSize)); err != nil {
		return fmt.Errorf("%w: max size: %v", ErrSerialization, err)
	}
	if err := binary.Write(b, binary.LittleEndian, uint64(lp.nextPageID)); err != nil {
		return fmt.Errorf("%w: next page id: %v", ErrSerialization, err)
	}
	if err := binary.Write(b, binary.LittleEndian, uint16(len(lp.keys))); err != nil {
		return fmt.Errorf("%w: num keys: %v", ErrSerialization, err)
	}
	for i := range lp.keys {
		if err := writeLengthPrefixed(b, keyCodec.Encode, lp.keys[i]); err != nil {
			return fmt.Errorf("%w: key %d: %v", ErrSerialization, i, err)
		}
		if err := writeLengthPrefixed(b, valCodec.Encode, lp.values[i]); err != nil {
			return fmt.Errorf("%w: value %d: %v", ErrSerialization, i, err)
		}
	}
	return finishPage(b, buf)
}

func decodeLeaf[K any, V any](buf []byte, keyCodec Codec[K], valCodec Codec[V]) (*leafPage[K, V], error) {
	body, err := verifyAndStrip(buf)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(body)
	var kind byte
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil || pageKind(kind) != leafPageKind {
		return nil, fmt.Errorf("%w: not a leaf page", ErrDeserialization)
	}
	var maxSize uint32
	var nextPageID uint64
	var numKeys uint16
	if err := binary.Read(r, binary.LittleEndian, &maxSize); err != nil {
		return nil, fmt.Errorf("%w: max size: %v", ErrDeserialization, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &nextPageID); err != nil {
		return nil, fmt.Errorf("%w: next page id: %v", ErrDeserialization, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &numKeys); err != nil {
		return nil, fmt.Errorf("%w: num keys: %v", ErrDeserialization, err)
	}
	lp := &leafPage[K, V]{
		maxSize:    int(maxSize),
		nextPageID: diskmanager.PageID(nextPageID),
		keys:       make([]K, numKeys),
		values:     make([]V, numKeys),
	}
	for i := 0; i < int(numKeys); i++ {
		k, err := readLengthPrefixed(r, keyCodec.Decode)
		if err != nil {
			return nil, fmt.Errorf("%w: key %d: %v", ErrDeserialization, i, err)
		}
		v, err := readLengthPrefixed(r, valCodec.Decode)
		if err != nil {
			return nil, fmt.Errorf("%w: value %d: %v", ErrDeserialization, i, err)
		}
		lp.keys[i] = k
		lp.values[i] = v
	}
	return lp, nil
}

func encodeInternal[K any](ip *internalPage[K], buf []byte, keyCodec Codec[K]) error {
	if len(buf) <= checksumSize {
		return ErrPageTooSmall
	}
	b := new(bytes.Buffer)
	if err := binary.Write(b, binary.LittleEndian, byte(internalPageKind)); err != nil {
		return fmt.Errorf("%w: kind: %v", ErrSerialization, err)
	}
	if err := binary.Write(b, binary.LittleEndian, uint32(ip.maxSize)); err != nil {
		return fmt.Errorf("%w: max size: %v", ErrSerialization, err)
	}
	if err := binary.Write(b, binary.LittleEndian, uint16(len(ip.children))); err != nil {
		return fmt.Errorf("%w: num children: %v", ErrSerialization, err)
	}
	for _, c := range ip.children {
		if err := binary.Write(b, binary.LittleEndian, uint64(c)); err != nil {
			return fmt.Errorf("%w: child id: %v", ErrSerialization, err)
		}
	}
	for i := range ip.keys {
		if err := writeLengthPrefixed(b, keyCodec.Encode, ip.keys[i]); err != nil {
			return fmt.Errorf("%w: key %d: %v", ErrSerialization, i, err)
		}
	}
	return finishPage(b, buf)
}

func decodeInternal[K any](buf []byte, keyCodec Codec[K]) (*internalPage[K], error) {
	body, err := verifyAndStrip(buf)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(body)
	var kind byte
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil || pageKind(kind) != internalPageKind {
		return nil, fmt.Errorf("%w: not an internal page", ErrDeserialization)
	}
	var maxSize uint32
	var numChildren uint16
	if err := binary.Read(r, binary.LittleEndian, &maxSize); err != nil {
		return nil, fmt.Errorf("%w: max size: %v", ErrDeserialization, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &numChildren); err != nil {
		return nil, fmt.Errorf("%w: num children: %v", ErrDeserialization, err)
	}
	ip := &internalPage[K]{
		maxSize:  int(maxSize),
		children: make([]diskmanager.PageID, numChildren),
		keys:     make([]K, 0, numChildren),
	}
	for i := range ip.children {
		var c uint64
		if err := binary.Read(r, binary.LittleEndian, &c); err != nil {
			return nil, fmt.Errorf("%w: child %d: %v", ErrDeserialization, i, err)
		}
		ip.children[i] = diskmanager.PageID(c)
	}
	for i := 0; i < int(numChildren)-1 && numChildren > 0; i++ {
		k, err := readLengthPrefixed(r, keyCodec.Decode)
		if err != nil {
			return nil, fmt.Errorf("%w: key %d: %v", ErrDeserialization, i, err)
		}
		ip.keys = append(ip.keys, k)
	}
	return ip, nil
}

// finishPage copies the encoded body into buf, zero-pads the remainder, and
// appends a CRC32 trailer computed over everything but the trailer itself.
func finishPage(body *bytes.Buffer, buf []byte) error {
	data := body.Bytes()
	if len(data)+checksumSize > len(buf) {
		return fmt.Errorf("%w: encoded page (%d bytes) + checksum (%d) exceeds page size (%d)",
			ErrSerialization, len(data), checksumSize, len(buf))
	}
	copy(buf, data)
	for i := len(data); i < len(buf)-checksumSize; i++ {
		buf[i] = 0
	}
	checksum := crc32.ChecksumIEEE(buf[:len(buf)-checksumSize])
	binary.LittleEndian.PutUint32(buf[len(buf)-checksumSize:], checksum)
	return nil
}

func verifyAndStrip(buf []byte) ([]byte, error) {
	if len(buf) <= checksumSize {
		return nil, ErrPageTooSmall
	}
	body := buf[:len(buf)-checksumSize]
	stored := binary.LittleEndian.Uint32(buf[len(buf)-checksumSize:])
	if crc32.ChecksumIEEE(body) != stored {
		return nil, ErrChecksumMismatch
	}
	return body, nil
}

func writeLengthPrefixed[T any](b *bytes.Buffer, encode func(T) ([]byte, error), v T) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	if err := binary.Write(b, binary.LittleEndian, uint16(len(data))); err != nil {
		return err
	}
	_, err = b.Write(data)
	return err
}

func readLengthPrefixed[T any](r *bytes.Reader, decode func([]byte) (T, error)) (T, error) {
	var zero T
	var length uint16
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return zero, err
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return zero, err
	}
	return decode(data)
}
