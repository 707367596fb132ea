package btree

import "errors"

var (
	ErrKeyNotFound       = errors.New("btree: key not found")
	ErrDuplicateKey      = errors.New("btree: key already exists")
	ErrSerialization     = errors.New("btree: error serializing page")
	ErrDeserialization   = errors.New("btree: error deserializing page")
	ErrChecksumMismatch  = errors.New("btree: page checksum mismatch, data corruption suspected")
	ErrPageTooSmall      = errors.New("btree: page size too small to hold header and checksum")
	ErrIteratorExhausted = errors.New("btree: iterator exhausted")
	ErrPoolExhausted     = errors.New("btree: buffer pool exhausted during operation")
)
