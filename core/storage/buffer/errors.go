package buffer

import "errors"

var (
	ErrPoolExhausted = errors.New("buffer: no frame available for eviction")
	ErrNotResident   = errors.New("buffer: page is not resident")
)
