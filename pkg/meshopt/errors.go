package meshopt

import (
	"errors"
	"fmt"
)

// Input validation errors. All of them match ErrInvalidInput with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrIndexCount       = fmt.Errorf("%w: index count is not a multiple of 3", ErrInvalidInput)
	ErrIndexRange       = fmt.Errorf("%w: index out of range", ErrInvalidInput)
	ErrInvalidStride    = fmt.Errorf("%w: invalid vertex stride", ErrInvalidInput)
	ErrNonFinite        = fmt.Errorf("%w: non-finite vertex position", ErrInvalidInput)
	ErrInvalidTolerance = fmt.Errorf("%w: tolerance must be a finite value >= 0", ErrInvalidInput)
	ErrInvalidTarget    = fmt.Errorf("%w: invalid simplification target", ErrInvalidInput)
	ErrInvalidAttribute = fmt.Errorf("%w: invalid attribute stream", ErrInvalidInput)
	ErrLockCount        = fmt.Errorf("%w: lock mask length does not match vertex count", ErrInvalidInput)
	ErrRemapLength      = fmt.Errorf("%w: remap table length does not match vertex count", ErrInvalidInput)
	ErrCacheSize        = fmt.Errorf("%w: cache size out of range", ErrInvalidInput)
)
