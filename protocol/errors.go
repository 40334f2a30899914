package protocol

import (
	"errors"
	"fmt"
)

// ErrFrameTooLarge is matched by every *FrameTooLargeError
var ErrFrameTooLarge = errors.New("frame exceeds size limit")

// FrameTooLargeError reports a record whose announced size exceeds the limit
type FrameTooLargeError struct {
	Size  uint64
	Limit int
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("frame size %d exceeds max_frame limit %d", e.Size, e.Limit)
}

// Is lets errors.Is(err, ErrFrameTooLarge) match
func (e *FrameTooLargeError) Is(target error) bool {
	return target == ErrFrameTooLarge
}

// FramingError is an unrecoverable read failure: a truncated, oversized or
// undecodable record. Clean stream closure is reported as io.EOF instead.
type FramingError struct {
	Protocol Protocol
	Err      error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("%s framing error: %v", e.Protocol, e.Err)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// IsFramingError reports whether err is (or wraps) a *FramingError
func IsFramingError(err error) bool {
	var fe *FramingError
	return errors.As(err, &fe)
}

func framingError(p Protocol, err error) error {
	return &FramingError{Protocol: p, Err: err}
}
