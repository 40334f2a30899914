package protocol

// Default maximum inbound record size (16 MiB). Argument lists with long
// classpaths stay well below this.
const DefaultMaxFrame int = 16_777_216

// Hard limit on record size (64 MiB) - prevents a corrupt length prefix from
// allocating unbounded memory
const MaxFrameHardLimit int = 67_108_864

// Limits bounds the size of records accepted by a Reader. Readers stop
// consuming input once a record exceeds MaxFrame, so the limit also bounds
// the memory a single record can take.
type Limits struct {
	MaxFrame int `cbor:"max_frame"`
}

// DefaultLimits returns the default protocol limits
func DefaultLimits() Limits {
	return Limits{
		MaxFrame: DefaultMaxFrame,
	}
}

// checkFrameSize validates an announced record length against limits
func (l Limits) checkFrameSize(length uint64) error {
	maxFrame := l.MaxFrame
	if maxFrame <= 0 || maxFrame > MaxFrameHardLimit {
		maxFrame = MaxFrameHardLimit
	}
	if length > uint64(maxFrame) {
		return &FrameTooLargeError{Size: length, Limit: maxFrame}
	}
	return nil
}
