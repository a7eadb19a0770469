package darknet

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Cursor consumes float32 elements from the front of an immutable payload.
//
// The payload stays raw little-endian bytes; Take decodes straight into
// the destination slice so values move bit for bit. The cursor only ever
// advances, by exactly the number of elements taken, and is never rewound.
type Cursor struct {
	data []byte // little-endian float32 payload
	off  int    // elements consumed so far
	n    int    // total elements
}

// NewCursor wraps raw payload bytes. The length must be a whole number of
// float32 values.
func NewCursor(data []byte) (*Cursor, error) {
	if rem := len(data) % elemSize; rem != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes do not form a float32", ErrTruncatedPayload, rem)
	}
	return &Cursor{data: data, n: len(data) / elemSize}, nil
}

// Take decodes the next len(dst) elements into dst and advances the
// cursor. If fewer elements remain it fails with ErrTruncatedPayload and
// leaves the cursor where it was.
func (c *Cursor) Take(dst []float32) error {
	if len(dst) > c.n-c.off {
		return fmt.Errorf("%w: need %d elements, %d remaining", ErrTruncatedPayload, len(dst), c.n-c.off)
	}
	base := c.off * elemSize
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(c.data[base+i*elemSize:]))
	}
	c.off += len(dst)
	return nil
}

// Offset returns the number of elements consumed so far.
func (c *Cursor) Offset() int { return c.off }

// Remaining returns the number of elements not yet consumed.
func (c *Cursor) Remaining() int { return c.n - c.off }

// Drained reports whether every element has been consumed.
func (c *Cursor) Drained() bool { return c.off == c.n }
