package darknet

import (
	"encoding/binary"
	"fmt"
)

// Header is the fixed preamble of a weights file. The version triple and
// the seen counter are informational: distribution is identical for every
// version, and no field is validated beyond being present. Reserved is
// opaque filler (historically the upper half of a 64-bit image counter)
// and is preserved verbatim on writes.
type Header struct {
	Major    int32
	Minor    int32
	Revision int32
	Seen     int32
	Reserved int32
}

// Version renders the header the way the original producer reported it,
// eg "v0.2.0-32013312".
func (h Header) Version() string {
	return fmt.Sprintf("v%d.%d.%d-%d", h.Major, h.Minor, h.Revision, h.Seen)
}

func decodeHeader(b []byte) (Header, bool) {
	if len(b) < headerSize {
		return Header{}, false
	}
	return Header{
		Major:    int32(binary.LittleEndian.Uint32(b[0:4])),
		Minor:    int32(binary.LittleEndian.Uint32(b[4:8])),
		Revision: int32(binary.LittleEndian.Uint32(b[8:12])),
		Seen:     int32(binary.LittleEndian.Uint32(b[12:16])),
		Reserved: int32(binary.LittleEndian.Uint32(b[16:20])),
	}, true
}

func encodeHeader(b []byte, h Header) bool {
	if len(b) < headerSize {
		return false
	}
	binary.LittleEndian.PutUint32(b[0:4], uint32(h.Major))
	binary.LittleEndian.PutUint32(b[4:8], uint32(h.Minor))
	binary.LittleEndian.PutUint32(b[8:12], uint32(h.Revision))
	binary.LittleEndian.PutUint32(b[12:16], uint32(h.Seen))
	binary.LittleEndian.PutUint32(b[16:20], uint32(h.Reserved))
	return true
}
