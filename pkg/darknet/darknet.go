// Package darknet reads and writes the legacy Darknet weights format.
//
// A weights file is a fixed 20-byte header (five little-endian int32
// fields: major, minor, revision, seen, and an opaque reserved word)
// followed by a flat payload of little-endian float32 values. The payload
// is not self-describing: it carries no tags, lengths, or types, so a
// consumer must already know the exact ordered runs of elements to
// expect. That order is derived from the destination model's topology and
// is part of the format; see Distribute.
package darknet

const (
	headerSize = 20 // five little-endian int32 fields
	elemSize   = 4  // payload elements are float32
)
