package darknet

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// File is an open weights file: the decoded header plus the raw payload.
// Payload bytes stay in their on-disk encoding; Cursor and Floats decode
// on demand.
type File struct {
	Header  Header
	payload []byte
	data    []byte
	mmapped bool
}

// Open maps a weights file read-only and validates its framing.
// If mmap is unavailable, it falls back to ReadAt-based loading.
// The returned file must be closed to release any mapping.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size64 := stat.Size()
	if size64 < 0 {
		return nil, ErrTruncatedHeader
	}
	if size64 > int64(int(^uint(0)>>1)) {
		// cannot index this file safely as []byte on this architecture.
		return nil, fmt.Errorf("%w: file too large to map", ErrTruncatedPayload)
	}
	size := int(size64)
	if size < headerSize {
		return nil, ErrTruncatedHeader
	}

	// Prefer mmap where available: the payload is read in a single
	// forward pass and never written back.
	data, err := unix.Mmap(
		int(f.Fd()),
		0,
		size,
		unix.PROT_READ,
		unix.MAP_SHARED,
	)
	if err == nil {
		df, parseErr := parseFileData(data, true)
		if parseErr != nil {
			_ = unix.Munmap(data)
			return nil, parseErr
		}
		return df, nil
	}

	// Fallback path that does not require mmap support.
	data, err = readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	return parseFileData(data, false)
}

// OpenReaderAt loads and validates a weights stream from a random-access
// reader without mmap.
func OpenReaderAt(r io.ReaderAt, size int64) (*File, error) {
	if size < 0 || size > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("%w: bad stream size %d", ErrTruncatedPayload, size)
	}
	data, err := readAllAt(r, int(size))
	if err != nil {
		return nil, err
	}
	return parseFileData(data, false)
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative stream size", ErrTruncatedPayload)
	}
	if size == 0 {
		return []byte{}, nil
	}
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}

func parseFileData(data []byte, mmapped bool) (*File, error) {
	if len(data) < headerSize {
		return nil, ErrTruncatedHeader
	}
	hdr, ok := decodeHeader(data[:headerSize])
	if !ok {
		return nil, ErrTruncatedHeader
	}
	payload := data[headerSize:]
	if rem := len(payload) % elemSize; rem != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes do not form a float32", ErrTruncatedPayload, rem)
	}
	return &File{
		Header:  hdr,
		payload: payload,
		data:    data,
		mmapped: mmapped,
	}, nil
}

// Close releases file resources and any mmap backing.
func (f *File) Close() error {
	if f == nil {
		return nil
	}
	if f.data != nil {
		var err error
		if f.mmapped {
			err = unix.Munmap(f.data)
		}
		f.data = nil
		f.payload = nil
		f.mmapped = false
		return err
	}
	f.payload = nil
	f.mmapped = false
	return nil
}

// Elements returns the number of float32 values in the payload.
func (f *File) Elements() int {
	return len(f.payload) / elemSize
}

// Cursor returns a fresh cursor positioned at the first payload element.
// The cursor reads the file's backing storage and must not be used after
// Close.
func (f *File) Cursor() *Cursor {
	return &Cursor{data: f.payload, n: f.Elements()}
}

// Floats decodes the whole payload into a new slice.
func (f *File) Floats() []float32 {
	out := make([]float32, f.Elements())
	_ = f.Cursor().Take(out) // sized exactly, cannot fall short
	return out
}
