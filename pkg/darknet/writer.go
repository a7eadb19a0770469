package darknet

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
)

// Write serializes hdr and m's parameters to w in weights-file layout: the
// 20-byte header, then every layer's runs in the same order Distribute
// consumes them. Loading the result into an identically-shaped model
// reproduces the tensors bit for bit.
func Write(w io.Writer, hdr Header, m Model) error {
	return WriteLayers(w, hdr, m.Descriptors())
}

// WriteLayers is Write for an explicit descriptor slice, which lets a
// caller serialize a prefix of a model (transfer-learning style partial
// checkpoints).
func WriteLayers(w io.Writer, hdr Header, layers []LayerDescriptor) error {
	if err := validateDescriptors(layers); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)

	var hdrBuf [headerSize]byte
	if !encodeHeader(hdrBuf[:], hdr) {
		return errors.New("darknet: encode header failed")
	}
	if _, err := bw.Write(hdrBuf[:]); err != nil {
		return err
	}

	var elemBuf [elemSize]byte
	for i := range layers {
		for _, r := range layers[i].Runs() {
			for _, v := range r.Dest.Data {
				binary.LittleEndian.PutUint32(elemBuf[:], math.Float32bits(v))
				if _, err := bw.Write(elemBuf[:]); err != nil {
					return err
				}
			}
		}
	}
	return bw.Flush()
}

// SaveWeights writes m's parameters to a new weights file at path.
func SaveWeights(path string, hdr Header, m Model) error {
	return SaveLayers(path, hdr, m.Descriptors())
}

// SaveLayers writes an explicit descriptor slice to a new weights file.
func SaveLayers(path string, hdr Header, layers []LayerDescriptor) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteLayers(f, hdr, layers); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
