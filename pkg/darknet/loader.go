package darknet

import "fmt"

// Model is what the loader needs from a destination network: the ordered
// layer descriptors and, separately, the total element count the file must
// carry. The two are computed independently: the count check is a single
// global precondition while the walk consumes per layer. The load result
// reports when they disagree in practice.
type Model interface {
	// Descriptors returns one descriptor per layer, in traversal order.
	Descriptors() []LayerDescriptor
	// ExpectedElements returns the payload element count the model
	// expects: every trainable parameter plus the running statistics of
	// every normalization sub-layer.
	ExpectedElements() int
}

// LoadWeights opens the weights file at path and distributes its payload
// into m's tensors. It returns whether the payload was exactly drained.
//
// The count precondition is checked before anything is written: on
// ErrSizeMismatch no tensor has been touched. Once distribution has begun,
// a failure leaves the layers already visited overwritten; callers that
// need atomicity must snapshot their tensors first.
func LoadWeights(m Model, path string) (bool, error) {
	f, err := Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()
	return Load(m, f)
}

// Load distributes f's payload into m's tensors. See LoadWeights.
func Load(m Model, f *File) (bool, error) {
	if want, got := m.ExpectedElements(), f.Elements(); want != got {
		return false, fmt.Errorf("%w: model expects %d elements, payload has %d",
			ErrSizeMismatch, want, got)
	}
	return Distribute(f.Cursor(), m.Descriptors())
}

// Distribute walks the layers in order, consuming each one's runs from the
// cursor in the format-mandated order:
//
//	KindConvNorm: norm bias, norm weight, norm running mean,
//	              norm running variance, conv weight
//	KindConv:     conv bias, conv weight
//	KindSkip:     nothing
//
// The order is part of the format, not a choice: the producer serialized
// each layer exactly this way, and a permuted walk can read back shapes
// that still fit while every value lands in the wrong tensor. After the
// last layer the payload must be exactly drained; the returned bool
// reports whether it was. False with a nil error means the global count
// matched but the walk left elements over, which points at a layer-kind
// or ordering mismatch between model and file.
func Distribute(cur *Cursor, layers []LayerDescriptor) (bool, error) {
	if err := validateDescriptors(layers); err != nil {
		return false, err
	}
	for i := range layers {
		d := &layers[i]
		for _, r := range d.Runs() {
			if err := cur.Take(r.Dest.Data); err != nil {
				return false, fmt.Errorf("layer %d (%s): %s: %w", i, d.label(), r.Name, err)
			}
		}
	}
	return cur.Drained(), nil
}
