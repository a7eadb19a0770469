package darknet

import "fmt"

// LayerKind tags a layer descriptor with its consumption pattern.
type LayerKind uint8

const (
	// KindSkip marks a layer that carries no darknet parameters.
	KindSkip LayerKind = iota
	// KindConv marks a convolution with a plain bias.
	KindConv
	// KindConvNorm marks a convolution with attached batch normalization.
	KindConvNorm
)

func (k LayerKind) String() string {
	switch k {
	case KindSkip:
		return "skip"
	case KindConv:
		return "conv"
	case KindConvNorm:
		return "conv+norm"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// TensorDest is a mutable view over one destination tensor: the shape the
// consumed run maps onto and the row-major storage it fully overwrites.
// The view borrows the storage and never owns it.
type TensorDest struct {
	Shape []int
	Data  []float32
}

// Elements returns the destination's element count, which is exactly the
// number of payload values a single write consumes.
func (d TensorDest) Elements() int { return len(d.Data) }

func (d TensorDest) shapeElements() int {
	n := 1
	for _, dim := range d.Shape {
		n *= dim
	}
	return n
}

// LayerDescriptor describes one model layer to the distributor. Kind
// selects which destinations are populated:
//
//	KindSkip      none
//	KindConv      Bias, Weight
//	KindConvNorm  NormBias, NormWeight, NormMean, NormVar, Weight
//
// Descriptors are built once from the model before distribution starts;
// the walk itself never inspects model types.
type LayerDescriptor struct {
	Kind LayerKind
	Name string

	Weight TensorDest // convolution kernel
	Bias   TensorDest // plain convolutions only

	NormBias   TensorDest
	NormWeight TensorDest
	NormMean   TensorDest
	NormVar    TensorDest
}

// Elements returns the total number of payload elements the layer consumes.
func (d *LayerDescriptor) Elements() int {
	n := 0
	for _, r := range d.Runs() {
		n += r.Dest.Elements()
	}
	return n
}

// Run is one named segment of a layer's payload.
type Run struct {
	Name string
	Dest TensorDest
}

// Runs returns the layer's destinations in consumption order. The producer
// folds the conv bias into the norm bias for normalized layers, so that
// variant carries no conv bias in the stream.
func (d *LayerDescriptor) Runs() []Run {
	switch d.Kind {
	case KindConv:
		return []Run{
			{"conv bias", d.Bias},
			{"conv weight", d.Weight},
		}
	case KindConvNorm:
		return []Run{
			{"norm bias", d.NormBias},
			{"norm weight", d.NormWeight},
			{"norm running mean", d.NormMean},
			{"norm running var", d.NormVar},
			{"conv weight", d.Weight},
		}
	default:
		return nil
	}
}

func (d *LayerDescriptor) label() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Kind.String()
}

// validateDescriptors rejects descriptors whose destination shape and
// storage disagree, before anything is written.
func validateDescriptors(layers []LayerDescriptor) error {
	for i := range layers {
		d := &layers[i]
		for _, r := range d.Runs() {
			if r.Dest.Data == nil {
				return fmt.Errorf("%w: layer %d (%s): %s has no storage",
					ErrBadDescriptor, i, d.label(), r.Name)
			}
			if r.Dest.shapeElements() != len(r.Dest.Data) {
				return fmt.Errorf("%w: layer %d (%s): %s shape %v does not cover %d elements",
					ErrBadDescriptor, i, d.label(), r.Name, r.Dest.Shape, len(r.Dest.Data))
			}
		}
	}
	return nil
}
