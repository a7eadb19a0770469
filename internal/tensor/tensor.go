// Package tensor provides the dense float32 tensors that model parameters
// live in. Loading writes directly into a tensor's backing slice.
package tensor

import "math/rand"

// Tensor is a dense row-major float32 tensor.
//
// Shape holds the dimensions and Data the flattened values; len(Data) always
// equals the product of Shape. Constructors enforce this, after which both
// fields may be read freely. Tensor performs no memory safety beyond the
// checks performed by Go's slice types; out-of-range indices will panic.
type Tensor struct {
	Shape []int
	Data  []float32
}

// New allocates a zero-initialised tensor with the given shape.
func New(shape ...int) *Tensor {
	n := checkShape(shape)
	return &Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float32, n),
	}
}

// FromData creates a tensor backed by existing data.
// It checks that the data length matches the shape's element count.
func FromData(data []float32, shape ...int) *Tensor {
	if checkShape(shape) != len(data) {
		panic("tensor: data length mismatch")
	}
	return &Tensor{
		Shape: append([]int(nil), shape...),
		Data:  data,
	}
}

// Elements returns the number of values the tensor holds.
func (t *Tensor) Elements() int {
	return len(t.Data)
}

// At returns the value at the given indices. The number of indices must
// match the number of dimensions.
func (t *Tensor) At(idx ...int) float32 {
	return t.Data[t.offset(idx)]
}

// Set stores v at the given indices.
func (t *Tensor) Set(v float32, idx ...int) {
	t.Data[t.offset(idx)] = v
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float32) {
	for i := range t.Data {
		t.Data[i] = v
	}
}

// CopyFrom overwrites the tensor with src's values. Shapes must carry the
// same element count; callers use this to snapshot parameters before an
// in-place load that may fail partway.
func (t *Tensor) CopyFrom(src *Tensor) {
	if len(src.Data) != len(t.Data) {
		panic("tensor: copy length mismatch")
	}
	copy(t.Data, src.Data)
}

// FillRand fills the tensor with reproducible pseudo-random values. A small
// range around zero is used so sums stay well-behaved in tests. The seed
// controls the sequence; equal seeds produce equal tensors.
func FillRand(t *Tensor, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range t.Data {
		t.Data[i] = (rng.Float32() - 0.5) * 0.02 // roughly in (-0.01,0.01)
	}
}

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.Shape) {
		panic("tensor: index rank mismatch")
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= t.Shape[i] {
			panic("tensor: index out of range")
		}
		off = off*t.Shape[i] + x
	}
	return off
}

// checkShape validates dims and returns the element count.
func checkShape(shape []int) int {
	n := 1
	for _, d := range shape {
		if d < 0 {
			panic("tensor: negative dimension")
		}
		n *= d
	}
	return n
}
