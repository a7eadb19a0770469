// Package model holds the convolutional network structure that darknet
// weights load into: an ordered module list, some modules carrying
// parameters, walked in list order by the loader.
package model

import (
	"github.com/umbradev/umbra/internal/tensor"
	"github.com/umbradev/umbra/pkg/darknet"
)

// Module is one entry in a network's ordered layer list.
type Module interface {
	// Descriptor tells the loader what, if anything, the module consumes.
	Descriptor() darknet.LayerDescriptor
	// ExpectedElements counts the module's trainable parameters plus any
	// normalization running statistics.
	ExpectedElements() int
}

// BatchNorm carries per-channel batch normalization parameters and the
// running statistics collected at training time. The running statistics
// are not trainable but travel with the weights file all the same.
type BatchNorm struct {
	Weight      *tensor.Tensor // scale, [C]
	Bias        *tensor.Tensor // [C]
	RunningMean *tensor.Tensor // [C]
	RunningVar  *tensor.Tensor // [C]
}

// NewBatchNorm returns batch normalization over c channels with identity
// initialisation: scale and variance one, bias and mean zero.
func NewBatchNorm(c int) *BatchNorm {
	bn := &BatchNorm{
		Weight:      tensor.New(c),
		Bias:        tensor.New(c),
		RunningMean: tensor.New(c),
		RunningVar:  tensor.New(c),
	}
	bn.Weight.Fill(1)
	bn.RunningVar.Fill(1)
	return bn
}

// Conv is a 2-d convolution module, optionally normalized. A normalized
// convolution carries no bias of its own: the producer folds it into the
// norm bias at export time.
type Conv struct {
	Name    string
	In, Out int
	Kernel  int
	Stride  int
	Pad     int

	Weight *tensor.Tensor // [Out, In, Kernel, Kernel]
	Bias   *tensor.Tensor // [Out]; nil when Norm is set
	Norm   *BatchNorm
}

// NewConv builds a convolution module. With normalized set the module gets
// batch normalization instead of a conv bias.
func NewConv(name string, in, out, kernel, stride, pad int, normalized bool) *Conv {
	if in <= 0 || out <= 0 || kernel <= 0 {
		panic("model: conv dimensions must be positive")
	}
	c := &Conv{
		Name:   name,
		In:     in,
		Out:    out,
		Kernel: kernel,
		Stride: stride,
		Pad:    pad,
		Weight: tensor.New(out, in, kernel, kernel),
	}
	if normalized {
		c.Norm = NewBatchNorm(out)
	} else {
		c.Bias = tensor.New(out)
	}
	return c
}

func (c *Conv) Descriptor() darknet.LayerDescriptor {
	d := darknet.LayerDescriptor{
		Name:   c.Name,
		Weight: destOf(c.Weight),
	}
	if c.Norm != nil {
		d.Kind = darknet.KindConvNorm
		d.NormBias = destOf(c.Norm.Bias)
		d.NormWeight = destOf(c.Norm.Weight)
		d.NormMean = destOf(c.Norm.RunningMean)
		d.NormVar = destOf(c.Norm.RunningVar)
		return d
	}
	d.Kind = darknet.KindConv
	d.Bias = destOf(c.Bias)
	return d
}

func (c *Conv) ExpectedElements() int {
	n := c.Weight.Elements()
	if c.Norm != nil {
		n += c.Norm.Weight.Elements() + c.Norm.Bias.Elements()
		n += c.Norm.RunningMean.Elements() + c.Norm.RunningVar.Elements()
		return n
	}
	return n + c.Bias.Elements()
}

// MaxPool is a parameter-free pooling module.
type MaxPool struct {
	Name   string
	Size   int
	Stride int
}

func (p *MaxPool) Descriptor() darknet.LayerDescriptor {
	return darknet.LayerDescriptor{Kind: darknet.KindSkip, Name: p.Name}
}

func (p *MaxPool) ExpectedElements() int { return 0 }

// Upsample is a parameter-free nearest-neighbour upscaling module.
type Upsample struct {
	Name   string
	Stride int
}

func (u *Upsample) Descriptor() darknet.LayerDescriptor {
	return darknet.LayerDescriptor{Kind: darknet.KindSkip, Name: u.Name}
}

func (u *Upsample) ExpectedElements() int { return 0 }

// Network is an ordered module list. List order is distribution order.
type Network struct {
	Name    string
	Modules []Module
}

var _ darknet.Model = (*Network)(nil)

// Descriptors implements darknet.Model.
func (n *Network) Descriptors() []darknet.LayerDescriptor {
	out := make([]darknet.LayerDescriptor, len(n.Modules))
	for i, m := range n.Modules {
		out[i] = m.Descriptor()
	}
	return out
}

// ExpectedElements implements darknet.Model.
func (n *Network) ExpectedElements() int {
	total := 0
	for _, m := range n.Modules {
		total += m.ExpectedElements()
	}
	return total
}

func destOf(t *tensor.Tensor) darknet.TensorDest {
	return darknet.TensorDest{Shape: t.Shape, Data: t.Data}
}
