package model

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/umbradev/umbra/internal/tensor"
	"github.com/umbradev/umbra/pkg/darknet"
)

func TestConvDescriptorPlain(t *testing.T) {
	t.Parallel()

	c := NewConv("conv0", 1, 2, 3, 1, 1, false)
	d := c.Descriptor()

	if d.Kind != darknet.KindConv {
		t.Fatalf("kind: got %v want %v", d.Kind, darknet.KindConv)
	}
	if d.Name != "conv0" {
		t.Fatalf("name: got %q", d.Name)
	}
	if got, want := d.Weight.Elements(), 18; got != want {
		t.Fatalf("weight elements: got %d want %d", got, want)
	}
	if got, want := d.Bias.Elements(), 2; got != want {
		t.Fatalf("bias elements: got %d want %d", got, want)
	}

	// The descriptor must alias the module's storage: writes through it
	// land in the tensors.
	d.Weight.Data[0] = 42
	if c.Weight.Data[0] != 42 {
		t.Fatal("descriptor weight does not alias the conv weight tensor")
	}
	d.Bias.Data[1] = 7
	if c.Bias.Data[1] != 7 {
		t.Fatal("descriptor bias does not alias the conv bias tensor")
	}
}

func TestConvDescriptorNormalized(t *testing.T) {
	t.Parallel()

	c := NewConv("conv0", 3, 4, 3, 1, 1, true)
	d := c.Descriptor()

	if d.Kind != darknet.KindConvNorm {
		t.Fatalf("kind: got %v want %v", d.Kind, darknet.KindConvNorm)
	}
	if c.Bias != nil {
		t.Fatal("normalized conv must not carry a conv bias")
	}
	for name, dest := range map[string]darknet.TensorDest{
		"norm bias":   d.NormBias,
		"norm weight": d.NormWeight,
		"norm mean":   d.NormMean,
		"norm var":    d.NormVar,
	} {
		if got, want := dest.Elements(), 4; got != want {
			t.Fatalf("%s elements: got %d want %d", name, got, want)
		}
	}

	d.NormMean.Data[2] = 9
	if c.Norm.RunningMean.Data[2] != 9 {
		t.Fatal("descriptor norm mean does not alias the running mean tensor")
	}
}

func TestBatchNormIdentityInit(t *testing.T) {
	t.Parallel()

	bn := NewBatchNorm(3)
	for i := 0; i < 3; i++ {
		if bn.Weight.Data[i] != 1 || bn.RunningVar.Data[i] != 1 {
			t.Fatal("scale and variance must initialise to one")
		}
		if bn.Bias.Data[i] != 0 || bn.RunningMean.Data[i] != 0 {
			t.Fatal("bias and mean must initialise to zero")
		}
	}
}

func TestExpectedElements(t *testing.T) {
	t.Parallel()

	// Plain: weight 2*1*3*3 + bias 2 = 20.
	plain := NewConv("c", 1, 2, 3, 1, 1, false)
	if got, want := plain.ExpectedElements(), 20; got != want {
		t.Fatalf("plain: got %d want %d", got, want)
	}

	// Normalized: weight 4*1*3*3 + 4 norm tensors of 4 = 52; the running
	// statistics count even though they are not trainable.
	normed := NewConv("c", 1, 4, 3, 1, 1, true)
	if got, want := normed.ExpectedElements(), 52; got != want {
		t.Fatalf("normalized: got %d want %d", got, want)
	}

	if got := (&MaxPool{Name: "p", Size: 2, Stride: 2}).ExpectedElements(); got != 0 {
		t.Fatalf("maxpool: got %d want 0", got)
	}
	if got := (&Upsample{Name: "u", Stride: 2}).ExpectedElements(); got != 0 {
		t.Fatalf("upsample: got %d want 0", got)
	}
}

func TestNetworkDescriptorsOrder(t *testing.T) {
	t.Parallel()

	net := &Network{
		Name: "tiny",
		Modules: []Module{
			NewConv("conv0", 3, 16, 3, 1, 1, true),
			&MaxPool{Name: "pool0", Size: 2, Stride: 2},
			NewConv("conv1", 16, 32, 3, 1, 1, true),
			&Upsample{Name: "up0", Stride: 2},
			NewConv("conv2", 32, 8, 1, 1, 0, false),
		},
	}

	descs := net.Descriptors()
	wantKinds := []darknet.LayerKind{
		darknet.KindConvNorm,
		darknet.KindSkip,
		darknet.KindConvNorm,
		darknet.KindSkip,
		darknet.KindConv,
	}
	if len(descs) != len(wantKinds) {
		t.Fatalf("descriptor count: got %d want %d", len(descs), len(wantKinds))
	}
	for i, k := range wantKinds {
		if descs[i].Kind != k {
			t.Fatalf("layer %d kind: got %v want %v", i, descs[i].Kind, k)
		}
	}

	total := 0
	for i := range descs {
		total += descs[i].Elements()
	}
	if got := net.ExpectedElements(); got != total {
		t.Fatalf("ExpectedElements %d disagrees with descriptor sum %d", got, total)
	}
}

func TestNetworkRoundTrip(t *testing.T) {
	t.Parallel()

	build := func() *Network {
		return &Network{
			Name: "tiny",
			Modules: []Module{
				NewConv("conv0", 3, 4, 3, 1, 1, true),
				&MaxPool{Name: "pool0", Size: 2, Stride: 2},
				NewConv("conv1", 4, 2, 1, 1, 0, false),
			},
		}
	}

	src := build()
	seed := int64(1)
	for _, m := range src.Modules {
		c, ok := m.(*Conv)
		if !ok {
			continue
		}
		tensor.FillRand(c.Weight, seed)
		seed++
		if c.Bias != nil {
			tensor.FillRand(c.Bias, seed)
			seed++
		}
		if c.Norm != nil {
			for _, tt := range []*tensor.Tensor{c.Norm.Weight, c.Norm.Bias, c.Norm.RunningMean, c.Norm.RunningVar} {
				tensor.FillRand(tt, seed)
				seed++
			}
		}
	}

	path := filepath.Join(t.TempDir(), "tiny.weights")
	hdr := darknet.Header{Minor: 2, Seen: 4800}
	if err := darknet.SaveWeights(path, hdr, src); err != nil {
		t.Fatalf("save: %v", err)
	}

	dst := build()
	ok, err := darknet.LoadWeights(dst, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("payload not drained")
	}

	srcConv0 := src.Modules[0].(*Conv)
	dstConv0 := dst.Modules[0].(*Conv)
	for i := range srcConv0.Weight.Data {
		if math.Float32bits(srcConv0.Weight.Data[i]) != math.Float32bits(dstConv0.Weight.Data[i]) {
			t.Fatalf("conv0 weight[%d] differs after round trip", i)
		}
	}
	for i := range srcConv0.Norm.RunningVar.Data {
		if math.Float32bits(srcConv0.Norm.RunningVar.Data[i]) != math.Float32bits(dstConv0.Norm.RunningVar.Data[i]) {
			t.Fatalf("conv0 running var[%d] differs after round trip", i)
		}
	}
	srcConv1 := src.Modules[2].(*Conv)
	dstConv1 := dst.Modules[2].(*Conv)
	for i := range srcConv1.Bias.Data {
		if math.Float32bits(srcConv1.Bias.Data[i]) != math.Float32bits(dstConv1.Bias.Data[i]) {
			t.Fatalf("conv1 bias[%d] differs after round trip", i)
		}
	}
}
