// Package manifest describes network architectures as JSON, so the CLI
// and service can build destination models for any weights file without
// code changes. The layer vocabulary covers what darknet checkpoints
// care about: convolutions (normalized or plain) and the parameter-free
// layers that sit between them.
package manifest

import (
	"errors"
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/umbradev/umbra/internal/model"
)

var ErrInvalidManifest = errors.New("invalid manifest")

// Layer is one architecture entry. Type selects which fields apply:
//
//	conv      filters, size, stride (default 1), pad, batch_normalize
//	maxpool   size, stride (default size)
//	upsample  stride (default 2)
type Layer struct {
	Type           string `json:"type"`
	Filters        int    `json:"filters,omitempty"`
	Size           int    `json:"size,omitempty"`
	Stride         int    `json:"stride,omitempty"`
	Pad            int    `json:"pad,omitempty"`
	BatchNormalize bool   `json:"batch_normalize,omitempty"`
}

// Manifest is a JSON description of a convolutional network: the input
// channel count and the ordered layer list.
type Manifest struct {
	Name     string  `json:"name"`
	Channels int     `json:"channels"`
	Layers   []Layer `json:"layers"`
}

// Parse decodes manifest JSON, applies per-type defaults and validates.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	m.applyDefaults()
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func (m *Manifest) applyDefaults() {
	for i := range m.Layers {
		l := &m.Layers[i]
		switch l.Type {
		case "conv":
			if l.Stride == 0 {
				l.Stride = 1
			}
		case "maxpool":
			if l.Stride == 0 {
				l.Stride = l.Size
			}
		case "upsample":
			if l.Stride == 0 {
				l.Stride = 2
			}
		}
	}
}

func (m *Manifest) validate() error {
	if m.Channels <= 0 {
		return fmt.Errorf("%w: channels must be positive, got %d", ErrInvalidManifest, m.Channels)
	}
	if len(m.Layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrInvalidManifest)
	}
	for i, l := range m.Layers {
		switch l.Type {
		case "conv":
			if l.Filters <= 0 {
				return fmt.Errorf("%w: layer %d: conv filters must be positive", ErrInvalidManifest, i)
			}
			if l.Size <= 0 {
				return fmt.Errorf("%w: layer %d: conv size must be positive", ErrInvalidManifest, i)
			}
			if l.Stride <= 0 {
				return fmt.Errorf("%w: layer %d: conv stride must be positive", ErrInvalidManifest, i)
			}
			if l.Pad < 0 {
				return fmt.Errorf("%w: layer %d: conv pad must not be negative", ErrInvalidManifest, i)
			}
		case "maxpool":
			if l.Size <= 0 {
				return fmt.Errorf("%w: layer %d: maxpool size must be positive", ErrInvalidManifest, i)
			}
			if l.Stride <= 0 {
				return fmt.Errorf("%w: layer %d: maxpool stride must be positive", ErrInvalidManifest, i)
			}
		case "upsample":
			if l.Stride <= 0 {
				return fmt.Errorf("%w: layer %d: upsample stride must be positive", ErrInvalidManifest, i)
			}
		default:
			return fmt.Errorf("%w: layer %d: unknown type %q", ErrInvalidManifest, i, l.Type)
		}
	}
	return nil
}

// Build constructs the destination network with zero-initialised tensors,
// threading the channel count through the layer list.
func (m *Manifest) Build() *model.Network {
	net := &model.Network{
		Name:    m.Name,
		Modules: make([]model.Module, 0, len(m.Layers)),
	}
	ch := m.Channels
	for i, l := range m.Layers {
		name := fmt.Sprintf("%s%d", l.Type, i)
		switch l.Type {
		case "conv":
			net.Modules = append(net.Modules,
				model.NewConv(name, ch, l.Filters, l.Size, l.Stride, l.Pad, l.BatchNormalize))
			ch = l.Filters
		case "maxpool":
			net.Modules = append(net.Modules, &model.MaxPool{Name: name, Size: l.Size, Stride: l.Stride})
		case "upsample":
			net.Modules = append(net.Modules, &model.Upsample{Name: name, Stride: l.Stride})
		}
	}
	return net
}
