package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/umbradev/umbra/internal/logger"
	"github.com/umbradev/umbra/internal/manifest"
	"github.com/umbradev/umbra/internal/model"
	"github.com/umbradev/umbra/pkg/darknet"
)

func loadCmd() *cli.Command {
	var (
		file         string
		manifestPath string
		dumpPath     string
		showTensors  bool
	)

	return &cli.Command{
		Name:  "load",
		Usage: "Load a checkpoint into a manifest-described network",
		Flags: append(commonWeightsFlags(),
			&cli.StringFlag{
				Name:        "weights",
				Aliases:     []string{"w"},
				Usage:       "path to .weights file",
				Destination: &file,
			},
			&cli.StringFlag{
				Name:        "manifest",
				Aliases:     []string{"f"},
				Usage:       "architecture manifest describing the destination network",
				Destination: &manifestPath,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "dump",
				Usage:       "write loaded tensors as JSON to this file (- for stdout)",
				Destination: &dumpPath,
			},
			&cli.BoolFlag{
				Name:        "tensors",
				Usage:       "print per-tensor statistics after loading",
				Destination: &showTensors,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			cfg := LoadConfig()
			applyModelsConfig(c, cfg)

			path, err := resolveWeightsArg(file, weightsDir(), os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: resolve weights: %v", err), 1)
			}

			man, err := manifest.Load(manifestPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load manifest: %v", err), 1)
			}
			net := man.Build()

			f, err := darknet.Open(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open weights: %v", err), 1)
			}
			defer func() { _ = f.Close() }()

			name := modelNameFromPath(path)
			fmt.Printf("Loading %s %s...\n", name, f.Header.Version())

			start := time.Now()
			complete, err := darknet.Load(net, f)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load weights: %v", err), 1)
			}
			if !complete {
				log.Warn("payload not fully consumed", "weights", path)
			}

			fmt.Printf("Loaded %d elements into %d modules in %s\n",
				f.Elements(), len(net.Modules), time.Since(start).Round(time.Millisecond))

			if showTensors {
				printTensorStats(net)
			}

			if dumpPath != "" {
				if err := dumpTensors(dumpPath, name, f.Header, net); err != nil {
					return cli.Exit(fmt.Sprintf("error: dump tensors: %v", err), 1)
				}
				if dumpPath != "-" {
					log.Info("tensor dump written", "path", dumpPath)
				}
			}
			return nil
		},
	}
}

func printTensorStats(net *model.Network) {
	section("Tensors")
	for i, d := range net.Descriptors() {
		if d.Kind == darknet.KindSkip {
			continue
		}
		for _, r := range d.Runs() {
			mn, mx, mean := tensorStats(r.Dest.Data)
			fmt.Printf("%3d  %-16s %-22s shape=%-14s min=%-12g max=%-12g mean=%g\n",
				i, d.Name, r.Name, formatShape(r.Dest.Shape), mn, mx, mean)
		}
	}
}

func tensorStats(data []float32) (mn, mx float32, mean float64) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	mn, mx = data[0], data[0]
	var sum float64
	for _, v := range data {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
		sum += float64(v)
	}
	return mn, mx, sum / float64(len(data))
}

type tensorDump struct {
	Model   string      `json:"model"`
	Version string      `json:"version"`
	Layers  []layerDump `json:"layers"`
}

type layerDump struct {
	Name    string       `json:"name"`
	Kind    string       `json:"kind"`
	Tensors []tensorInfo `json:"tensors,omitempty"`
}

type tensorInfo struct {
	Name     string    `json:"name"`
	Shape    []int     `json:"shape"`
	Elements int       `json:"elements"`
	Preview  []float32 `json:"preview"`
	Sum      float64   `json:"sum"`
}

func dumpTensors(path, name string, hdr darknet.Header, net *model.Network) error {
	dump := tensorDump{
		Model:   name,
		Version: hdr.Version(),
	}
	for _, d := range net.Descriptors() {
		ld := layerDump{Name: d.Name, Kind: d.Kind.String()}
		for _, r := range d.Runs() {
			preview := r.Dest.Data
			if len(preview) > 8 {
				preview = preview[:8]
			}
			var sum float64
			for _, v := range r.Dest.Data {
				sum += float64(v)
			}
			ld.Tensors = append(ld.Tensors, tensorInfo{
				Name:     r.Name,
				Shape:    r.Dest.Shape,
				Elements: r.Dest.Elements(),
				Preview:  preview,
				Sum:      sum,
			})
		}
		dump.Layers = append(dump.Layers, ld)
	}

	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dump)
}
