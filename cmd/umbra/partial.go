package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/umbradev/umbra/internal/logger"
	"github.com/umbradev/umbra/internal/manifest"
	"github.com/umbradev/umbra/pkg/darknet"
)

func partialCmd() *cli.Command {
	var (
		file         string
		manifestPath string
		output       string
		layers       int64
	)

	return &cli.Command{
		Name:  "partial",
		Usage: "Save the first N layers of a checkpoint for transfer learning",
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
				Usage:       "architecture manifest describing the source network",
				Destination: &manifestPath,
				Required:    true,
			},
			&cli.Int64Flag{
				Name:        "layers",
				Aliases:     []string{"n"},
				Usage:       "number of leading layers to keep",
				Destination: &layers,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output path (default <name>.conv.<n>.weights)",
				Destination: &output,
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

			if layers < 1 || int(layers) > len(net.Modules) {
				return cli.Exit(fmt.Sprintf("error: --layers must be between 1 and %d", len(net.Modules)), 1)
			}

			f, err := darknet.Open(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open weights: %v", err), 1)
			}
			defer func() { _ = f.Close() }()

			name := modelNameFromPath(path)
			fmt.Printf("Loading %s %s...\n", name, f.Header.Version())

			complete, err := darknet.Load(net, f)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load weights: %v", err), 1)
			}
			if !complete {
				log.Warn("payload not fully consumed", "weights", path)
			}

			kept := net.Descriptors()[:layers]
			elements := 0
			for i := range kept {
				elements += kept[i].Elements()
			}

			// Partial checkpoints restart the image counter.
			hdr := f.Header
			hdr.Seen = 0

			out := output
			if out == "" {
				out = fmt.Sprintf("%s.conv.%d.weights", name, layers)
			}
			if err := darknet.SaveLayers(out, hdr, kept); err != nil {
				return cli.Exit(fmt.Sprintf("error: save partial weights: %v", err), 1)
			}

			fmt.Printf("Saved first %d layers to %s (%d elements)\n", layers, out, elements)
			return nil
		},
	}
}
