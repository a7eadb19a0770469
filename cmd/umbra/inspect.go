package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/umbradev/umbra/internal/manifest"
	"github.com/umbradev/umbra/internal/model"
	"github.com/umbradev/umbra/pkg/darknet"
)

func inspectCmd() *cli.Command {
	var (
		file         string
		manifestPath string
		jsonOut      bool
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a darknet .weights checkpoint",
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
				Usage:       "architecture manifest; adds the per-layer consumption plan",
				Destination: &manifestPath,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "emit machine-readable JSON",
				Destination: &jsonOut,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx
			cfg := LoadConfig()
			applyModelsConfig(c, cfg)

			path, err := resolveWeightsArg(file, weightsDir(), os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: resolve weights: %v", err), 1)
			}

			stat, err := os.Stat(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: stat weights path %q: %v", path, err), 1)
			}
			if stat.IsDir() {
				return cli.Exit(fmt.Sprintf("error: %s is a directory", path), 1)
			}

			f, err := darknet.Open(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open weights: %v", err), 1)
			}
			defer func() { _ = f.Close() }()

			var net *model.Network
			if manifestPath != "" {
				man, err := manifest.Load(manifestPath)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: load manifest: %v", err), 1)
				}
				net = man.Build()
			}

			if jsonOut {
				return writeInspectJSON(os.Stdout, path, stat.Size(), f, net)
			}

			fmt.Printf("Weights Inspect: %s\n", path)
			fmt.Printf("File: %s (%s)\n", filepath.Base(path), formatBytes(uint64(stat.Size())))
			printWeightsHeader(f.Header)

			section("Payload")
			rowInt("elements", f.Elements())
			row("data_size", formatBytes(uint64(f.Elements())*4))

			if net != nil {
				printConsumptionPlan(net, f)
			}
			return nil
		},
	}
}

func printWeightsHeader(h darknet.Header) {
	fmt.Printf("Header: %s (major=%d minor=%d revision=%d seen=%d)\n",
		h.Version(), h.Major, h.Minor, h.Revision, h.Seen)
}

// printConsumptionPlan shows where each layer's runs land in the payload
// and whether the file fits the architecture exactly.
func printConsumptionPlan(net *model.Network, f *darknet.File) {
	section("Consumption Plan")
	offset := 0
	for i, d := range net.Descriptors() {
		if d.Kind == darknet.KindSkip {
			fmt.Printf("%3d  %-16s %-10s %s\n", i, d.Name, d.Kind, "-")
			continue
		}
		fmt.Printf("%3d  %-16s %-10s off=%-10d elements=%d\n", i, d.Name, d.Kind, offset, d.Elements())
		for _, r := range d.Runs() {
			fmt.Printf("       %-22s off=%-10d elements=%-8d shape=%s\n",
				r.Name, offset, r.Dest.Elements(), formatShape(r.Dest.Shape))
			offset += r.Dest.Elements()
		}
	}

	section("Fit")
	rowInt("expected_elements", net.ExpectedElements())
	rowInt("payload_elements", f.Elements())
	switch diff := f.Elements() - net.ExpectedElements(); {
	case diff == 0:
		row("verdict", "exact fit")
	case diff > 0:
		row("verdict", fmt.Sprintf("payload has %d extra elements", diff))
	default:
		row("verdict", fmt.Sprintf("payload is short %d elements", -diff))
	}
}

type inspectReport struct {
	File         string      `json:"file"`
	Model        string      `json:"model"`
	SizeBytes    int64       `json:"size_bytes"`
	Version      string      `json:"version"`
	Major        int32       `json:"major"`
	Minor        int32       `json:"minor"`
	Revision     int32       `json:"revision"`
	Seen         int32       `json:"seen"`
	Elements     int         `json:"elements"`
	PayloadBytes int64       `json:"payload_bytes"`
	Plan         []planEntry `json:"plan,omitempty"`
	Fit          *planFit    `json:"fit,omitempty"`
}

type planEntry struct {
	Index    int       `json:"index"`
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	Offset   int       `json:"offset"`
	Elements int       `json:"elements"`
	Runs     []planRun `json:"runs,omitempty"`
}

type planRun struct {
	Name     string `json:"name"`
	Offset   int    `json:"offset"`
	Elements int    `json:"elements"`
	Shape    []int  `json:"shape,omitempty"`
}

type planFit struct {
	ExpectedElements int  `json:"expected_elements"`
	PayloadElements  int  `json:"payload_elements"`
	Exact            bool `json:"exact"`
}

func writeInspectJSON(w io.Writer, path string, size int64, f *darknet.File, net *model.Network) error {
	report := inspectReport{
		File:         path,
		Model:        modelNameFromPath(path),
		SizeBytes:    size,
		Version:      f.Header.Version(),
		Major:        f.Header.Major,
		Minor:        f.Header.Minor,
		Revision:     f.Header.Revision,
		Seen:         f.Header.Seen,
		Elements:     f.Elements(),
		PayloadBytes: int64(f.Elements()) * 4,
	}
	if net != nil {
		report.Plan = buildPlan(net)
		report.Fit = &planFit{
			ExpectedElements: net.ExpectedElements(),
			PayloadElements:  f.Elements(),
			Exact:            net.ExpectedElements() == f.Elements(),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func buildPlan(net *model.Network) []planEntry {
	descriptors := net.Descriptors()
	entries := make([]planEntry, 0, len(descriptors))
	offset := 0
	for i, d := range descriptors {
		entry := planEntry{
			Index:    i,
			Name:     d.Name,
			Kind:     d.Kind.String(),
			Offset:   offset,
			Elements: d.Elements(),
		}
		for _, r := range d.Runs() {
			entry.Runs = append(entry.Runs, planRun{
				Name:     r.Name,
				Offset:   offset,
				Elements: r.Dest.Elements(),
				Shape:    r.Dest.Shape,
			})
			offset += r.Dest.Elements()
		}
		entries = append(entries, entry)
	}
	return entries
}

func section(title string) {
	line := strings.Repeat("-", len(title)+8)
	fmt.Printf("\n%s\n--- %s ---\n%s\n", line, title, line)
}

func row(label, value string) {
	if value == "" {
		return
	}
	fmt.Printf("%-24s %s\n", label+":", value)
}

func rowInt(label string, v int) {
	if v == 0 {
		return
	}
	row(label, fmt.Sprintf("%d", v))
}

func formatShape(shape []int) string {
	if len(shape) == 0 {
		return "[]"
	}
	parts := make([]string, len(shape))
	for i, v := range shape {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
		tb = 1024 * gb
	)
	switch {
	case b >= tb:
		return fmt.Sprintf("%.2f TiB", float64(b)/float64(tb))
	case b >= gb:
		return fmt.Sprintf("%.2f GiB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MiB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KiB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
