package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/umbradev/umbra/internal/logger"
	"github.com/umbradev/umbra/internal/manifest"
	"github.com/umbradev/umbra/pkg/darknet"
)

type verifyResult struct {
	File             string `json:"file"`
	Model            string `json:"model"`
	Version          string `json:"version,omitempty"`
	ExpectedElements int    `json:"expected_elements"`
	PayloadElements  int    `json:"payload_elements"`
	OK               bool   `json:"ok"`
	Problem          string `json:"problem,omitempty"`
}

func verifyCmd() *cli.Command {
	var (
		manifestPath string
		jobs         int64
		jsonOut      bool
	)

	return &cli.Command{
		Name:      "verify",
		Usage:     "Verify checkpoints against an architecture manifest",
		ArgsUsage: "[WEIGHTS...]",
		Flags: append(commonWeightsFlags(),
			&cli.StringFlag{
				Name:        "manifest",
				Aliases:     []string{"f"},
				Usage:       "architecture manifest to verify against",
				Destination: &manifestPath,
				Required:    true,
			},
			&cli.Int64Flag{
				Name:        "jobs",
				Aliases:     []string{"j"},
				Usage:       "max concurrent verifications",
				Value:       int64(runtime.NumCPU()),
				Destination: &jobs,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "emit machine-readable JSON",
				Destination: &jsonOut,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			cfg := LoadConfig()
			applyVerifyConfig(c, cfg, &jobs)
			if jobs < 1 {
				jobs = 1
			}

			man, err := manifest.Load(manifestPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load manifest: %v", err), 1)
			}

			paths, err := verifyTargets(c.Args().Slice())
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(paths) == 0 {
				log.Info("no checkpoints to verify", "path", weightsDir())
				return nil
			}

			results := make([]verifyResult, len(paths))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(int(jobs))
			for i, path := range paths {
				g.Go(func() error {
					if err := gctx.Err(); err != nil {
						return err
					}
					results[i] = verifyOne(man, path)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return cli.Exit(fmt.Sprintf("error: verify: %v", err), 1)
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return cli.Exit(fmt.Sprintf("error: encode results: %v", err), 1)
				}
			} else {
				printVerifyResults(results)
			}

			failed := 0
			for _, r := range results {
				if !r.OK {
					failed++
				}
			}
			if failed > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d checkpoints failed verification", failed, len(results)), 1)
			}
			return nil
		},
	}
}

// verifyTargets resolves the positional arguments, or discovers every
// checkpoint in the models directory when none were given.
func verifyTargets(args []string) ([]string, error) {
	dir := weightsDir()
	if len(args) == 0 {
		if dir == "" {
			return nil, fmt.Errorf("--models-dir is required unless %s is set or checkpoints are given", envUmbraModelsDir)
		}
		return discoverWeightsFiles(dir)
	}
	paths := make([]string, 0, len(args))
	for _, arg := range args {
		path, err := resolveWeightsArg(arg, dir, os.Stdin, os.Stderr)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// verifyOne builds a fresh destination network per file; loading mutates
// the tensors, so results must not share one.
func verifyOne(man *manifest.Manifest, path string) verifyResult {
	net := man.Build()
	result := verifyResult{
		File:             path,
		Model:            modelNameFromPath(path),
		ExpectedElements: net.ExpectedElements(),
	}

	f, err := darknet.Open(path)
	if err != nil {
		result.Problem = err.Error()
		return result
	}
	defer func() { _ = f.Close() }()

	result.Version = f.Header.Version()
	result.PayloadElements = f.Elements()

	complete, err := darknet.Load(net, f)
	switch {
	case err != nil:
		result.Problem = err.Error()
	case !complete:
		result.Problem = "payload not fully consumed"
	default:
		result.OK = true
	}
	return result
}

func printVerifyResults(results []verifyResult) {
	for _, r := range results {
		if r.OK {
			fmt.Printf("ok    %s (%s, %d elements)\n", r.File, r.Version, r.PayloadElements)
		} else {
			fmt.Printf("FAIL  %s: %s\n", r.File, r.Problem)
		}
	}
}
