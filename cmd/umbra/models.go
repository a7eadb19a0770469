package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/umbradev/umbra/internal/logger"
	"github.com/umbradev/umbra/pkg/darknet"
)

func listModelsCmd() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls", "models"},
		Usage:   "List available .weights checkpoints",
		Flags:   commonWeightsFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			cfg := LoadConfig()
			applyModelsConfig(cmd, cfg)

			dir := weightsDir()
			if dir == "" {
				return cli.Exit(fmt.Sprintf("error: --models-dir is required unless %s is set", envUmbraModelsDir), 1)
			}

			files, err := discoverWeightsFiles(dir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(files) == 0 {
				log.Info("no checkpoints found", "path", dir)
				return nil
			}

			fmt.Printf("Checkpoints in %s:\n\n", dir)
			for _, p := range files {
				name := filepath.Base(p)
				info, err := os.Stat(p)
				if err != nil {
					fmt.Printf("  %s\n", name)
					continue
				}
				size := formatModelSize(info.Size())

				// Pull the version out of the header when the file parses.
				ver := ""
				if f, err := darknet.Open(p); err == nil {
					ver = f.Header.Version()
					_ = f.Close()
				}

				if ver != "" {
					fmt.Printf("  %-40s %8s  (%s)\n", name, size, ver)
				} else {
					fmt.Printf("  %-40s %8s\n", name, size)
				}
			}
			fmt.Printf("\n%d checkpoint(s) found\n", len(files))
			return nil
		},
	}
}

func formatModelSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
