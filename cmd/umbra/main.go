package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/umbradev/umbra/internal/logger"
)

func main() {
	app := &cli.Command{
		Name:  "umbra",
		Usage: "Darknet weights toolkit",
		Flags: loggingFlags(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			cfg := LoadConfig()
			if cfg.LogLevel != "" && !c.IsSet("log-level") {
				logLevel = cfg.LogLevel
			}
			if cfg.LogFormat != "" && !c.IsSet("log-format") {
				logFormat = cfg.LogFormat
			}
			if debug {
				logLevel = "debug"
			}
			log := logger.Setup(os.Stderr, logFormat, logLevel)
			return logger.WithContext(ctx, log), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			inspectCmd(),
			verifyCmd(),
			loadCmd(),
			partialCmd(),
			listModelsCmd(),
			serveCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
