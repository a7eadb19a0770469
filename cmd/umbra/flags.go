package main

import "github.com/urfave/cli/v3"

var (
	modelsDir string
	logLevel  string
	logFormat string
	debug     bool
)

func commonWeightsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "models-dir",
			Aliases:     []string{"dir"},
			Usage:       "path to directory containing .weights checkpoints",
			Destination: &modelsDir,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
