package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "uipilot",
		Usage: "Autonomous device control driven by a vision language model",
		Commands: []*cli.Command{
			runCommand(),
			replayCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
