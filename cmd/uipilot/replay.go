package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/uipilot"
	"github.com/m-mizutani/uipilot/device/adb"
	"github.com/urfave/cli/v3"
)

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Replay a recorded script without a model",
		ArgsUsage: "<script.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "serial",
				Sources: cli.EnvVars("UIPILOT_SERIAL"),
				Usage:   "Device serial for adb",
			},
			&cli.StringSliceFlag{
				Name:  "bind",
				Usage: "Parameter binding as name=value, repeatable",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("script path is required")
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read script: %w", err)
			}
			var script uipilot.Script
			if err := json.Unmarshal(data, &script); err != nil {
				return fmt.Errorf("failed to parse script: %w", err)
			}

			bindings := map[string]string{}
			for _, b := range cmd.StringSlice("bind") {
				name, value, ok := strings.Cut(b, "=")
				if !ok {
					return fmt.Errorf("invalid binding %q, expected name=value", b)
				}
				bindings[name] = value
			}

			opts := []adb.Option{}
			if serial := cmd.String("serial"); serial != "" {
				opts = append(opts, adb.WithSerial(serial))
			}
			device := adb.New(opts...)

			if err := script.Replay(ctx, device, bindings); err != nil {
				return err
			}
			fmt.Printf("replayed %d steps\n", len(script.Steps))
			return nil
		},
	}
}
