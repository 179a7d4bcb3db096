package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/m-mizutani/uipilot"
	"github.com/m-mizutani/uipilot/device/adb"
	"github.com/m-mizutani/uipilot/device/mcpbridge"
	"github.com/m-mizutani/uipilot/llm/claude"
	"github.com/m-mizutani/uipilot/llm/gemini"
	"github.com/m-mizutani/uipilot/llm/openai"
	"github.com/m-mizutani/uipilot/skill"
	"github.com/urfave/cli/v3"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a natural language instruction on the device",
		ArgsUsage: "<instruction>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "provider",
				Value:   "openai",
				Sources: cli.EnvVars("UIPILOT_PROVIDER"),
				Usage:   "Model provider (openai, claude, gemini)",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Sources: cli.EnvVars("UIPILOT_API_KEY"),
				Usage:   "API key for the model provider",
			},
			&cli.StringFlag{
				Name:    "model",
				Sources: cli.EnvVars("UIPILOT_MODEL"),
				Usage:   "Model name override",
			},
			&cli.StringFlag{
				Name:    "base-url",
				Sources: cli.EnvVars("UIPILOT_BASE_URL"),
				Usage:   "Custom API endpoint (openai provider only)",
			},
			&cli.StringFlag{
				Name:    "device",
				Value:   "adb",
				Sources: cli.EnvVars("UIPILOT_DEVICE"),
				Usage:   "Device backend (adb, or a path to an MCP server binary)",
			},
			&cli.StringFlag{
				Name:    "serial",
				Sources: cli.EnvVars("UIPILOT_SERIAL"),
				Usage:   "Device serial for adb",
			},
			&cli.StringFlag{
				Name:    "skills",
				Sources: cli.EnvVars("UIPILOT_SKILLS"),
				Usage:   "Path to a skill registry JSON file",
			},
			&cli.IntFlag{
				Name:    "steps",
				Value:   uipilot.DefaultStepLimit,
				Sources: cli.EnvVars("UIPILOT_STEPS"),
				Usage:   "Maximum number of steps per run",
			},
			&cli.BoolFlag{
				Name:  "single-shot",
				Usage: "Skip planning and reflection, execute directly",
			},
			&cli.BoolFlag{
				Name:  "notes",
				Usage: "Enable cross-step notetaking",
			},
			&cli.BoolFlag{
				Name:  "no-stream",
				Usage: "Disable streaming model output",
			},
			&cli.StringFlag{
				Name:  "record",
				Usage: "Record executed steps into a script file",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			instruction := cmd.Args().First()
			if instruction == "" {
				return fmt.Errorf("instruction is required")
			}

			model, err := buildModel(ctx, cmd)
			if err != nil {
				return err
			}
			device, cleanup, err := buildDevice(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			level := slog.LevelInfo
			if cmd.Bool("debug") {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			opts := []uipilot.Option{
				uipilot.WithStepLimit(int(cmd.Int("steps"))),
				uipilot.WithProgressSink(newConsoleSink(os.Stdout)),
				uipilot.WithLogger(logger),
			}
			if !cmd.Bool("no-stream") {
				opts = append(opts, uipilot.WithStreaming())
			}
			if cmd.Bool("notes") {
				opts = append(opts, uipilot.WithNotetaking())
			}
			if cmd.Bool("single-shot") {
				opts = append(opts, uipilot.WithStages(uipilot.StagesSingleShot))
			}

			if path := cmd.String("skills"); path != "" {
				registry, err := skill.LoadFile(path)
				if err != nil {
					return err
				}
				opts = append(opts, uipilot.WithSkillRegistry(registry))
			}

			var recorder *uipilot.Script
			if path := cmd.String("record"); path != "" {
				recorder = uipilot.NewScript(instruction)
				opts = append(opts, uipilot.WithScriptRecorder(recorder))
				defer func() {
					data, err := json.MarshalIndent(recorder, "", "  ")
					if err != nil {
						logger.Error("failed to encode script", "error", err)
						return
					}
					if err := os.WriteFile(path, data, 0644); err != nil {
						logger.Error("failed to write script", "error", err, "path", path)
					}
				}()
			}

			agent := uipilot.New(device, model, opts...)
			result, err := agent.Run(ctx, instruction)
			if err != nil {
				return err
			}

			fmt.Printf("\n[%s] %s (%d steps)\n", result.Status, result.Message, result.Steps)
			return nil
		},
	}
}

func buildModel(ctx context.Context, cmd *cli.Command) (uipilot.ModelClient, error) {
	apiKey := cmd.String("api-key")
	modelName := cmd.String("model")

	switch cmd.String("provider") {
	case "openai":
		opts := []openai.Option{}
		if modelName != "" {
			opts = append(opts, openai.WithModel(modelName))
		}
		if baseURL := cmd.String("base-url"); baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		return openai.New(ctx, apiKey, opts...)

	case "claude":
		opts := []claude.Option{}
		if modelName != "" {
			opts = append(opts, claude.WithModel(anthropic.Model(modelName)))
		}
		return claude.New(ctx, apiKey, opts...)

	case "gemini":
		opts := []gemini.Option{}
		if modelName != "" {
			opts = append(opts, gemini.WithModel(modelName))
		}
		return gemini.New(ctx, apiKey, opts...)

	default:
		return nil, fmt.Errorf("unknown provider: %s", cmd.String("provider"))
	}
}

func buildDevice(ctx context.Context, cmd *cli.Command) (uipilot.DeviceController, func(), error) {
	backend := cmd.String("device")
	if backend == "adb" {
		opts := []adb.Option{}
		if serial := cmd.String("serial"); serial != "" {
			opts = append(opts, adb.WithSerial(serial))
		}
		return adb.New(opts...), func() {}, nil
	}

	// Anything else is treated as an MCP server command.
	bridge := mcpbridge.New(backend, nil)
	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := bridge.Start(startCtx); err != nil {
		return nil, nil, err
	}
	return bridge, func() { _ = bridge.Close() }, nil
}
