package mcpbridge

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uipilot"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// Controller drives a device through an MCP server exposing accessibility
// based tools (screenshot, tap, swipe, and friends). It satisfies
// uipilot.DeviceController with the accessibility execution strategy.
type Controller struct {
	path    string
	args    []string
	envVars []string

	client     *client.Client
	initResult *mcp.InitializeResult
}

var _ uipilot.DeviceController = (*Controller)(nil)

// Option is a function that configures a Controller.
type Option func(*Controller)

// WithEnvVars sets the environment variables for the MCP server process. It
// appends to the existing ones.
func WithEnvVars(envVars []string) Option {
	return func(c *Controller) {
		c.envVars = append(c.envVars, envVars...)
	}
}

// New creates a Controller that spawns the given MCP server command over
// stdio. Call Start before use and Close when done.
func New(path string, args []string, options ...Option) *Controller {
	c := &Controller{
		path: path,
		args: args,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Start launches the MCP server process and performs the initialize
// handshake.
func (c *Controller) Start(ctx context.Context) error {
	tp := transport.NewStdio(c.path, c.envVars, c.args...)
	c.client = client.NewClient(tp)

	if err := c.client.Start(ctx); err != nil {
		return goerr.Wrap(err, "failed to start MCP client")
	}

	var initRequest mcp.InitializeRequest
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "uipilot",
		Version: "1.0.0",
	}

	resp, err := c.client.Initialize(ctx, initRequest)
	if err != nil {
		return goerr.Wrap(err, "failed to initialize MCP client")
	}
	c.initResult = resp
	return nil
}

// Close shuts down the MCP server process.
func (c *Controller) Close() error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close MCP client")
	}
	return nil
}

// Strategy reports accessibility-based execution.
func (c *Controller) Strategy() uipilot.ExecStrategy {
	return uipilot.StrategyAccessibility
}

func (c *Controller) callTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	if c.initResult == nil {
		return nil, goerr.New("MCP client not initialized")
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	resp, err := c.client.CallTool(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call tool", goerr.V("tool", name))
	}
	if resp.IsError {
		return nil, goerr.New("tool returned error", goerr.V("tool", name),
			goerr.V("content", textContent(resp.Content)))
	}
	return resp, nil
}

// Screenshot calls the screenshot tool. The server returns image content or
// base64 text; secure screens are reported with a sensitive flag.
func (c *Controller) Screenshot(ctx context.Context) (uipilot.Screenshot, error) {
	resp, err := c.callTool(ctx, "screenshot", map[string]any{})
	if err != nil {
		return uipilot.Screenshot{}, err
	}

	for _, content := range resp.Content {
		if img, ok := content.(*mcp.ImageContent); ok {
			raw, err := base64.StdEncoding.DecodeString(img.Data)
			if err != nil {
				return uipilot.Screenshot{}, goerr.Wrap(err, "invalid image payload")
			}
			decoded, err := uipilot.NewImage(raw)
			if err != nil {
				return uipilot.Screenshot{}, err
			}
			return uipilot.Screenshot{
				Image:     decoded,
				Sensitive: strings.Contains(textContent(resp.Content), "sensitive"),
			}, nil
		}
	}

	return uipilot.Screenshot{}, goerr.New("no image content in screenshot response")
}

// ScreenSize calls the screen_size tool, which returns "WxH" text.
func (c *Controller) ScreenSize(ctx context.Context) (int, int, error) {
	resp, err := c.callTool(ctx, "screen_size", map[string]any{})
	if err != nil {
		return 0, 0, err
	}

	text := strings.TrimSpace(textContent(resp.Content))
	parts := strings.SplitN(text, "x", 2)
	if len(parts) != 2 {
		return 0, 0, goerr.New("unparsable screen size", goerr.V("text", text))
	}
	width, werr := strconv.Atoi(strings.TrimSpace(parts[0]))
	height, herr := strconv.Atoi(strings.TrimSpace(parts[1]))
	if werr != nil || herr != nil || width <= 0 || height <= 0 {
		return 0, 0, goerr.New("invalid screen size", goerr.V("text", text))
	}
	return width, height, nil
}

// Tap issues a tap at absolute pixel coordinates.
func (c *Controller) Tap(ctx context.Context, x, y int) error {
	_, err := c.callTool(ctx, "tap", map[string]any{"x": x, "y": y})
	return err
}

// DoubleTap issues a double tap.
func (c *Controller) DoubleTap(ctx context.Context, x, y int) error {
	_, err := c.callTool(ctx, "double_tap", map[string]any{"x": x, "y": y})
	return err
}

// LongPress holds a touch at the point.
func (c *Controller) LongPress(ctx context.Context, x, y int) error {
	_, err := c.callTool(ctx, "long_press", map[string]any{"x": x, "y": y})
	return err
}

// Swipe drags from one point to another.
func (c *Controller) Swipe(ctx context.Context, x, y, x2, y2 int) error {
	_, err := c.callTool(ctx, "swipe", map[string]any{
		"x": x, "y": y, "x2": x2, "y2": y2,
	})
	return err
}

// Type enters text into the focused field.
func (c *Controller) Type(ctx context.Context, text string) error {
	_, err := c.callTool(ctx, "type_text", map[string]any{"text": text})
	return err
}

// Back presses the system back key.
func (c *Controller) Back(ctx context.Context) error {
	_, err := c.callTool(ctx, "back", map[string]any{})
	return err
}

// Home presses the system home key.
func (c *Controller) Home(ctx context.Context) error {
	_, err := c.callTool(ctx, "home", map[string]any{})
	return err
}

// OpenApp launches an app by package name or visible label.
func (c *Controller) OpenApp(ctx context.Context, packageOrLabel string) error {
	_, err := c.callTool(ctx, "open_app", map[string]any{"app": packageOrLabel})
	return err
}

// ExecShell runs a shell command on the device when the server allows it.
func (c *Controller) ExecShell(ctx context.Context, command string) (string, error) {
	resp, err := c.callTool(ctx, "shell", map[string]any{"command": command})
	if err != nil {
		return "", err
	}
	return textContent(resp.Content), nil
}

func textContent(contents []mcp.Content) string {
	var b strings.Builder
	for _, content := range contents {
		if txt, ok := content.(*mcp.TextContent); ok {
			b.WriteString(txt.Text)
		}
	}
	return b.String()
}
