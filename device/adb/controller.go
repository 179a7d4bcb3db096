package adb

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uipilot"
)

var (
	// adbCommandScope is the logging scope for adb invocations
	adbCommandScope = ctxlog.NewScope("adb_command", ctxlog.EnabledBy("UIPILOT_LOGGING_ADB"))
)

// Controller drives a device over the adb command line tool. It satisfies
// uipilot.DeviceController with the shell execution strategy.
type Controller struct {
	// adbPath is the adb binary. Defaults to "adb" on PATH.
	adbPath string

	// serial selects a device when several are attached.
	serial string

	// swipeDurationMS is passed to input swipe.
	swipeDurationMS int

	// longPressDurationMS is the hold time for long presses.
	longPressDurationMS int
}

var _ uipilot.DeviceController = (*Controller)(nil)

// Option is a function that configures a Controller.
type Option func(*Controller)

// WithADBPath sets the adb binary path.
func WithADBPath(path string) Option {
	return func(c *Controller) {
		c.adbPath = path
	}
}

// WithSerial targets a specific device serial.
func WithSerial(serial string) Option {
	return func(c *Controller) {
		c.serial = serial
	}
}

// WithSwipeDuration sets the swipe gesture duration in milliseconds.
func WithSwipeDuration(ms int) Option {
	return func(c *Controller) {
		c.swipeDurationMS = ms
	}
}

// New creates a Controller. It does not contact the device; the first
// operation does.
func New(options ...Option) *Controller {
	c := &Controller{
		adbPath:             "adb",
		swipeDurationMS:     300,
		longPressDurationMS: 800,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Strategy reports shell-based execution.
func (c *Controller) Strategy() uipilot.ExecStrategy {
	return uipilot.StrategyShell
}

func (c *Controller) run(ctx context.Context, args ...string) ([]byte, error) {
	full := []string{}
	if c.serial != "" {
		full = append(full, "-s", c.serial)
	}
	full = append(full, args...)

	logger := ctxlog.From(ctx, adbCommandScope)
	if logger.Enabled(ctx, slog.LevelInfo) {
		logger.Info("adb command", "args", strings.Join(full, " "))
	}

	cmd := exec.CommandContext(ctx, c.adbPath, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, goerr.Wrap(err, "adb command failed",
			goerr.V("args", strings.Join(args, " ")),
			goerr.V("stderr", stderr.String()))
	}
	return stdout.Bytes(), nil
}

// ExecShell runs a shell command on the device and returns its output.
func (c *Controller) ExecShell(ctx context.Context, command string) (string, error) {
	out, err := c.run(ctx, "shell", command)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Screenshot captures the screen via screencap. Secure screens that refuse
// capture yield a black fallback frame flagged as sensitive, so the run can
// pause for confirmation instead of failing.
func (c *Controller) Screenshot(ctx context.Context) (uipilot.Screenshot, error) {
	out, err := c.run(ctx, "exec-out", "screencap", "-p")
	if err == nil && len(out) > 0 {
		if img, ierr := uipilot.NewImage(out); ierr == nil {
			return uipilot.Screenshot{Image: img}, nil
		}
	}

	sensitive := c.secureWindowPresent(ctx)
	fallback, ferr := c.blankFrame(ctx)
	if ferr != nil {
		if err == nil {
			err = ferr
		}
		return uipilot.Screenshot{}, goerr.Wrap(err, "screen capture failed",
			goerr.V("sensitive", sensitive))
	}

	return uipilot.Screenshot{Image: fallback, Sensitive: sensitive, Fallback: true}, nil
}

// secureWindowPresent checks the window manager for a FLAG_SECURE surface.
func (c *Controller) secureWindowPresent(ctx context.Context) bool {
	out, err := c.ExecShell(ctx, "dumpsys window windows")
	if err != nil {
		return false
	}
	return strings.Contains(out, "FLAG_SECURE")
}

func (c *Controller) blankFrame(ctx context.Context) (uipilot.Image, error) {
	width, height, err := c.ScreenSize(ctx)
	if err != nil {
		return uipilot.Image{}, err
	}

	// Opaque black frame; the sensitive flag tells the driver not to read it.
	frame := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 3; i < len(frame.Pix); i += 4 {
		frame.Pix[i] = 0xFF
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return uipilot.Image{}, goerr.Wrap(err, "failed to encode fallback frame")
	}
	return uipilot.NewImage(buf.Bytes())
}

var screenSizePattern = regexp.MustCompile(`(\d+)x(\d+)`)

// ScreenSize reports the physical screen dimensions in pixels.
func (c *Controller) ScreenSize(ctx context.Context) (int, int, error) {
	out, err := c.ExecShell(ctx, "wm size")
	if err != nil {
		return 0, 0, err
	}

	// Prefer the override size when present; it is the last reported line.
	matches := screenSizePattern.FindAllStringSubmatch(out, -1)
	if len(matches) == 0 {
		return 0, 0, goerr.New("unparsable wm size output", goerr.V("output", out))
	}
	last := matches[len(matches)-1]
	width, _ := strconv.Atoi(last[1])
	height, _ := strconv.Atoi(last[2])
	if width <= 0 || height <= 0 {
		return 0, 0, goerr.New("invalid screen size", goerr.V("output", out))
	}
	return width, height, nil
}

// Tap issues a tap at absolute pixel coordinates.
func (c *Controller) Tap(ctx context.Context, x, y int) error {
	_, err := c.ExecShell(ctx, fmt.Sprintf("input tap %d %d", x, y))
	return err
}

// DoubleTap issues two taps in quick succession.
func (c *Controller) DoubleTap(ctx context.Context, x, y int) error {
	if err := c.Tap(ctx, x, y); err != nil {
		return err
	}
	return c.Tap(ctx, x, y)
}

// LongPress holds a touch at the point. Implemented as a zero-distance
// swipe with a long duration.
func (c *Controller) LongPress(ctx context.Context, x, y int) error {
	_, err := c.ExecShell(ctx, fmt.Sprintf("input swipe %d %d %d %d %d", x, y, x, y, c.longPressDurationMS))
	return err
}

// Swipe drags from one point to another.
func (c *Controller) Swipe(ctx context.Context, x, y, x2, y2 int) error {
	_, err := c.ExecShell(ctx, fmt.Sprintf("input swipe %d %d %d %d %d", x, y, x2, y2, c.swipeDurationMS))
	return err
}

// Type enters text into the focused field.
func (c *Controller) Type(ctx context.Context, text string) error {
	_, err := c.ExecShell(ctx, "input text "+escapeInputText(text))
	return err
}

// Back presses the system back key.
func (c *Controller) Back(ctx context.Context) error {
	_, err := c.ExecShell(ctx, "input keyevent KEYCODE_BACK")
	return err
}

// Home presses the system home key.
func (c *Controller) Home(ctx context.Context) error {
	_, err := c.ExecShell(ctx, "input keyevent KEYCODE_HOME")
	return err
}

// OpenApp launches an app by package name via the launcher intent.
func (c *Controller) OpenApp(ctx context.Context, packageOrLabel string) error {
	cmd := fmt.Sprintf("monkey -p %s -c android.intent.category.LAUNCHER 1", packageOrLabel)
	out, err := c.ExecShell(ctx, cmd)
	if err != nil {
		return err
	}
	if strings.Contains(out, "No activities found") {
		return goerr.New("app not found", goerr.V("package", packageOrLabel))
	}
	return nil
}

// escapeInputText quotes text for adb shell input. Spaces become %s per the
// input command's convention.
func escapeInputText(text string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		` `, `%s`,
		`"`, `\"`,
		`'`, `\'`,
		`&`, `\&`,
		`|`, `\|`,
		`;`, `\;`,
		`<`, `\<`,
		`>`, `\>`,
		`(`, `\(`,
		`)`, `\)`,
		`$`, `\$`,
		"`", "\\`",
	)
	return `"` + replacer.Replace(text) + `"`
}
