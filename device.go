package uipilot

import "context"

// ExecStrategy identifies which backing execution path served a call, for
// diagnostics. The driver is agnostic to which one is in use.
type ExecStrategy string

const (
	// StrategyShell executes gestures through a privileged shell.
	StrategyShell ExecStrategy = "shell"

	// StrategyAccessibility executes gestures through an accessibility
	// tree based service.
	StrategyAccessibility ExecStrategy = "accessibility"
)

// Screenshot is the result of one capture.
type Screenshot struct {
	Image Image

	// Sensitive is set when the OS refused the capture because the screen
	// shows protected content. The driver suspends for human confirmation
	// instead of terminating.
	Sensitive bool

	// Fallback is set when the primary capture path failed and a degraded
	// one served the call.
	Fallback bool
}

// DeviceController is the boundary to the device. Implementations must
// hide any of their own on-screen overlays before capturing so the overlay
// is not misread as target UI, and should serialize access when shared
// between runs.
type DeviceController interface {
	Screenshot(ctx context.Context) (Screenshot, error)
	ScreenSize(ctx context.Context) (width, height int, err error)

	Tap(ctx context.Context, x, y int) error
	DoubleTap(ctx context.Context, x, y int) error
	LongPress(ctx context.Context, x, y int) error
	Swipe(ctx context.Context, x1, y1, x2, y2 int) error
	Type(ctx context.Context, text string) error
	Back(ctx context.Context) error
	Home(ctx context.Context) error

	// OpenApp launches an app by package name or label. Delegation deep
	// links are also dispatched through this method.
	OpenApp(ctx context.Context, packageOrLabel string) error

	// ExecShell runs a raw shell command, used for foreground app
	// detection and deep link dispatch.
	ExecShell(ctx context.Context, cmd string) (string, error)

	// Strategy reports which execution path serves calls.
	Strategy() ExecStrategy
}
