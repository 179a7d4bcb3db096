package uipilot

import (
	"fmt"
	"strings"
)

// ActionKind identifies a device action the model may request.
type ActionKind string

const (
	ActionTap       ActionKind = "tap"
	ActionDoubleTap ActionKind = "double_tap"
	ActionLongPress ActionKind = "long_press"
	ActionSwipe     ActionKind = "swipe"
	ActionTypeText  ActionKind = "type_text"
	ActionLaunch    ActionKind = "launch"
	ActionBack      ActionKind = "back"
	ActionHome      ActionKind = "home"
	ActionWait      ActionKind = "wait"
	ActionTakeOver  ActionKind = "take_over"
	ActionAnswer    ActionKind = "answer"
	ActionFinish    ActionKind = "finish"

	// ActionInvalid marks a well-formed call with an unrecognized name. It
	// is recorded in history but never dispatched.
	ActionInvalid ActionKind = "invalid"
)

// Action is one parsed device operation. Coordinates are in the model's
// normalized 0..999 space until dispatch resolves them to pixels.
type Action struct {
	Kind ActionKind

	// X, Y is the primary point; X2, Y2 the secondary point for swipes.
	X, Y   int
	X2, Y2 int

	// Text carries typed text, answer or finish messages.
	Text string

	// App is the target package or label for launches.
	App string

	// Seconds is the wait duration.
	Seconds float64

	// Raw preserves the model output this action was parsed from.
	Raw string
}

// IsTerminal reports whether the action ends the run.
func (a Action) IsTerminal() bool {
	return a.Kind == ActionFinish || a.Kind == ActionAnswer
}

// NeedsCoordinates reports whether the action carries a screen point.
func (a Action) NeedsCoordinates() bool {
	switch a.Kind {
	case ActionTap, ActionDoubleTap, ActionLongPress, ActionSwipe:
		return true
	}
	return false
}

// dslName maps kinds to the names used in the do() call grammar.
var dslName = map[ActionKind]string{
	ActionTap:       "Tap",
	ActionDoubleTap: "Double Tap",
	ActionLongPress: "Long Press",
	ActionSwipe:     "Swipe",
	ActionTypeText:  "Type",
	ActionLaunch:    "Launch",
	ActionBack:      "Back",
	ActionHome:      "Home",
	ActionWait:      "Wait",
	ActionTakeOver:  "Take Over",
	ActionAnswer:    "Answer",
	ActionFinish:    "Finish",
}

// DSL renders the action back into the call grammar the model emits.
// ParseAction(a.DSL()) reproduces the action.
func (a Action) DSL() string {
	switch a.Kind {
	case ActionFinish:
		return fmt.Sprintf("finish(message=%q)", a.Text)
	case ActionSwipe:
		return fmt.Sprintf("do(action=%q, element=[%d,%d], end=[%d,%d])",
			dslName[a.Kind], a.X, a.Y, a.X2, a.Y2)
	case ActionTypeText:
		return fmt.Sprintf("do(action=%q, text=%q)", dslName[a.Kind], a.Text)
	case ActionLaunch:
		return fmt.Sprintf("do(action=%q, app=%q)", dslName[a.Kind], a.App)
	case ActionWait:
		return fmt.Sprintf("do(action=%q, seconds=%g)", dslName[a.Kind], a.Seconds)
	case ActionTakeOver, ActionAnswer:
		return fmt.Sprintf("do(action=%q, message=%q)", dslName[a.Kind], a.Text)
	case ActionBack, ActionHome:
		return fmt.Sprintf("do(action=%q)", dslName[a.Kind])
	default:
		if a.NeedsCoordinates() {
			return fmt.Sprintf("do(action=%q, element=[%d,%d])", dslName[a.Kind], a.X, a.Y)
		}
		return fmt.Sprintf("do(action=%q)", dslName[a.Kind])
	}
}

// String renders a short human readable form for logs and history digests.
func (a Action) String() string {
	switch a.Kind {
	case ActionTap, ActionDoubleTap, ActionLongPress:
		return fmt.Sprintf("%s(%d,%d)", a.Kind, a.X, a.Y)
	case ActionSwipe:
		return fmt.Sprintf("swipe(%d,%d -> %d,%d)", a.X, a.Y, a.X2, a.Y2)
	case ActionTypeText:
		return fmt.Sprintf("type(%s)", truncate(a.Text, 40))
	case ActionLaunch:
		return fmt.Sprintf("launch(%s)", a.App)
	case ActionWait:
		return fmt.Sprintf("wait(%gs)", a.Seconds)
	case ActionTakeOver, ActionAnswer, ActionFinish:
		return fmt.Sprintf("%s(%s)", a.Kind, truncate(a.Text, 40))
	case ActionInvalid:
		return fmt.Sprintf("invalid(%s)", truncate(a.Raw, 40))
	default:
		return string(a.Kind)
	}
}

func truncate(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
