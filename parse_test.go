package uipilot_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uipilot"
)

func TestExtractAction(t *testing.T) {
	type testCase struct {
		input    string
		expected string
	}

	runTest := func(tc testCase) func(t *testing.T) {
		return func(t *testing.T) {
			gt.V(t, uipilot.ExtractAction(tc.input)).Equal(tc.expected)
		}
	}

	t.Run("do marker wins over surrounding prose", runTest(testCase{
		input:    "I should tap the icon.\ndo(action=\"Tap\", element=[100,200])\n",
		expected: `do(action="Tap", element=[100,200])`,
	}))

	t.Run("finish marker wins over do marker", runTest(testCase{
		input:    `do(action="Tap", element=[1,2]) finish(message="done")`,
		expected: `finish(message="done")`,
	}))

	t.Run("answer tag fallback", runTest(testCase{
		input:    "<think>reasoning</think><answer>tap the button</answer>",
		expected: "tap the button",
	}))

	t.Run("whole response as last resort", runTest(testCase{
		input:    "  just some text  ",
		expected: "just some text",
	}))
}

func TestExtractThinking(t *testing.T) {
	t.Run("think tag content", func(t *testing.T) {
		got := uipilot.ExtractThinking("<think>the icon is top left</think>do(action=\"Tap\", element=[1,2])")
		gt.V(t, got).Equal("the icon is top left")
	})

	t.Run("unterminated think tag", func(t *testing.T) {
		got := uipilot.ExtractThinking("<think>cut off by token limit")
		gt.V(t, got).Equal("cut off by token limit")
	})

	t.Run("text before marker", func(t *testing.T) {
		got := uipilot.ExtractThinking("I will tap it.\ndo(action=\"Tap\", element=[1,2])")
		gt.V(t, got).Equal("I will tap it.")
	})

	t.Run("no marker no thinking", func(t *testing.T) {
		gt.V(t, uipilot.ExtractThinking("plain text")).Equal("")
	})
}

func TestParseAction(t *testing.T) {
	type testCase struct {
		input    string
		expected uipilot.Action
	}

	runTest := func(tc testCase) func(t *testing.T) {
		return func(t *testing.T) {
			action, err := uipilot.ParseAction(tc.input)
			gt.NoError(t, err)
			action.Raw = ""
			gt.Equal(t, tc.expected, action)
		}
	}

	t.Run("tap with element pair", runTest(testCase{
		input:    `do(action="Tap", element=[123,456])`,
		expected: uipilot.Action{Kind: uipilot.ActionTap, X: 123, Y: 456},
	}))

	t.Run("tap with parenthesized pair", runTest(testCase{
		input:    `do(action="Tap", element=(12, 34))`,
		expected: uipilot.Action{Kind: uipilot.ActionTap, X: 12, Y: 34},
	}))

	t.Run("swipe with start and end", runTest(testCase{
		input:    `do(action="Swipe", element=[100,800], end=[100,200])`,
		expected: uipilot.Action{Kind: uipilot.ActionSwipe, X: 100, Y: 800, X2: 100, Y2: 200},
	}))

	t.Run("type with escaped quote", runTest(testCase{
		input:    `do(action="Type", text="say \"hi\" now")`,
		expected: uipilot.Action{Kind: uipilot.ActionTypeText, Text: `say "hi" now`},
	}))

	t.Run("type with newline escape", runTest(testCase{
		input:    `do(action="Type", text="line1\nline2")`,
		expected: uipilot.Action{Kind: uipilot.ActionTypeText, Text: "line1\nline2"},
	}))

	t.Run("launch by app name", runTest(testCase{
		input:    `do(action="Launch", app="com.tencent.mm")`,
		expected: uipilot.Action{Kind: uipilot.ActionLaunch, App: "com.tencent.mm"},
	}))

	t.Run("action name aliases normalize", runTest(testCase{
		input:    `do(action="double_tap", element=[5,6])`,
		expected: uipilot.Action{Kind: uipilot.ActionDoubleTap, X: 5, Y: 6},
	}))

	t.Run("wait with bare seconds", runTest(testCase{
		input:    `do(action="Wait", seconds=2.5)`,
		expected: uipilot.Action{Kind: uipilot.ActionWait, Seconds: 2.5},
	}))

	t.Run("back has no params", runTest(testCase{
		input:    `do(action="Back")`,
		expected: uipilot.Action{Kind: uipilot.ActionBack},
	}))

	t.Run("take over carries message", runTest(testCase{
		input:    `do(action="Take Over", message="enter your PIN")`,
		expected: uipilot.Action{Kind: uipilot.ActionTakeOver, Text: "enter your PIN"},
	}))

	t.Run("finish call", runTest(testCase{
		input:    `finish(message="task complete")`,
		expected: uipilot.Action{Kind: uipilot.ActionFinish, Text: "task complete"},
	}))

	t.Run("structured json form", runTest(testCase{
		input:    `{"action":"tap","coordinate":[320.0,480.0]}`,
		expected: uipilot.Action{Kind: uipilot.ActionTap, X: 320, Y: 480},
	}))

	t.Run("structured right button becomes long press", runTest(testCase{
		input:    `{"action":"click","coordinate":[10,20],"button":"right"}`,
		expected: uipilot.Action{Kind: uipilot.ActionLongPress, X: 10, Y: 20},
	}))
}

func TestParseActionStructuredRawKept(t *testing.T) {
	action, err := uipilot.ParseAction(`{"action":"swipe","coordinate":[1,2],"coordinate2":[3,4]}`)
	gt.NoError(t, err)
	gt.V(t, action.Kind).Equal(uipilot.ActionSwipe)
	gt.V(t, action.X2).Equal(3)
	gt.V(t, action.Y2).Equal(4)
}

func TestParseActionUnknownName(t *testing.T) {
	// A well-formed call with an unrecognized name is recorded, not fatal.
	action, err := uipilot.ParseAction(`do(action="Teleport", element=[1,2])`)
	gt.NoError(t, err)
	gt.V(t, action.Kind).Equal(uipilot.ActionInvalid)
}

func TestParseActionErrors(t *testing.T) {
	type testCase struct {
		input string
	}

	runTest := func(tc testCase) func(t *testing.T) {
		return func(t *testing.T) {
			action, err := uipilot.ParseAction(tc.input)
			gt.True(t, errors.Is(err, uipilot.ErrParseAction))
			gt.V(t, action.Kind).Equal(uipilot.ActionInvalid)
		}
	}

	t.Run("empty input", runTest(testCase{input: ""}))
	t.Run("no marker at all", runTest(testCase{input: "I am not sure what to do next."}))
	t.Run("do call without action param", runTest(testCase{input: `do(element=[1,2])`}))
	t.Run("malformed json object", runTest(testCase{input: `{"coordinate":[1,2]}`}))
}

func TestDSLRoundTrip(t *testing.T) {
	actions := []uipilot.Action{
		{Kind: uipilot.ActionTap, X: 10, Y: 990},
		{Kind: uipilot.ActionDoubleTap, X: 0, Y: 0},
		{Kind: uipilot.ActionLongPress, X: 500, Y: 500},
		{Kind: uipilot.ActionSwipe, X: 100, Y: 800, X2: 100, Y2: 200},
		{Kind: uipilot.ActionTypeText, Text: `hello "world"`},
		{Kind: uipilot.ActionLaunch, App: "com.example.app"},
		{Kind: uipilot.ActionBack},
		{Kind: uipilot.ActionHome},
		{Kind: uipilot.ActionWait, Seconds: 3},
		{Kind: uipilot.ActionTakeOver, Text: "manual step"},
		{Kind: uipilot.ActionAnswer, Text: "42"},
		{Kind: uipilot.ActionFinish, Text: "all done"},
	}

	for _, want := range actions {
		t.Run(string(want.Kind), func(t *testing.T) {
			parsed, err := uipilot.ParseAction(want.DSL())
			gt.NoError(t, err)
			parsed.Raw = ""
			gt.Equal(t, want, parsed)
		})
	}
}
