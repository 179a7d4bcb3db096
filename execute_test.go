package uipilot_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uipilot"
)

func TestParseExecuteResponse(t *testing.T) {
	t.Run("thought, description and action", func(t *testing.T) {
		text := "The search icon is in the top right corner.\n" +
			"Description: open the search field\n" +
			`do(action="Tap", element=[900,50])`

		result, err := uipilot.ParseExecuteResponse(text)
		gt.NoError(t, err)
		gt.V(t, result.Action.Kind).Equal(uipilot.ActionTap)
		gt.V(t, result.Description).Equal("open the search field")
		gt.True(t, strings.Contains(result.Thought, "search icon"))
	})

	t.Run("description is first line only", func(t *testing.T) {
		text := "Description: tap the button\nand then some rambling\n" +
			`do(action="Tap", element=[1,2])`

		result, err := uipilot.ParseExecuteResponse(text)
		gt.NoError(t, err)
		gt.V(t, result.Description).Equal("tap the button")
	})

	t.Run("missing description falls back to action string", func(t *testing.T) {
		result, err := uipilot.ParseExecuteResponse(`do(action="Back")`)
		gt.NoError(t, err)
		gt.V(t, result.Description).Equal(result.Action.String())
	})

	t.Run("parse error propagates with the invalid action", func(t *testing.T) {
		result, err := uipilot.ParseExecuteResponse("no action here at all")
		gt.Error(t, err)
		gt.V(t, result.Action.Kind).Equal(uipilot.ActionInvalid)
	})
}

func TestBuildExecutePrompt(t *testing.T) {
	state := uipilot.NewStatePool("send a message", 1080, 2400)
	state.Plan = "- open the chat\n- type the message"

	prompt := uipilot.BuildExecutePrompt(state)
	gt.True(t, strings.Contains(prompt, "send a message"))
	gt.True(t, strings.Contains(prompt, "open the chat"))
	gt.True(t, strings.Contains(prompt, "[0,999]"))
	gt.True(t, strings.Contains(prompt, `do(action="Tap"`))
	gt.True(t, strings.Contains(prompt, `finish(message=`))
}

func TestIsSensitiveAction(t *testing.T) {
	type testCase struct {
		description string
		thought     string
		expected    bool
	}

	runTest := func(tc testCase) func(t *testing.T) {
		return func(t *testing.T) {
			result := uipilot.ExecuteResult{
				Thought:     tc.thought,
				Description: tc.description,
			}
			gt.V(t, uipilot.IsSensitiveAction(result)).Equal(tc.expected)
		}
	}

	t.Run("payment description", runTest(testCase{description: "confirm the payment", expected: true}))
	t.Run("login mentioned in thought", runTest(testCase{description: "tap the field", thought: "this is the login form", expected: true}))
	t.Run("otp entry", runTest(testCase{description: "enter the OTP", expected: true}))
	t.Run("ordinary navigation", runTest(testCase{description: "scroll the feed", expected: false}))
}
