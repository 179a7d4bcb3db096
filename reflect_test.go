package uipilot_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uipilot"
)

func TestParseReflectionResponse(t *testing.T) {
	type testCase struct {
		input    string
		outcome  uipilot.StepOutcome
		errDesc  string
	}

	runTest := func(tc testCase) func(t *testing.T) {
		return func(t *testing.T) {
			result := uipilot.ParseReflectionResponse(tc.input)
			gt.V(t, result.Outcome).Equal(tc.outcome)
			gt.V(t, result.ErrorDescription).Equal(tc.errDesc)
		}
	}

	t.Run("success clears error description", runTest(testCase{
		input:   "Outcome: Success\nError Description: leftover noise",
		outcome: uipilot.OutcomeSuccess,
	}))

	t.Run("partial failure with description", runTest(testCase{
		input:   "Outcome: Partial Failure\nError Description: wrong screen opened",
		outcome: uipilot.OutcomePartialFailure,
		errDesc: "wrong screen opened",
	}))

	t.Run("no change variants", runTest(testCase{
		input:   "Outcome: No Change\nError Description: the tap landed on dead space",
		outcome: uipilot.OutcomeNoChange,
		errDesc: "the tap landed on dead space",
	}))

	t.Run("unlabeled response still classified", runTest(testCase{
		input:   "the screen is unchanged",
		outcome: uipilot.OutcomeNoChange,
	}))

	t.Run("unrecognizable degrades to unknown", runTest(testCase{
		input:   "hard to tell",
		outcome: uipilot.OutcomeUnknown,
	}))
}

func TestBuildReflectionPrompt(t *testing.T) {
	action := uipilot.Action{Kind: uipilot.ActionTap, X: 10, Y: 20}
	prompt := uipilot.BuildReflectionPrompt(action, "open the menu")

	gt.True(t, strings.Contains(prompt, "before and after"))
	gt.True(t, strings.Contains(prompt, "tap(10,20)"))
	gt.True(t, strings.Contains(prompt, "open the menu"))
	gt.True(t, strings.Contains(prompt, "Outcome:"))
}

func TestParseNoteResponse(t *testing.T) {
	t.Run("dash list", func(t *testing.T) {
		notes := uipilot.ParseNoteResponse("Notes:\n- order number 42\n- total 3.50 EUR")
		gt.Equal(t, []string{"order number 42", "total 3.50 EUR"}, notes)
	})

	t.Run("none means no notes", func(t *testing.T) {
		gt.Nil(t, uipilot.ParseNoteResponse("Notes: NONE"))
		gt.Nil(t, uipilot.ParseNoteResponse("NONE"))
	})

	t.Run("unlabeled body is kept", func(t *testing.T) {
		notes := uipilot.ParseNoteResponse("the tracking code is ABC123")
		gt.Equal(t, []string{"the tracking code is ABC123"}, notes)
	})

	t.Run("empty response", func(t *testing.T) {
		gt.Nil(t, uipilot.ParseNoteResponse(""))
	})
}
