package uipilot

import (
	"fmt"
	"strings"
)

// ExecuteResult is the parsed output of one execution call: exactly one
// action (possibly Invalid), the model's reasoning, and a human readable
// description of what the action is supposed to accomplish.
type ExecuteResult struct {
	Thought     string
	Action      Action
	Description string
}

// ParseExecuteResponse extracts thought, action and description from an
// execution response. The error is the ParseError of the action extraction;
// the driver treats it as fatal to the run.
func ParseExecuteResponse(text string) (ExecuteResult, error) {
	action, err := ParseAction(text)

	result := ExecuteResult{
		Thought: ExtractThinking(text),
		Action:  action,
	}

	if desc := sectionAfter(text, labelDesc, labelThought); desc != "" {
		// Only the first line: models tend to continue rambling after it.
		if idx := strings.IndexByte(desc, '\n'); idx >= 0 {
			desc = desc[:idx]
		}
		result.Description = strings.TrimSpace(desc)
	}
	if result.Description == "" {
		result.Description = action.String()
	}

	return result, err
}

func buildExecutePrompt(state *StatePool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Goal: %s\n\n", state.Instruction)
	fmt.Fprintf(&b, "Plan:\n%s\n\n", state.Plan)
	fmt.Fprintf(&b, "Previous actions:\n%s\n", state.HistoryDigest())

	b.WriteString("\nThe attached screenshot is the current screen state. ")
	fmt.Fprintf(&b, "Screen coordinates are normalized to [0,%d] on both axes.\n\n", coordDenominator)

	b.WriteString("Decide the single next action. Reply with your reasoning, then one line\n")
	b.WriteString(labelDesc + " what this action accomplishes, in one sentence\n")
	b.WriteString("then exactly one action in functional form, e.g.:\n")
	b.WriteString(`  do(action="Tap", element=[x,y])` + "\n")
	b.WriteString(`  do(action="Swipe", element=[x1,y1], end=[x2,y2])` + "\n")
	b.WriteString(`  do(action="Type", text="...")` + "\n")
	b.WriteString(`  do(action="Launch", app="...")` + "\n")
	b.WriteString(`  do(action="Back") / do(action="Home") / do(action="Wait", seconds=1)` + "\n")
	b.WriteString(`  do(action="Take Over", message="...") when human input is required` + "\n")
	b.WriteString(`  finish(message="...") when the goal is reached` + "\n")

	return b.String()
}

const executeSystemPrompt = `You are a device operation assistant. You observe a screenshot and emit exactly one action per turn in the documented functional form. You never emit more than one action and never explain after the action line.`
