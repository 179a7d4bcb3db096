package uipilot

import (
	"fmt"
	"strings"
)

// ReflectionResult is the parsed output of one reflection call. It is used
// only to populate the history logs, never to re-decide the action.
type ReflectionResult struct {
	Outcome          StepOutcome
	ErrorDescription string
}

// ParseReflectionResponse extracts outcome and error description from a
// reflection response. Unrecognizable outcomes degrade to Unknown.
func ParseReflectionResponse(text string) ReflectionResult {
	outcomeText := sectionAfter(text, labelOutcome, labelErrDesc)
	if outcomeText == "" {
		outcomeText = text
	}

	result := ReflectionResult{
		Outcome:          classifyOutcome(outcomeText),
		ErrorDescription: sectionAfter(text, labelErrDesc, labelOutcome),
	}
	if result.Outcome == OutcomeSuccess {
		result.ErrorDescription = ""
	}
	return result
}

func classifyOutcome(text string) StepOutcome {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "partial"):
		return OutcomePartialFailure
	case strings.Contains(lower, "no change") || strings.Contains(lower, "nochange") || strings.Contains(lower, "unchanged"):
		return OutcomeNoChange
	case strings.Contains(lower, "success"):
		return OutcomeSuccess
	default:
		return OutcomeUnknown
	}
}

func buildReflectionPrompt(action Action, description string) string {
	var b strings.Builder

	b.WriteString("Two screenshots are attached: the screen before and after the action.\n")
	fmt.Fprintf(&b, "Executed action: %s\n", action.String())
	fmt.Fprintf(&b, "Intended effect: %s\n\n", description)

	b.WriteString("Judge whether the action worked. Reply with:\n")
	b.WriteString(labelOutcome + " one of Success / Partial Failure / No Change\n")
	b.WriteString(labelErrDesc + " what went wrong, empty on Success\n")

	return b.String()
}

const reflectionSystemPrompt = `You compare before and after screenshots of a device action and judge whether the screen changed as intended. You are strict: cosmetic changes like a clock tick do not count as progress.`
