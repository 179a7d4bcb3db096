package uipilot

import (
	"fmt"
	"strings"
)

// SensitivePlanSentinel is the fixed token the planning prompt instructs
// the model to emit as the whole plan body when the requested operation
// touches payment or authentication. The driver trusts it as a convention.
const SensitivePlanSentinel = "[[SENSITIVE_OPERATION]]"

// Fixed section labels of the planning response. A missing label yields an
// empty field, never an error.
const (
	labelThought    = "Thought:"
	labelCompleted  = "Historical Operations:"
	labelPlan       = "Plan:"
	labelOutcome    = "Outcome:"
	labelErrDesc    = "Error Description:"
	labelDesc       = "Description:"
	labelNotes      = "Notes:"
	labelNoNewNotes = "NONE"
)

// PlanResult is the parsed output of one planning call.
type PlanResult struct {
	Thought           string
	CompletedSubgoals string
	Plan              string
}

// IsSensitive reports whether the plan body carries the sensitive
// operation sentinel.
func (p PlanResult) IsSensitive() bool {
	return strings.Contains(p.Plan, SensitivePlanSentinel)
}

// IsFinished reports whether the plan body is the short "task finished"
// convention. The prompt instructs the model to only emit it when the last
// outcome was Success and the goal is visibly complete; the driver
// additionally enforces the Success half of that checklist in code.
func (p PlanResult) IsFinished() bool {
	body := strings.ToLower(strings.Trim(strings.TrimSpace(p.Plan), ".!"))
	if len(body) > 40 {
		return false
	}
	return strings.Contains(body, "finish")
}

// ParsePlanResponse splits a planning response at its three fixed section
// labels. It is total: any label the model dropped becomes an empty field.
func ParsePlanResponse(text string) PlanResult {
	return PlanResult{
		Thought:           sectionAfter(text, labelThought, labelCompleted, labelPlan),
		CompletedSubgoals: sectionAfter(text, labelCompleted, labelThought, labelPlan),
		Plan:              sectionAfter(text, labelPlan, labelThought, labelCompleted),
	}
}

// sectionAfter returns the text between label and the nearest following
// occurrence of any other label, trimmed.
func sectionAfter(text, label string, others ...string) string {
	start := strings.Index(text, label)
	if start < 0 {
		return ""
	}
	body := text[start+len(label):]
	end := len(body)
	for _, other := range others {
		if idx := strings.Index(body, other); idx >= 0 && idx < end {
			end = idx
		}
	}
	return strings.TrimSpace(body[:end])
}

// planningPromptInput carries everything the planning prompt needs from the
// state pool and the skill gate.
type planningPromptInput struct {
	state      *StatePool
	hints      string
	escalation bool
	window     int
}

func buildPlanningPrompt(in planningPromptInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The user instruction is: %s\n\n", in.state.Instruction)

	if in.state.Plan != "" {
		fmt.Fprintf(&b, "Current plan:\n%s\n\n", in.state.Plan)
	}
	fmt.Fprintf(&b, "Action history:\n%s\n", in.state.HistoryDigest())

	if notes := in.state.NotesDigest(); notes != "" {
		fmt.Fprintf(&b, "\nCollected notes:\n%s\n", notes)
	}
	if in.hints != "" {
		fmt.Fprintf(&b, "\nApp specific hints (context only, do not execute blindly):\n%s\n", in.hints)
	}
	if in.escalation {
		b.WriteString("\nThe last attempts did not make progress. You appear to be stuck:\n")
		b.WriteString(in.state.StuckExcerpt(in.window))
		b.WriteString("Propose a materially different strategy, do not repeat the failing action.\n")
	}

	b.WriteString("\nRevise the plan for reaching the goal. Respond with exactly three sections:\n")
	b.WriteString(labelThought + " your reasoning about the current situation\n")
	b.WriteString(labelCompleted + " subgoals already completed, one per line\n")
	b.WriteString(labelPlan + " remaining subgoals, one per line\n\n")
	fmt.Fprintf(&b, "If the task requires a payment or authentication step, reply with the plan body %s and nothing else.\n", SensitivePlanSentinel)
	b.WriteString("Only when the outcome of the last action was success and the goal is visibly complete, reply with the plan body \"Finished\".\n")

	return b.String()
}

const planningSystemPrompt = `You are a planning assistant for autonomous device operation. You break a user instruction into small verifiable subgoals, revise the plan as observations arrive, and never invent UI state you have not seen.`
