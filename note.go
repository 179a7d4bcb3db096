package uipilot

import (
	"fmt"
	"strings"
)

// ParseNoteResponse extracts appended notes from a notetaking response.
// The model replies NONE when the step surfaced nothing worth keeping.
func ParseNoteResponse(text string) []string {
	body := sectionAfter(text, labelNotes)
	if body == "" {
		body = strings.TrimSpace(text)
	}
	if body == "" || strings.EqualFold(body, labelNoNewNotes) {
		return nil
	}

	var notes []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line != "" && !strings.EqualFold(line, labelNoNewNotes) {
			notes = append(notes, line)
		}
	}
	return notes
}

func buildNotePrompt(state *StatePool, summary string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Goal: %s\n", state.Instruction)
	fmt.Fprintf(&b, "The step just completed successfully: %s\n", summary)
	if notes := state.NotesDigest(); notes != "" {
		fmt.Fprintf(&b, "\nNotes so far:\n%s\n", notes)
	}

	b.WriteString("\nFrom the attached screenshot, record any salient facts a later planning step will need (order numbers, prices, names, visible confirmations).\n")
	b.WriteString("Reply with:\n")
	b.WriteString(labelNotes + " one fact per line, or " + labelNoNewNotes + " if nothing is worth keeping\n")

	return b.String()
}

const noteSystemPrompt = `You extract durable facts from a device screenshot after a successful step. You record only what is actually visible and never speculate.`
