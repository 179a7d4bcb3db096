package uipilot

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// StepOutcome classifies whether an action visibly changed device state as
// expected.
type StepOutcome string

const (
	OutcomeSuccess        StepOutcome = "success"
	OutcomePartialFailure StepOutcome = "partial_failure"
	OutcomeNoChange       StepOutcome = "no_change"
	OutcomeUnknown        StepOutcome = "unknown"
)

// StatePool is the run scoped mutable record shared by the stages. It is
// created at run start and discarded at run end; it is never shared across
// runs.
type StatePool struct {
	Instruction   string
	Plan          string
	CompletedPlan string
	Notes         []string

	Width  int
	Height int

	// The four parallel history logs, indexed by step. AppendStep is the
	// only mutation path, which keeps them equal length by construction.
	actionHistory     []Action
	summaryHistory    []string
	actionOutcomes    []StepOutcome
	errorDescriptions []string
}

// NewStatePool creates a state pool for one run.
func NewStatePool(instruction string, width, height int) *StatePool {
	return &StatePool{
		Instruction: instruction,
		Width:       width,
		Height:      height,
	}
}

// AppendStep records one completed step into all four history logs.
func (s *StatePool) AppendStep(action Action, summary string, outcome StepOutcome, errDesc string) {
	s.actionHistory = append(s.actionHistory, action)
	s.summaryHistory = append(s.summaryHistory, summary)
	s.actionOutcomes = append(s.actionOutcomes, outcome)
	s.errorDescriptions = append(s.errorDescriptions, errDesc)
}

// StepCount returns the number of completed steps.
func (s *StatePool) StepCount() int { return len(s.actionHistory) }

// Validate checks the parallel history invariant.
func (s *StatePool) Validate() error {
	n := len(s.actionHistory)
	if len(s.summaryHistory) != n || len(s.actionOutcomes) != n || len(s.errorDescriptions) != n {
		return goerr.Wrap(ErrHistoryDesync, "history length mismatch",
			goerr.V("actions", len(s.actionHistory)),
			goerr.V("summaries", len(s.summaryHistory)),
			goerr.V("outcomes", len(s.actionOutcomes)),
			goerr.V("errors", len(s.errorDescriptions)),
		)
	}
	return nil
}

// LastAction returns the most recent action, if any.
func (s *StatePool) LastAction() (Action, bool) {
	if len(s.actionHistory) == 0 {
		return Action{}, false
	}
	return s.actionHistory[len(s.actionHistory)-1], true
}

// LastOutcome returns the most recent outcome, or OutcomeUnknown before the
// first step.
func (s *StatePool) LastOutcome() StepOutcome {
	if len(s.actionOutcomes) == 0 {
		return OutcomeUnknown
	}
	return s.actionOutcomes[len(s.actionOutcomes)-1]
}

// EscalationActive reports whether the last window outcomes were all
// non-Success. Fewer completed steps than the window means no escalation.
func (s *StatePool) EscalationActive(window int) bool {
	if window <= 0 || len(s.actionOutcomes) < window {
		return false
	}
	for _, outcome := range s.actionOutcomes[len(s.actionOutcomes)-window:] {
		if outcome == OutcomeSuccess {
			return false
		}
	}
	return true
}

// StuckExcerpt renders the last window failing steps for the planning
// prompt when escalation is active.
func (s *StatePool) StuckExcerpt(window int) string {
	if len(s.actionOutcomes) < window {
		window = len(s.actionOutcomes)
	}
	var b strings.Builder
	start := len(s.actionOutcomes) - window
	for i := start; i < len(s.actionOutcomes); i++ {
		fmt.Fprintf(&b, "- step %d: %s -> %s", i+1, s.actionHistory[i].String(), s.actionOutcomes[i])
		if s.errorDescriptions[i] != "" {
			b.WriteString(" (" + s.errorDescriptions[i] + ")")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// HistoryDigest renders the action summaries with outcomes for prompts.
func (s *StatePool) HistoryDigest() string {
	if len(s.summaryHistory) == 0 {
		return "(no actions performed yet)"
	}
	var b strings.Builder
	for i, summary := range s.summaryHistory {
		fmt.Fprintf(&b, "%d. %s [%s]\n", i+1, summary, s.actionOutcomes[i])
	}
	return b.String()
}

// AddNote appends a salient fact collected by the notetaking stage.
func (s *StatePool) AddNote(note string) {
	note = strings.TrimSpace(note)
	if note != "" {
		s.Notes = append(s.Notes, note)
	}
}

// NotesDigest renders the running notes for planning prompts.
func (s *StatePool) NotesDigest() string {
	if len(s.Notes) == 0 {
		return ""
	}
	return "- " + strings.Join(s.Notes, "\n- ")
}

// Outcomes returns a copy of the outcome log.
func (s *StatePool) Outcomes() []StepOutcome {
	out := make([]StepOutcome, len(s.actionOutcomes))
	copy(out, s.actionOutcomes)
	return out
}

// Summaries returns a copy of the summary log.
func (s *StatePool) Summaries() []string {
	out := make([]string, len(s.summaryHistory))
	copy(out, s.summaryHistory)
	return out
}

// Actions returns a copy of the action log.
func (s *StatePool) Actions() []Action {
	out := make([]Action, len(s.actionHistory))
	copy(out, s.actionHistory)
	return out
}

// ErrorDescriptions returns a copy of the error description log.
func (s *StatePool) ErrorDescriptions() []string {
	out := make([]string, len(s.errorDescriptions))
	copy(out, s.errorDescriptions)
	return out
}
