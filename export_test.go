package uipilot

// Test-only exports for unexported helpers.

var (
	BuildExecutePrompt    = buildExecutePrompt
	BuildReflectionPrompt = buildReflectionPrompt
	BuildNotePrompt       = buildNotePrompt
	IsSensitiveAction     = isSensitiveAction
	SectionAfter          = sectionAfter
	ScriptStepAction      = (*ScriptStep).toAction
)

func BuildPlanningPrompt(state *StatePool, hints string, escalation bool, window int) string {
	return buildPlanningPrompt(planningPromptInput{
		state:      state,
		hints:      hints,
		escalation: escalation,
		window:     window,
	})
}
