package skill

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Decision is the outcome of one gate evaluation.
type Decision string

const (
	// Delegated means a deep link was built and the step loop is skipped.
	Delegated Decision = "delegated"

	// NeedAutomation means the generic loop runs, seeded with the chosen
	// app and its step hints as auxiliary planning context only.
	NeedAutomation Decision = "need_automation"

	// NoAvailableApp means nothing cleared the low floor; the fully
	// generic loop runs without hints.
	NoAvailableApp Decision = "no_available_app"
)

const (
	// HighConfidenceThreshold gates the delegation fast path.
	HighConfidenceThreshold = 0.85

	// LowFloor is the minimum score for a candidate to be considered at
	// all.
	LowFloor = 0.3
)

// Result is what the gate hands to the driver.
type Result struct {
	Decision Decision
	Score    float64

	// DeepLink is set for Delegated results. All placeholders are
	// resolved or deleted; none remain.
	DeepLink string

	// Plan is set for Delegated and NeedAutomation results.
	Plan *ExecutionPlan
}

type candidate struct {
	def   Definition
	app   RelatedApp
	score float64
}

// Evaluate runs the gate once against the instruction, before the generic
// loop. installed reports whether a package is present on the device; a nil
// func treats every app as installed.
func (r *Registry) Evaluate(instruction string, installed func(pkg string) bool) Result {
	if installed == nil {
		installed = func(string) bool { return true }
	}

	var candidates []candidate
	for _, def := range r.skills {
		score := MatchScore(instruction, def)
		if score < LowFloor {
			continue
		}
		for _, app := range def.RelatedApps {
			if !installed(app.PackageName) {
				continue
			}
			candidates = append(candidates, candidate{def: def, app: app, score: score})
		}
	}

	if len(candidates) == 0 {
		return Result{Decision: NoAvailableApp}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].app.Priority > candidates[j].app.Priority
	})

	top := candidates[0]
	params := ExtractParams(instruction, top.def)
	plan := &ExecutionPlan{
		Skill:     &top.def,
		App:       &top.app,
		Params:    params,
		Installed: true,
	}

	if top.app.ExecutionType == Delegation && top.score >= HighConfidenceThreshold && top.app.DeepLinkTemplate != "" {
		return Result{
			Decision: Delegated,
			Score:    top.score,
			DeepLink: BuildDeepLink(top.app.DeepLinkTemplate, params),
			Plan:     plan,
		}
	}

	return Result{Decision: NeedAutomation, Score: top.score, Plan: plan}
}

var placeholderPattern = regexp.MustCompile(`\{[a-zA-Z_][a-zA-Z0-9_]*\}`)

// BuildDeepLink substitutes {param} placeholders from the extracted params
// and deletes any placeholder left unresolved, so the link never leaks a
// literal "{param}" to the target app.
func BuildDeepLink(template string, params map[string]string) string {
	link := placeholderPattern.ReplaceAllStringFunc(template, func(ph string) string {
		key := strings.Trim(ph, "{}")
		if v, ok := params[key]; ok && v != "" {
			return url.QueryEscape(v)
		}
		return ""
	})
	return link
}

// StepHintsText renders an execution plan's hints for injection into the
// planning prompt.
func (p *ExecutionPlan) StepHintsText() string {
	if p == nil || p.App == nil || len(p.App.StepHints) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Suggested app: " + p.App.PackageName + "\n")
	for _, hint := range p.App.StepHints {
		b.WriteString("- " + hint + "\n")
	}
	return b.String()
}
