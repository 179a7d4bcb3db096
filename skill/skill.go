// Package skill implements the skill registry and the matching gate that
// decides between a one-shot deep link delegation and the generic
// automation loop.
package skill

// ExecutionType selects how a related app serves a skill.
type ExecutionType string

const (
	// Delegation opens the target app through a fixed deep link and
	// bypasses the step loop entirely.
	Delegation ExecutionType = "delegation"

	// GuiAutomation reaches the goal through the generic
	// perceive/decide/act loop, optionally seeded with step hints.
	GuiAutomation ExecutionType = "gui_automation"
)

// Param describes one extractable parameter of a skill.
type Param struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Default  string   `json:"default,omitempty"`
	Examples []string `json:"examples,omitempty"`
}

// RelatedApp binds a skill to an app that can serve it.
type RelatedApp struct {
	PackageName      string        `json:"packageName"`
	ExecutionType    ExecutionType `json:"executionType"`
	DeepLinkTemplate string        `json:"deepLinkTemplate,omitempty"`
	StepHints        []string      `json:"stepHints,omitempty"`
	Priority         int           `json:"priority"`
}

// Definition is one entry of the skill registry.
type Definition struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    string       `json:"category,omitempty"`
	Keywords    []string     `json:"keywords"`
	Params      []Param      `json:"params,omitempty"`
	RelatedApps []RelatedApp `json:"relatedApps"`
}

// ExecutionPlan is the resolved outcome of a gate evaluation that needs the
// automation loop: the chosen skill, the chosen app, the extracted
// parameters and whether the app is installed.
type ExecutionPlan struct {
	Skill     *Definition
	App       *RelatedApp
	Params    map[string]string
	Installed bool
}
