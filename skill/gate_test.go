package skill_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uipilot/skill"
)

func loadTestRegistry(t *testing.T) *skill.Registry {
	t.Helper()
	registry, err := skill.Load([]byte(validRegistry))
	gt.NoError(t, err)
	return registry
}

func TestEvaluateDelegation(t *testing.T) {
	registry := loadTestRegistry(t)

	result := registry.Evaluate("order me a burger", nil)

	gt.V(t, result.Decision).Equal(skill.Delegated)
	gt.True(t, result.Score >= skill.HighConfidenceThreshold)
	gt.NotNil(t, result.Plan)

	// The deep link is fully resolved: no placeholder survives.
	gt.True(t, !strings.Contains(result.DeepLink, "{"))
	gt.True(t, strings.HasPrefix(result.DeepLink, "eats://search?q="))
	gt.True(t, strings.Contains(result.DeepLink, "burger"))
}

func TestEvaluateRespectsInstalledFilter(t *testing.T) {
	registry := loadTestRegistry(t)

	// The high priority delegation app is missing; the automation app wins.
	result := registry.Evaluate("order me a burger", func(pkg string) bool {
		return pkg == "com.example.food"
	})

	gt.V(t, result.Decision).Equal(skill.NeedAutomation)
	gt.NotNil(t, result.Plan)
	gt.V(t, result.Plan.App.PackageName).Equal("com.example.food")
}

func TestEvaluateNoMatch(t *testing.T) {
	registry := loadTestRegistry(t)

	result := registry.Evaluate("turn on the flashlight", nil)
	gt.V(t, result.Decision).Equal(skill.NoAvailableApp)
	gt.Nil(t, result.Plan)
}

func TestEvaluateNothingInstalled(t *testing.T) {
	registry := loadTestRegistry(t)

	result := registry.Evaluate("order me a burger", func(string) bool { return false })
	gt.V(t, result.Decision).Equal(skill.NoAvailableApp)
}

func TestEvaluatePriorityBreaksTies(t *testing.T) {
	registry := loadTestRegistry(t)

	// Both food apps match with the same score; the priority 10 delegation
	// app is chosen over the priority 5 automation app.
	result := registry.Evaluate("order me a burger", nil)
	gt.V(t, result.Plan.App.PackageName).Equal("com.example.eats")
}

func TestBuildDeepLink(t *testing.T) {
	t.Run("substitutes and escapes", func(t *testing.T) {
		link := skill.BuildDeepLink("eats://search?q={food_item}", map[string]string{"food_item": "pad thai"})
		gt.V(t, link).Equal("eats://search?q=pad+thai")
	})

	t.Run("deletes unresolved placeholders", func(t *testing.T) {
		link := skill.BuildDeepLink("geo:0,0?q={destination}&mode={mode}", map[string]string{"destination": "station"})
		gt.V(t, link).Equal("geo:0,0?q=station&mode=")
		gt.True(t, !strings.Contains(link, "{"))
	})
}

func TestStepHintsText(t *testing.T) {
	registry := loadTestRegistry(t)
	result := registry.Evaluate("order me a burger", func(pkg string) bool {
		return pkg == "com.example.food"
	})

	hints := result.Plan.StepHintsText()
	gt.True(t, strings.Contains(hints, "com.example.food"))
	gt.True(t, strings.Contains(hints, "open the search tab"))

	var empty *skill.ExecutionPlan
	gt.V(t, empty.StepHintsText()).Equal("")
}
