package skill_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uipilot/skill"
)

func TestMatchScore(t *testing.T) {
	def := skill.Definition{
		Name:        "food delivery",
		Description: "order food for delivery to the current address",
		Keywords:    []string{"order", "takeout"},
	}

	t.Run("keyword containment scores highest", func(t *testing.T) {
		gt.V(t, skill.MatchScore("order me a burger", def)).Equal(0.9)
	})

	t.Run("keywords are case insensitive", func(t *testing.T) {
		gt.V(t, skill.MatchScore("Order me a burger", def)).Equal(0.9)
	})

	t.Run("name containment scores below keyword", func(t *testing.T) {
		noKeywords := def
		noKeywords.Keywords = nil
		gt.V(t, skill.MatchScore("use the food delivery app", noKeywords)).Equal(0.8)
	})

	t.Run("description overlap is a weak signal", func(t *testing.T) {
		noKeywords := def
		noKeywords.Keywords = nil
		score := skill.MatchScore("get some food sent to my address", noKeywords)
		gt.True(t, score >= 0.3)
		gt.True(t, score < 0.8)
	})

	t.Run("unrelated instruction scores zero", func(t *testing.T) {
		gt.V(t, skill.MatchScore("set an alarm for 7am", def)).Equal(0.0)
	})
}
