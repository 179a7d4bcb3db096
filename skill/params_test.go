package skill_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uipilot/skill"
)

func TestExtractParams(t *testing.T) {
	def := skill.Definition{
		Name:     "food delivery",
		Keywords: []string{"order", "deliver"},
		Params: []skill.Param{
			{Name: "food_item", Type: "string", Required: true},
			{Name: "destination", Type: "string"},
		},
	}

	t.Run("raw instruction always retained", func(t *testing.T) {
		params := skill.ExtractParams("order me a burger", def)
		gt.V(t, params[skill.RawInstructionKey]).Equal("order me a burger")
	})

	t.Run("free text item extraction", func(t *testing.T) {
		params := skill.ExtractParams("order me a burger", def)
		gt.V(t, params["food_item"]).Equal("burger")
	})

	t.Run("destination extraction", func(t *testing.T) {
		params := skill.ExtractParams("deliver a pizza to 5 Main Street", def)
		gt.V(t, params["destination"]).Equal("5 Main Street")
	})

	t.Run("unresolvable param is absent", func(t *testing.T) {
		params := skill.ExtractParams("order something", def)
		_, ok := params["destination"]
		gt.False(t, ok)
	})

	t.Run("default fills unresolved param", func(t *testing.T) {
		withDefault := def
		withDefault.Params = []skill.Param{
			{Name: "destination", Type: "string", Default: "home"},
		}
		params := skill.ExtractParams("order something", withDefault)
		gt.V(t, params["destination"]).Equal("home")
	})
}

func TestExtractParamsContactAndTime(t *testing.T) {
	def := skill.Definition{
		Name:     "messaging",
		Keywords: []string{"message"},
		Params: []skill.Param{
			{Name: "contact", Type: "string"},
			{Name: "time", Type: "string"},
		},
	}

	params := skill.ExtractParams("message Alice at 9pm", def)
	gt.V(t, params["contact"]).Equal("Alice")
	gt.V(t, params["time"]).Equal("9pm")
}
