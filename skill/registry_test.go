package skill_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uipilot/skill"
)

const validRegistry = `[
  {
    "id": "food_delivery",
    "name": "food delivery",
    "description": "order food for delivery to the current address",
    "category": "shopping",
    "keywords": ["order", "deliver", "takeout"],
    "params": [
      {"name": "food_item", "type": "string", "required": true},
      {"name": "destination", "type": "string", "required": false}
    ],
    "relatedApps": [
      {
        "packageName": "com.example.eats",
        "executionType": "delegation",
        "deepLinkTemplate": "eats://search?q={food_item}",
        "priority": 10
      },
      {
        "packageName": "com.example.food",
        "executionType": "gui_automation",
        "stepHints": ["open the search tab", "type the dish name"],
        "priority": 5
      }
    ]
  },
  {
    "id": "navigation",
    "name": "navigation",
    "description": "navigate to a destination by car or transit",
    "keywords": ["navigate", "directions", "route"],
    "params": [
      {"name": "destination", "type": "string", "required": true}
    ],
    "relatedApps": [
      {
        "packageName": "com.example.maps",
        "executionType": "delegation",
        "deepLinkTemplate": "geo:0,0?q={destination}",
        "priority": 10
      }
    ]
  }
]`

func TestLoad(t *testing.T) {
	registry, err := skill.Load([]byte(validRegistry))
	gt.NoError(t, err)
	gt.V(t, registry.Len()).Equal(2)

	defs := registry.Skills()
	gt.V(t, defs[0].ID).Equal("food_delivery")
	gt.V(t, defs[0].RelatedApps[0].ExecutionType).Equal(skill.Delegation)
	gt.V(t, defs[0].RelatedApps[1].ExecutionType).Equal(skill.GuiAutomation)
	gt.V(t, defs[1].Params[0].Required).Equal(true)
}

func TestLoadErrors(t *testing.T) {
	type testCase struct {
		data string
	}

	runTest := func(tc testCase) func(t *testing.T) {
		return func(t *testing.T) {
			_, err := skill.Load([]byte(tc.data))
			gt.True(t, errors.Is(err, skill.ErrInvalidRegistry))
		}
	}

	t.Run("not json", runTest(testCase{data: "not json at all"}))

	t.Run("missing required field", runTest(testCase{
		data: `[{"id": "x", "name": "x", "description": "", "keywords": []}]`,
	}))

	t.Run("bad execution type", runTest(testCase{
		data: `[{"id": "x", "name": "x", "description": "", "keywords": [],
			"relatedApps": [{"packageName": "p", "executionType": "teleport"}]}]`,
	}))

	t.Run("empty related apps", runTest(testCase{
		data: `[{"id": "x", "name": "x", "description": "", "keywords": [], "relatedApps": []}]`,
	}))

	t.Run("duplicated ids", runTest(testCase{
		data: `[
			{"id": "x", "name": "a", "description": "", "keywords": [],
			 "relatedApps": [{"packageName": "p", "executionType": "delegation"}]},
			{"id": "x", "name": "b", "description": "", "keywords": [],
			 "relatedApps": [{"packageName": "q", "executionType": "delegation"}]}
		]`,
	}))
}
