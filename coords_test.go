package uipilot_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uipilot"
)

func TestToPixels(t *testing.T) {
	type testCase struct {
		value    int
		extent   int
		expected int
	}

	runTest := func(tc testCase) func(t *testing.T) {
		return func(t *testing.T) {
			gt.V(t, uipilot.ToPixels(tc.value, tc.extent)).Equal(tc.expected)
		}
	}

	t.Run("zero maps to zero", runTest(testCase{value: 0, extent: 1080, expected: 0}))
	t.Run("max normalized maps to far edge", runTest(testCase{value: 999, extent: 1080, expected: 1080}))
	t.Run("midpoint scales proportionally", runTest(testCase{value: 500, extent: 999, expected: 500}))
	t.Run("typical screen width", runTest(testCase{value: 333, extent: 1080, expected: 333 * 1080 / 999}))
	t.Run("negative clamps to zero", runTest(testCase{value: -5, extent: 1080, expected: 0}))
	t.Run("absolute value in range passes through", runTest(testCase{value: 1050, extent: 1080, expected: 1050}))
	t.Run("absolute value beyond extent clamps", runTest(testCase{value: 5000, extent: 1080, expected: 1080}))
	t.Run("boundary 999 vs 1000 semantics differ", func(t *testing.T) {
		gt.V(t, uipilot.ToPixels(999, 2400)).Equal(2400)
		gt.V(t, uipilot.ToPixels(1000, 2400)).Equal(1000)
	})
	t.Run("zero extent never divides by zero", runTest(testCase{value: 500, extent: 0, expected: 0}))
}
