package uipilot

// coordDenominator is the upper bound of the normalized coordinate scale.
// The model is prompted to emit coordinates in [0,999]; 999 therefore maps
// to the far edge of the screen. The same denominator is used for every
// grammar, a mismatch here is a silent mis-tap, not a crash.
const coordDenominator = 999

// ToPixels maps a model supplied coordinate to a device pixel. Values below
// 1000 are treated as normalized and scaled proportionally into
// [0, screenExtent]. Values of 1000 and above are treated as already
// absolute pixels and clamped, because the model does not reliably honor
// the normalized contract and trusting raw values would produce
// out-of-bounds taps.
func ToPixels(value, screenExtent int) int {
	if screenExtent < 0 {
		screenExtent = 0
	}
	if value < 0 {
		return 0
	}
	if value < 1000 {
		return value * screenExtent / coordDenominator
	}
	if value > screenExtent {
		return screenExtent
	}
	return value
}
