package uipilot

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrParseAction means the model output contained no recognizable
	// action. A malformed execution response is fatal to the run; it is
	// never guessed at.
	ErrParseAction = goerr.New("failed to parse action from model output")

	// ErrModelCall wraps transport failures of the model client. Fatal
	// only on the very first planning call, when no prior state exists.
	ErrModelCall = goerr.New("model call failed")

	// ErrDeviceDispatch wraps gesture and shell failures. The step is
	// recorded as PartialFailure and the run continues.
	ErrDeviceDispatch = goerr.New("device dispatch failed")

	// ErrStepLimitExceeded terminates a run that consumed its step budget.
	// It is kept distinct from other failure reasons.
	ErrStepLimitExceeded = goerr.New("step limit exceeded")

	// ErrRunCancelled is reported when the run scoped cancellation is
	// observed at a suspension point.
	ErrRunCancelled = goerr.New("run cancelled")

	// ErrHistoryDesync signals a violation of the parallel history log
	// invariant. It indicates a programming error, not a model error.
	ErrHistoryDesync = goerr.New("parallel history logs out of sync")

	// ErrInvalidImage is returned for image data with an unsupported or
	// undetectable format.
	ErrInvalidImage = goerr.New("invalid image data")

	// ErrScriptVersionMismatch is returned when loading a recorded script
	// with an unsupported format version.
	ErrScriptVersionMismatch = goerr.New("script version mismatch")
)
