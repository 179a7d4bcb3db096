package uipilot

import "context"

// ProgressSink receives run progress events from the driver. All methods
// are called from the run goroutine; implementations that render UI should
// hand off internally. ConfirmSensitive and RequestTakeOver are suspension
// points: the driver blocks until they return, and they must respect ctx
// cancellation.
type ProgressSink interface {
	OnPlanReady(plan string, completed string)
	OnStepStart(step int)
	OnThinkChunk(chunk string)
	OnThinkComplete(thought string)
	OnActionDetected(action Action, description string)
	OnStepComplete(step int, outcome StepOutcome, errDesc string)
	OnStreamMetrics(metrics StreamMetrics)
	OnVerification(passed bool, detail string)

	// ConfirmSensitive asks a human to approve a sensitive operation.
	// Returning false declines only that single action.
	ConfirmSensitive(ctx context.Context, message string) (bool, error)

	// RequestTakeOver asks a human to complete a step manually and
	// returns when control is handed back.
	RequestTakeOver(ctx context.Context, message string) error
}

// NopProgressSink discards all events and approves all confirmations. It is
// the default sink.
type NopProgressSink struct{}

var _ ProgressSink = NopProgressSink{}

func (NopProgressSink) OnPlanReady(string, string)                  {}
func (NopProgressSink) OnStepStart(int)                             {}
func (NopProgressSink) OnThinkChunk(string)                         {}
func (NopProgressSink) OnThinkComplete(string)                      {}
func (NopProgressSink) OnActionDetected(Action, string)             {}
func (NopProgressSink) OnStepComplete(int, StepOutcome, string)     {}
func (NopProgressSink) OnStreamMetrics(StreamMetrics)               {}
func (NopProgressSink) OnVerification(bool, string)                 {}
func (NopProgressSink) RequestTakeOver(context.Context, string) error { return nil }

func (NopProgressSink) ConfirmSensitive(context.Context, string) (bool, error) {
	return true, nil
}
