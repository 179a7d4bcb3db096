package uipilot

import (
	"context"
	"time"
)

// Role is the speaker of a wire message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ModelMessage is the provider neutral wire format produced by
// Conversation.ToWireFormat and consumed by ModelClient implementations.
type ModelMessage struct {
	Role  Role
	Text  string
	Image *Image
}

// StreamMetrics carries timing measured around one streaming model call.
type StreamMetrics struct {
	TimeToFirstToken time.Duration
	Total            time.Duration
}

// StreamSink receives incremental output of a streaming model call. The
// driver still blocks on the final parsed result; this is a producer and
// consumer hand-off, not concurrency.
type StreamSink interface {
	// OnThinkChunk receives partial reasoning text as it is generated.
	OnThinkChunk(chunk string)

	// OnActionDetected fires once, as soon as an action marker shows up in
	// the partial output.
	OnActionDetected()

	// OnStreamMetrics receives timing after the stream completes.
	OnStreamMetrics(metrics StreamMetrics)
}

// ModelClient is the boundary to the vision language model. Implementations
// live in llm/openai, llm/claude and llm/gemini.
type ModelClient interface {
	// Predict issues a single turn call with optional images.
	Predict(ctx context.Context, prompt string, images []Image) (string, error)

	// PredictWithContext issues a multi-turn call over the serialized
	// conversation memory.
	PredictWithContext(ctx context.Context, messages []ModelMessage) (string, error)

	// PredictWithContextStream behaves like PredictWithContext but pushes
	// incremental output into sink before returning the final text.
	PredictWithContextStream(ctx context.Context, messages []ModelMessage, sink StreamSink) (string, error)
}
