package claude

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uipilot"
)

var (
	// claudePromptScope is the logging scope for Claude prompts
	claudePromptScope = ctxlog.NewScope("claude_prompt", ctxlog.EnabledBy("UIPILOT_LOGGING_CLAUDE_PROMPT"))

	// claudeResponseScope is the logging scope for Claude responses
	claudeResponseScope = ctxlog.NewScope("claude_response", ctxlog.EnabledBy("UIPILOT_LOGGING_CLAUDE_RESPONSE"))
)

// generationParameters represents the parameters for text generation.
type generationParameters struct {
	// Temperature controls randomness in the output.
	Temperature float64

	// TopP controls diversity via nucleus sampling.
	TopP float64

	// MaxTokens limits the number of tokens to generate.
	MaxTokens int64
}

// Client is a vision-capable model client backed by the Anthropic API.
// It satisfies uipilot.ModelClient.
type Client struct {
	// client is the underlying Claude client.
	client *anthropic.Client

	// defaultModel is the model to use for message generation.
	// It can be overridden using WithModel option.
	defaultModel anthropic.Model

	// generation parameters
	params generationParameters
}

var _ uipilot.ModelClient = (*Client)(nil)

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the model to use for message generation.
// Default: anthropic.ModelClaude3_5SonnetLatest
func WithModel(model anthropic.Model) Option {
	return func(c *Client) {
		c.defaultModel = model
	}
}

// WithTemperature sets the temperature parameter for text generation.
func WithTemperature(temp float64) Option {
	return func(c *Client) {
		c.params.Temperature = temp
	}
}

// WithTopP sets the top_p parameter for text generation.
func WithTopP(topP float64) Option {
	return func(c *Client) {
		c.params.TopP = topP
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int64) Option {
	return func(c *Client) {
		c.params.MaxTokens = maxTokens
	}
}

// New creates a new client for the Anthropic API.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("apiKey is required")
	}

	client := &Client{
		defaultModel: anthropic.ModelClaude3_5SonnetLatest,
		params: generationParameters{
			Temperature: 0.0,
			TopP:        1.0,
			MaxTokens:   4096,
		},
	}

	for _, opt := range options {
		opt(client)
	}

	newClient := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	client.client = &newClient

	return client, nil
}

// Predict sends a single user prompt, optionally with screenshots.
func (c *Client) Predict(ctx context.Context, prompt string, images []uipilot.Image) (string, error) {
	msgs := []uipilot.ModelMessage{{Role: uipilot.RoleUser, Text: prompt}}
	if len(images) > 0 {
		msgs[0].Image = &images[0]
		for i := 1; i < len(images); i++ {
			img := images[i]
			msgs = append(msgs, uipilot.ModelMessage{Role: uipilot.RoleUser, Image: &img})
		}
	}
	return c.PredictWithContext(ctx, msgs)
}

// PredictWithContext sends a full multi-turn conversation.
func (c *Client) PredictWithContext(ctx context.Context, messages []uipilot.ModelMessage) (string, error) {
	params := c.createRequest(messages)
	ctxlog.From(ctx, claudePromptScope).Debug("sending messages to claude", "count", len(params.Messages))

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create message", goerr.V("model", string(c.defaultModel)))
	}

	var text strings.Builder
	for _, content := range resp.Content {
		block := content.AsResponseTextBlock()
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	out := text.String()
	ctxlog.From(ctx, claudeResponseScope).Debug("received claude response", "content", out)
	return out, nil
}

// PredictWithContextStream streams the response, forwarding thinking chunks
// to the sink until the action marker appears.
func (c *Client) PredictWithContextStream(ctx context.Context, messages []uipilot.ModelMessage, sink uipilot.StreamSink) (string, error) {
	params := c.createRequest(messages)
	ctxlog.From(ctx, claudePromptScope).Debug("streaming messages to claude", "count", len(params.Messages))

	start := time.Now()
	stream := c.client.Messages.NewStreaming(ctx, params)
	if stream == nil {
		return "", goerr.New("failed to create message stream")
	}

	var (
		full           strings.Builder
		firstToken     time.Duration
		actionDetected bool
	)

	for stream.Next() {
		event := stream.Current()
		if event.Type != "content_block_delta" {
			continue
		}
		deltaEvent := event.AsContentBlockDeltaEvent()
		if deltaEvent.Delta.Type != "text_delta" {
			continue
		}
		textDelta := deltaEvent.Delta.AsTextContentBlockDelta()
		if textDelta.Text == "" {
			continue
		}
		if firstToken == 0 {
			firstToken = time.Since(start)
		}
		full.WriteString(textDelta.Text)

		if !actionDetected {
			if actionMarkerSeen(full.String()) {
				actionDetected = true
				sink.OnActionDetected()
			} else {
				sink.OnThinkChunk(textDelta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", goerr.Wrap(err, "stream receive failed", goerr.V("model", string(c.defaultModel)))
	}

	sink.OnStreamMetrics(uipilot.StreamMetrics{
		TimeToFirstToken: firstToken,
		Total:            time.Since(start),
	})

	text := full.String()
	ctxlog.From(ctx, claudeResponseScope).Debug("received claude streamed response", "content", text)
	return text, nil
}

func actionMarkerSeen(buf string) bool {
	return strings.Contains(buf, "do(action=") || strings.Contains(buf, "finish(message=")
}

func (c *Client) createRequest(messages []uipilot.ModelMessage) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	var converted []anthropic.MessageParam

	for _, msg := range messages {
		if msg.Role == uipilot.RoleSystem {
			system = append(system, anthropic.TextBlockParam{Text: msg.Text})
			continue
		}

		var blocks []anthropic.ContentBlockParamUnion
		if msg.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Text))
		}
		if msg.Image != nil {
			blocks = append(blocks, anthropic.NewImageBlockBase64(
				msg.Image.MimeType(),
				base64.StdEncoding.EncodeToString(msg.Image.Data()),
			))
		}
		if len(blocks) == 0 {
			blocks = append(blocks, anthropic.NewTextBlock(""))
		}

		if msg.Role == uipilot.RoleAssistant {
			converted = append(converted, anthropic.NewAssistantMessage(blocks...))
		} else {
			converted = append(converted, anthropic.NewUserMessage(blocks...))
		}
	}

	return anthropic.MessageNewParams{
		Model:       c.defaultModel,
		MaxTokens:   c.params.MaxTokens,
		Temperature: anthropic.Float(c.params.Temperature),
		TopP:        anthropic.Float(c.params.TopP),
		System:      system,
		Messages:    converted,
	}
}
