package openai

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uipilot"
	"github.com/sashabaranov/go-openai"
)

var (
	// openaiPromptScope is the logging scope for OpenAI prompts
	openaiPromptScope = ctxlog.NewScope("openai_prompt", ctxlog.EnabledBy("UIPILOT_LOGGING_OPENAI_PROMPT"))

	// openaiResponseScope is the logging scope for OpenAI responses
	openaiResponseScope = ctxlog.NewScope("openai_response", ctxlog.EnabledBy("UIPILOT_LOGGING_OPENAI_RESPONSE"))
)

const (
	DefaultModel = "gpt-4o"
)

// generationParameters represents the parameters for text generation.
type generationParameters struct {
	// Temperature controls randomness in the output.
	Temperature float32

	// TopP controls diversity via nucleus sampling.
	TopP float32

	// MaxTokens limits the number of tokens to generate.
	MaxTokens int
}

// Client is a vision-capable model client backed by the OpenAI API.
// It satisfies uipilot.ModelClient.
type Client struct {
	// client is the underlying OpenAI client.
	client *openai.Client

	// defaultModel is the model to use for chat completions.
	// It can be overridden using WithModel option.
	defaultModel string

	// baseURL is the custom base URL for the OpenAI API.
	// If empty, uses the default OpenAI API endpoints.
	baseURL string

	// generation parameters
	params generationParameters
}

var _ uipilot.ModelClient = (*Client)(nil)

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the default model to use for chat completions.
// The model name should be a valid OpenAI model identifier.
// See default model in [DefaultModel].
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithBaseURL sets a custom endpoint, e.g. a local vLLM server hosting a
// device-control fine-tune.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTemperature sets the temperature parameter for text generation.
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		c.params.Temperature = temp
	}
}

// WithTopP sets the top_p parameter for text generation.
func WithTopP(topP float32) Option {
	return func(c *Client) {
		c.params.TopP = topP
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int) Option {
	return func(c *Client) {
		c.params.MaxTokens = maxTokens
	}
}

// New creates a new client for the OpenAI API.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("apiKey is required")
	}

	client := &Client{
		defaultModel: DefaultModel,
		params: generationParameters{
			Temperature: 0.0,
			MaxTokens:   2048,
		},
	}

	for _, opt := range options {
		opt(client)
	}

	config := openai.DefaultConfig(apiKey)
	if client.baseURL != "" {
		config.BaseURL = client.baseURL
	}
	client.client = openai.NewClientWithConfig(config)

	return client, nil
}

// Predict sends a single user prompt, optionally with screenshots, and
// returns the raw model text.
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
	req := c.buildRequest(messages)
	logRequest(ctx, req)

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create chat completion", goerr.V("model", req.Model))
	}
	if len(resp.Choices) == 0 {
		return "", goerr.New("no choices in chat completion response", goerr.V("model", req.Model))
	}

	text := resp.Choices[0].Message.Content
	ctxlog.From(ctx, openaiResponseScope).Debug("received openai response", "content", text)
	return text, nil
}

// PredictWithContextStream streams the response, forwarding chunks of
// thinking text to the sink until the action marker appears.
func (c *Client) PredictWithContextStream(ctx context.Context, messages []uipilot.ModelMessage, sink uipilot.StreamSink) (string, error) {
	req := c.buildRequest(messages)
	req.Stream = true
	logRequest(ctx, req)

	start := time.Now()
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create chat completion stream", goerr.V("model", req.Model))
	}
	defer stream.Close()

	var (
		full           strings.Builder
		firstToken     time.Duration
		actionDetected bool
	)

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", goerr.Wrap(err, "stream receive failed", goerr.V("model", req.Model))
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if firstToken == 0 {
			firstToken = time.Since(start)
		}
		full.WriteString(delta)

		if !actionDetected {
			if actionMarkerSeen(full.String()) {
				actionDetected = true
				sink.OnActionDetected()
			} else {
				sink.OnThinkChunk(delta)
			}
		}
	}

	sink.OnStreamMetrics(uipilot.StreamMetrics{
		TimeToFirstToken: firstToken,
		Total:            time.Since(start),
	})

	text := full.String()
	ctxlog.From(ctx, openaiResponseScope).Debug("received openai streamed response", "content", text)
	return text, nil
}

func actionMarkerSeen(buf string) bool {
	return strings.Contains(buf, "do(action=") || strings.Contains(buf, "finish(message=")
}

func (c *Client) buildRequest(messages []uipilot.ModelMessage) openai.ChatCompletionRequest {
	var converted []openai.ChatCompletionMessage
	for _, msg := range messages {
		converted = append(converted, convertMessage(msg))
	}

	return openai.ChatCompletionRequest{
		Model:       c.defaultModel,
		Messages:    converted,
		Temperature: c.params.Temperature,
		TopP:        c.params.TopP,
		MaxTokens:   c.params.MaxTokens,
	}
}

func convertMessage(msg uipilot.ModelMessage) openai.ChatCompletionMessage {
	role := openai.ChatMessageRoleUser
	switch msg.Role {
	case uipilot.RoleSystem:
		role = openai.ChatMessageRoleSystem
	case uipilot.RoleAssistant:
		role = openai.ChatMessageRoleAssistant
	}

	if msg.Image == nil {
		return openai.ChatCompletionMessage{Role: role, Content: msg.Text}
	}

	parts := []openai.ChatMessagePart{}
	if msg.Text != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: msg.Text,
		})
	}
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL:    msg.Image.DataURL(),
			Detail: openai.ImageURLDetailHigh,
		},
	})

	return openai.ChatCompletionMessage{Role: role, MultiContent: parts}
}

func logRequest(ctx context.Context, req openai.ChatCompletionRequest) {
	logger := ctxlog.From(ctx, openaiPromptScope)
	for _, msg := range req.Messages {
		text := msg.Content
		if text == "" && len(msg.MultiContent) > 0 {
			text = "(multimodal content)"
		}
		logger.Debug("sending message to openai", "role", msg.Role, "content", text)
	}
}
