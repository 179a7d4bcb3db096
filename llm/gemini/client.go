package gemini

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uipilot"
	"google.golang.org/genai"
)

var (
	// geminiPromptScope is the logging scope for Gemini prompts
	geminiPromptScope = ctxlog.NewScope("gemini_prompt", ctxlog.EnabledBy("UIPILOT_LOGGING_GEMINI_PROMPT"))

	// geminiResponseScope is the logging scope for Gemini responses
	geminiResponseScope = ctxlog.NewScope("gemini_response", ctxlog.EnabledBy("UIPILOT_LOGGING_GEMINI_RESPONSE"))
)

const (
	DefaultModel = "gemini-2.0-flash"
)

// Client is a vision-capable model client backed by the Gemini API.
// It satisfies uipilot.ModelClient.
type Client struct {
	// client is the underlying Gemini client.
	client *genai.Client

	// defaultModel is the model to use for content generation.
	// It can be overridden using WithModel option.
	defaultModel string

	// generationConfig holds sampling and output controls.
	generationConfig *genai.GenerateContentConfig
}

var _ uipilot.ModelClient = (*Client)(nil)

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the model to use for content generation.
// See default model in [DefaultModel].
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithTemperature sets the temperature parameter for text generation.
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		c.ensureConfig()
		c.generationConfig.Temperature = genai.Ptr(temp)
	}
}

// WithTopP sets the top_p parameter for text generation.
func WithTopP(topP float32) Option {
	return func(c *Client) {
		c.ensureConfig()
		c.generationConfig.TopP = genai.Ptr(topP)
	}
}

// WithMaxTokens sets the maximum number of output tokens.
func WithMaxTokens(maxTokens int32) Option {
	return func(c *Client) {
		c.ensureConfig()
		c.generationConfig.MaxOutputTokens = maxTokens
	}
}

func (c *Client) ensureConfig() {
	if c.generationConfig == nil {
		c.generationConfig = &genai.GenerateContentConfig{}
	}
}

// New creates a new client for the Gemini API.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("apiKey is required")
	}

	client := &Client{
		defaultModel:     DefaultModel,
		generationConfig: &genai.GenerateContentConfig{},
	}

	for _, opt := range options {
		opt(client)
	}

	config := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	newClient, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}
	client.client = newClient

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
	contents, config := c.convert(messages)
	ctxlog.From(ctx, geminiPromptScope).Debug("sending contents to gemini", "count", len(contents))

	resp, err := c.client.Models.GenerateContent(ctx, c.defaultModel, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content", goerr.V("model", c.defaultModel))
	}

	text := responseText(resp)
	ctxlog.From(ctx, geminiResponseScope).Debug("received gemini response", "content", text)
	return text, nil
}

// PredictWithContextStream streams the response, forwarding thinking chunks
// to the sink until the action marker appears.
func (c *Client) PredictWithContextStream(ctx context.Context, messages []uipilot.ModelMessage, sink uipilot.StreamSink) (string, error) {
	contents, config := c.convert(messages)
	ctxlog.From(ctx, geminiPromptScope).Debug("streaming contents to gemini", "count", len(contents))

	start := time.Now()
	var (
		full           strings.Builder
		firstToken     time.Duration
		actionDetected bool
	)

	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.defaultModel, contents, config) {
		if err != nil {
			return "", goerr.Wrap(err, "stream receive failed", goerr.V("model", c.defaultModel))
		}
		chunk := responseText(resp)
		if chunk == "" {
			continue
		}
		if firstToken == 0 {
			firstToken = time.Since(start)
		}
		full.WriteString(chunk)

		if !actionDetected {
			if actionMarkerSeen(full.String()) {
				actionDetected = true
				sink.OnActionDetected()
			} else {
				sink.OnThinkChunk(chunk)
			}
		}
	}

	sink.OnStreamMetrics(uipilot.StreamMetrics{
		TimeToFirstToken: firstToken,
		Total:            time.Since(start),
	})

	text := full.String()
	ctxlog.From(ctx, geminiResponseScope).Debug("received gemini streamed response", "content", text)
	return text, nil
}

func actionMarkerSeen(buf string) bool {
	return strings.Contains(buf, "do(action=") || strings.Contains(buf, "finish(message=")
}

func (c *Client) convert(messages []uipilot.ModelMessage) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}
	if c.generationConfig != nil {
		cloned := *c.generationConfig
		config = &cloned
	}

	var contents []*genai.Content
	for _, msg := range messages {
		if msg.Role == uipilot.RoleSystem {
			config.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: msg.Text}},
			}
			continue
		}

		var parts []*genai.Part
		if msg.Text != "" {
			parts = append(parts, &genai.Part{Text: msg.Text})
		}
		if msg.Image != nil {
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{
					MIMEType: msg.Image.MimeType(),
					Data:     msg.Image.Data(),
				},
			})
		}
		if len(parts) == 0 {
			continue
		}

		role := genai.RoleUser
		if msg.Role == uipilot.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	return contents, config
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
