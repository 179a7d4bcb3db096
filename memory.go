package uipilot

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// perImageTokenCost is the flat cost charged per attached image in the
	// advisory token estimate.
	perImageTokenCost = 1500

	// fallbackBytesPerToken is used when no tiktoken encoder is available
	// (e.g. offline, encoder download disabled).
	fallbackBytesPerToken = 4
)

// Conversation is the ordered multi-turn message log for one run. At most
// one message in the whole log carries an image at any time: the most
// recent user turn. Older screenshots are stripped because stale pixels
// only waste the image token budget without informing the next decision.
type Conversation struct {
	messages []ModelMessage

	// budget, when positive, is a hard cap on the token estimate. Oldest
	// non-system turns are evicted once the estimate exceeds it.
	budget int
}

// NewConversation creates an empty conversation memory.
func NewConversation() *Conversation {
	return &Conversation{}
}

// SetBudget enables hard cap eviction. Zero or negative disables it.
func (c *Conversation) SetBudget(tokens int) {
	c.budget = tokens
}

// AddSystemMessage records the system prompt. Called once per run.
func (c *Conversation) AddSystemMessage(text string) {
	c.messages = append(c.messages, ModelMessage{Role: RoleSystem, Text: text})
}

// AddUserMessage records a user turn, optionally with a screenshot. Any
// image held by an earlier message is dropped so the newest user turn is
// the only image bearing message.
func (c *Conversation) AddUserMessage(text string, image *Image) {
	c.stripImages()
	c.messages = append(c.messages, ModelMessage{Role: RoleUser, Text: text, Image: image})
	c.enforceBudget()
}

// AddAssistantMessage records the model response for the latest user turn.
func (c *Conversation) AddAssistantMessage(text string) {
	c.messages = append(c.messages, ModelMessage{Role: RoleAssistant, Text: text})
	c.enforceBudget()
}

// StripLastImage drops the image from the newest user turn. Called
// immediately after the model has produced a response for it.
func (c *Conversation) StripLastImage() {
	c.stripImages()
}

func (c *Conversation) stripImages() {
	for i := range c.messages {
		c.messages[i].Image = nil
	}
}

// ToWireFormat serializes the log into the message array for the model
// client. The returned slice shares no structure with the internal log.
func (c *Conversation) ToWireFormat() []ModelMessage {
	out := make([]ModelMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages in the log.
func (c *Conversation) Len() int { return len(c.messages) }

// ImageCount returns how many messages currently carry an image.
func (c *Conversation) ImageCount() int {
	n := 0
	for _, m := range c.messages {
		if m.Image != nil {
			n++
		}
	}
	return n
}

// EstimateTokenBudget returns an advisory token estimate for the whole log:
// encoded text length plus a fixed per-image cost. It is meant for
// diagnostics and the optional hard cap, not for billing.
func (c *Conversation) EstimateTokenBudget() int {
	total := 0
	for _, m := range c.messages {
		total += estimateTextTokens(m.Text)
		if m.Image != nil {
			total += perImageTokenCost
		}
	}
	return total
}

// enforceBudget evicts the oldest non-system turns while the estimate
// exceeds the configured cap. The system prompt and the newest user turn
// are never evicted.
func (c *Conversation) enforceBudget() {
	if c.budget <= 0 {
		return
	}
	for c.EstimateTokenBudget() > c.budget {
		idx := -1
		for i, m := range c.messages {
			if m.Role != RoleSystem {
				idx = i
				break
			}
		}
		if idx < 0 || idx == len(c.messages)-1 {
			return
		}
		c.messages = append(c.messages[:idx], c.messages[idx+1:]...)
	}
}

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

func estimateTextTokens(text string) int {
	encoderOnce.Do(func() {
		// Encoder init can fail when the BPE data is unreachable; the
		// byte-length fallback below covers that case.
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			encoder = enc
		}
	})
	if encoder != nil {
		return len(encoder.Encode(text, nil, nil))
	}
	return len(text) / fallbackBytesPerToken
}
