package uipilot_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uipilot"
)

func testPNG(t *testing.T) uipilot.Image {
	t.Helper()
	data := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 16)...)
	img, err := uipilot.NewImage(data)
	gt.NoError(t, err)
	return img
}

func TestConversationSingleImageInvariant(t *testing.T) {
	convo := uipilot.NewConversation()
	convo.AddSystemMessage("system prompt")

	img1 := testPNG(t)
	convo.AddUserMessage("turn 1", &img1)
	gt.V(t, convo.ImageCount()).Equal(1)

	convo.AddAssistantMessage("response 1")

	img2 := testPNG(t)
	convo.AddUserMessage("turn 2", &img2)

	// Only the newest user turn holds an image.
	gt.V(t, convo.ImageCount()).Equal(1)
	wire := convo.ToWireFormat()
	gt.V(t, len(wire)).Equal(4)
	gt.Nil(t, wire[1].Image)
	gt.NotNil(t, wire[3].Image)
}

func TestConversationStripLastImage(t *testing.T) {
	convo := uipilot.NewConversation()
	img := testPNG(t)
	convo.AddUserMessage("turn", &img)
	gt.V(t, convo.ImageCount()).Equal(1)

	convo.StripLastImage()
	gt.V(t, convo.ImageCount()).Equal(0)
}

func TestConversationWireFormatIsACopy(t *testing.T) {
	convo := uipilot.NewConversation()
	convo.AddUserMessage("hello", nil)

	wire := convo.ToWireFormat()
	wire[0].Text = "mutated"

	gt.V(t, convo.ToWireFormat()[0].Text).Equal("hello")
}

func TestConversationBudgetEviction(t *testing.T) {
	convo := uipilot.NewConversation()
	convo.SetBudget(200)
	convo.AddSystemMessage("system prompt")

	long := strings.Repeat("screen description ", 50)
	convo.AddUserMessage(long+" one", nil)
	convo.AddAssistantMessage("ack")
	convo.AddUserMessage(long+" two", nil)

	wire := convo.ToWireFormat()

	// The system prompt survives eviction; the oldest user turn does not.
	gt.V(t, wire[0].Role).Equal(uipilot.RoleSystem)
	for _, msg := range wire {
		gt.True(t, !strings.HasSuffix(msg.Text, " one"))
	}
	// The newest turn is never evicted even while over budget.
	gt.True(t, strings.HasSuffix(wire[len(wire)-1].Text, " two"))
}

func TestConversationNoBudgetNoEviction(t *testing.T) {
	convo := uipilot.NewConversation()
	convo.AddSystemMessage("system")
	for i := 0; i < 20; i++ {
		convo.AddUserMessage(strings.Repeat("x", 1000), nil)
		convo.AddAssistantMessage("ok")
	}
	gt.V(t, convo.Len()).Equal(41)
}

func TestEstimateTokenBudgetCountsImages(t *testing.T) {
	convo := uipilot.NewConversation()
	convo.AddUserMessage("short", nil)
	textOnly := convo.EstimateTokenBudget()

	img := testPNG(t)
	convo.AddUserMessage("short", &img)
	withImage := convo.EstimateTokenBudget()

	// An attached image costs a flat amount well above any short text.
	gt.True(t, withImage >= textOnly+1000)
}
