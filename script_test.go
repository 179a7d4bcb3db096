package uipilot_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uipilot"
)

func TestScriptAppendAndRoundTrip(t *testing.T) {
	script := uipilot.NewScript("order flow")
	script.Append(uipilot.Action{Kind: uipilot.ActionLaunch, App: "com.example.shop"}, "open the shop", 3*time.Second)
	script.Append(uipilot.Action{Kind: uipilot.ActionTap, X: 100, Y: 200}, "tap search", 1500*time.Millisecond)
	script.Append(uipilot.Action{Kind: uipilot.ActionTypeText, Text: "${item}"}, "type the item", time.Second)

	data, err := json.Marshal(script)
	gt.NoError(t, err)

	var decoded uipilot.Script
	gt.NoError(t, json.Unmarshal(data, &decoded))

	gt.V(t, decoded.Version).Equal(uipilot.ScriptVersion)
	gt.V(t, decoded.Name).Equal("order flow")
	gt.V(t, len(decoded.Steps)).Equal(3)
	gt.V(t, decoded.Steps[0].ActionType).Equal(uipilot.ActionLaunch)
	gt.V(t, decoded.Steps[1].PostDelayMS).Equal(1500)
	gt.V(t, decoded.Steps[2].Params["text"]).Equal("${item}")
}

func TestScriptVersionMismatch(t *testing.T) {
	var script uipilot.Script
	err := json.Unmarshal([]byte(`{"version":99,"steps":[]}`), &script)
	gt.True(t, errors.Is(err, uipilot.ErrScriptVersionMismatch))
}

func TestScriptReplay(t *testing.T) {
	device := newFakeDevice()

	script := uipilot.NewScript("replay test")
	script.Append(uipilot.Action{Kind: uipilot.ActionLaunch, App: "com.example.shop"}, "", 0)
	script.Append(uipilot.Action{Kind: uipilot.ActionTap, X: 500, Y: 500}, "", 0)
	script.Append(uipilot.Action{Kind: uipilot.ActionTypeText, Text: "find ${item} now"}, "", 0)
	script.Append(uipilot.Action{Kind: uipilot.ActionBack}, "", 0)

	err := script.Replay(context.Background(), device, map[string]string{"item": "milk"})
	gt.NoError(t, err)

	gt.V(t, device.opened).Equal([]string{"com.example.shop"})
	gt.V(t, device.typed).Equal([]string{"find milk now"})
	gt.V(t, device.backs).Equal(1)
	// Coordinates resolve through the same normalized mapping as live runs.
	gt.V(t, device.taps[0][0]).Equal(uipilot.ToPixels(500, device.width))
}

func TestScriptReplayLiteralBinding(t *testing.T) {
	device := newFakeDevice()

	script := uipilot.NewScript("literal rebind")
	script.Bindings = map[string]string{"item": "burger"}
	script.Append(uipilot.Action{Kind: uipilot.ActionTypeText, Text: "burger"}, "", 0)
	script.Append(uipilot.Action{Kind: uipilot.ActionTypeText, Text: "checkout"}, "", 0)

	err := script.Replay(context.Background(), device, map[string]string{"item": "pizza"})
	gt.NoError(t, err)

	// Text recorded as a binding's literal value rebinds without a
	// placeholder; unrelated text is left alone.
	gt.V(t, device.typed).Equal([]string{"pizza", "checkout"})
}

func TestScriptNegativeCoordinateRoundTrip(t *testing.T) {
	script := uipilot.NewScript("swipe up")
	script.Append(uipilot.Action{Kind: uipilot.ActionSwipe, X: 540, Y: 1600, X2: 540, Y2: -120}, "", 0)

	data, err := json.Marshal(script)
	gt.NoError(t, err)
	var decoded uipilot.Script
	gt.NoError(t, json.Unmarshal(data, &decoded))

	gt.V(t, decoded.Steps[0].Params["y2"]).Equal("-120")

	action, aerr := uipilot.ScriptStepAction(&decoded.Steps[0], nil, nil)
	gt.NoError(t, aerr)
	gt.V(t, action.Y2).Equal(-120)
}

func TestScriptReplayCancelled(t *testing.T) {
	device := newFakeDevice()

	script := uipilot.NewScript("cancelled")
	script.Append(uipilot.Action{Kind: uipilot.ActionTap, X: 1, Y: 1}, "", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := script.Replay(ctx, device, nil)
	gt.True(t, errors.Is(err, uipilot.ErrRunCancelled))
	gt.V(t, len(device.taps)).Equal(0)
}

func TestScriptReplayUnreplayableStep(t *testing.T) {
	script := uipilot.NewScript("bad")
	script.Append(uipilot.Action{Kind: uipilot.ActionTakeOver, Text: "manual"}, "", 0)

	err := script.Replay(context.Background(), newFakeDevice(), nil)
	gt.Error(t, err)
}
