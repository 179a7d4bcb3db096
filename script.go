package uipilot

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// ScriptVersion is the serialized format version of recorded scripts.
const ScriptVersion = 1

// ScriptStep is one recorded action with the delay to apply after it.
type ScriptStep struct {
	ActionType       ActionKind        `json:"actionType"`
	Params           map[string]string `json:"params,omitempty"`
	PostDelayMS      int               `json:"postDelayMs"`
	HumanDescription string            `json:"humanDescription,omitempty"`
}

// Script is an ordered recording of dispatched steps that can be replayed
// without a model. Named parameter bindings are substituted into text and
// app fields at replay via ${name} placeholders.
type Script struct {
	Version int          `json:"version"`
	Name    string       `json:"name,omitempty"`
	Steps   []ScriptStep `json:"steps"`

	// Bindings are the default parameter values; Replay may override them.
	Bindings map[string]string `json:"bindings,omitempty"`
}

// NewScript creates an empty script recording.
func NewScript(name string) *Script {
	return &Script{Version: ScriptVersion, Name: name}
}

// UnmarshalJSON validates the format version while decoding.
func (s *Script) UnmarshalJSON(data []byte) error {
	type scriptAlias Script
	var alias scriptAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	if alias.Version != ScriptVersion {
		return goerr.Wrap(ErrScriptVersionMismatch, "unsupported script version",
			goerr.V("got", alias.Version), goerr.V("want", ScriptVersion))
	}
	*s = Script(alias)
	return nil
}

// Append records one dispatched action.
func (s *Script) Append(action Action, description string, postDelay time.Duration) {
	step := ScriptStep{
		ActionType:       action.Kind,
		Params:           actionParams(action),
		PostDelayMS:      int(postDelay / time.Millisecond),
		HumanDescription: description,
	}
	s.Steps = append(s.Steps, step)
}

// Replay dispatches the recorded steps directly against the device. The
// given bindings override the recorded ones; ${name} placeholders in text
// and app params are substituted before dispatch and unresolved
// placeholders are left literal so the failure is visible on screen rather
// than silently hidden.
func (s *Script) Replay(ctx context.Context, device DeviceController, bindings map[string]string) error {
	merged := map[string]string{}
	for k, v := range s.Bindings {
		merged[k] = v
	}
	for k, v := range bindings {
		merged[k] = v
	}

	width, height, err := device.ScreenSize(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to get screen size for replay")
	}

	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return goerr.Wrap(ErrRunCancelled, "replay cancelled", goerr.V("step", i))
		}

		action, err := step.toAction(s.Bindings, merged)
		if err != nil {
			return goerr.Wrap(err, "invalid recorded step", goerr.V("step", i))
		}

		agent := Agent{device: device}
		if err := agent.dispatch(ctx, action, width, height); err != nil {
			return goerr.Wrap(err, "replay dispatch failed", goerr.V("step", i),
				goerr.V("action", action.String()))
		}

		if step.PostDelayMS > 0 {
			timer := time.NewTimer(time.Duration(step.PostDelayMS) * time.Millisecond)
			select {
			case <-ctx.Done():
				timer.Stop()
				return goerr.Wrap(ErrRunCancelled, "replay cancelled during delay", goerr.V("step", i))
			case <-timer.C:
			}
		}
	}
	return nil
}

func (s *ScriptStep) toAction(recorded, bindings map[string]string) (Action, error) {
	get := func(key string) string {
		return substituteBindings(s.Params[key], recorded, bindings)
	}
	getInt := func(key string) int {
		v, _ := strconv.Atoi(s.Params[key])
		return v
	}

	action := Action{Kind: s.ActionType}
	switch s.ActionType {
	case ActionTap, ActionDoubleTap, ActionLongPress:
		action.X, action.Y = getInt("x"), getInt("y")
	case ActionSwipe:
		action.X, action.Y = getInt("x"), getInt("y")
		action.X2, action.Y2 = getInt("x2"), getInt("y2")
	case ActionTypeText:
		action.Text = get("text")
	case ActionLaunch:
		action.App = get("app")
	case ActionBack, ActionHome:
	case ActionWait:
		action.Seconds = float64(getInt("seconds"))
	default:
		return Action{}, goerr.New("step action is not replayable", goerr.V("kind", string(s.ActionType)))
	}
	return action, nil
}

// substituteBindings replaces ${name} placeholders, or the literal bound
// value when the recorded text matches a binding's recorded value exactly.
// The literal path lets scripts recorded with concrete text rebind without
// editing the steps to insert placeholders.
func substituteBindings(value string, recorded, bindings map[string]string) string {
	for name, bound := range bindings {
		value = strings.ReplaceAll(value, "${"+name+"}", bound)
	}
	for name, orig := range recorded {
		if value == orig {
			if bound, ok := bindings[name]; ok {
				return bound
			}
		}
	}
	return value
}

func actionParams(action Action) map[string]string {
	params := map[string]string{}
	switch action.Kind {
	case ActionTap, ActionDoubleTap, ActionLongPress:
		params["x"], params["y"] = strconv.Itoa(action.X), strconv.Itoa(action.Y)
	case ActionSwipe:
		params["x"], params["y"] = strconv.Itoa(action.X), strconv.Itoa(action.Y)
		params["x2"], params["y2"] = strconv.Itoa(action.X2), strconv.Itoa(action.Y2)
	case ActionTypeText:
		params["text"] = action.Text
	case ActionLaunch:
		params["app"] = action.App
	case ActionWait:
		params["seconds"] = strconv.Itoa(int(action.Seconds))
	}
	return params
}
