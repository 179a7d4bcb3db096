package uipilot

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// The model may answer in one of two grammars: a compact functional call
// form (`do(action="Tap", element=[x,y])` / `finish(message="...")`) or a
// structured field form (a JSON object with action / coordinate /
// coordinate2 / text / button fields). Both are handled here. Everything is
// a total function: garbage in yields ParseError out, never a panic.

const (
	markerFinish = "finish(message="
	markerDo     = "do(action="
)

// ExtractAction locates the action substring inside a full model response.
// Preference order: a finish marker, then a do marker, then an
// <answer>...</answer> wrapper, falling back to the whole trimmed response.
func ExtractAction(response string) string {
	if idx := strings.Index(response, markerFinish); idx >= 0 {
		return strings.TrimSpace(response[idx:])
	}
	if idx := strings.Index(response, markerDo); idx >= 0 {
		return strings.TrimSpace(response[idx:])
	}
	if inner, ok := extractTagged(response, "answer"); ok {
		return strings.TrimSpace(inner)
	}
	return strings.TrimSpace(response)
}

// ExtractThinking returns the reasoning text that precedes the detected
// action marker, or the <think>...</think> content when present.
func ExtractThinking(response string) string {
	if inner, ok := extractTagged(response, "think"); ok {
		return strings.TrimSpace(inner)
	}
	if idx := strings.Index(response, markerFinish); idx >= 0 {
		return strings.TrimSpace(response[:idx])
	}
	if idx := strings.Index(response, markerDo); idx >= 0 {
		return strings.TrimSpace(response[:idx])
	}
	if idx := strings.Index(response, "<answer>"); idx >= 0 {
		return strings.TrimSpace(response[:idx])
	}
	return ""
}

func extractTagged(s, tag string) (string, bool) {
	open := "<" + tag + ">"
	closing := "</" + tag + ">"
	start := strings.Index(s, open)
	if start < 0 {
		return "", false
	}
	rest := s[start+len(open):]
	end := strings.Index(rest, closing)
	if end < 0 {
		// Unterminated tag: take everything after the opening tag. Models
		// truncated by a token limit often drop the closing tag.
		return rest, true
	}
	return rest[:end], true
}

// ParseAction turns raw model text into an Action. An unknown but
// well-formed action name yields Kind=ActionInvalid with a nil error; text
// with no recognizable action at all yields a ParseError. The caller decides
// which of the two is fatal.
func ParseAction(raw string) (Action, error) {
	text := ExtractAction(raw)
	if text == "" {
		return Action{Kind: ActionInvalid, Raw: raw},
			goerr.Wrap(ErrParseAction, "empty model output", goerr.V("raw", raw))
	}

	if strings.HasPrefix(text, markerFinish) {
		msg, _ := extractQuoted(text[len(markerFinish):])
		return Action{Kind: ActionFinish, Text: msg}, nil
	}

	if strings.HasPrefix(text, markerDo) {
		return parseDoCall(text, raw)
	}

	if act, ok := parseStructured(text); ok {
		return act, nil
	}

	return Action{Kind: ActionInvalid, Raw: raw},
		goerr.Wrap(ErrParseAction, "no action marker found", goerr.V("raw", raw))
}

// parseDoCall parses `do(action="Name", key=value, ...)`. Values are quoted
// strings, bracketed coordinate pairs or bare numbers.
func parseDoCall(text, raw string) (Action, error) {
	body := text[len("do("):]
	params := map[string]string{}
	coords := map[string][2]int{}

	for {
		body = strings.TrimLeft(body, " \t\n,")
		if body == "" || strings.HasPrefix(body, ")") {
			break
		}
		eq := strings.IndexByte(body, '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(body[:eq])
		body = body[eq+1:]

		switch {
		case strings.HasPrefix(body, `"`):
			val, rest := extractQuoted(body)
			params[key] = val
			body = rest
		case strings.HasPrefix(body, "[") || strings.HasPrefix(body, "("):
			pair, rest, ok := extractPair(body)
			if ok {
				coords[key] = pair
			}
			body = rest
		default:
			// Bare token up to the next comma or closing paren.
			end := strings.IndexAny(body, ",)")
			if end < 0 {
				end = len(body)
			}
			params[key] = strings.TrimSpace(body[:end])
			body = body[end:]
		}
	}

	name, ok := params["action"]
	if !ok {
		return Action{Kind: ActionInvalid, Raw: raw},
			goerr.Wrap(ErrParseAction, "do() call without action parameter", goerr.V("raw", raw))
	}

	act := Action{Raw: raw}
	if pair, ok := firstPair(coords, "element", "coordinate", "start"); ok {
		act.X, act.Y = pair[0], pair[1]
	}
	if pair, ok := firstPair(coords, "end", "coordinate2", "to"); ok {
		act.X2, act.Y2 = pair[0], pair[1]
	}

	switch normalizeActionName(name) {
	case "tap", "click":
		act.Kind = ActionTap
	case "doubletap", "doubleclick":
		act.Kind = ActionDoubleTap
	case "longpress":
		act.Kind = ActionLongPress
	case "swipe", "scroll":
		act.Kind = ActionSwipe
	case "type", "input", "typetext":
		act.Kind = ActionTypeText
		act.Text = firstParam(params, "text", "content")
	case "launch", "openapp", "open":
		act.Kind = ActionLaunch
		act.App = firstParam(params, "app", "package", "name")
	case "back", "pressback":
		act.Kind = ActionBack
	case "home", "presshome":
		act.Kind = ActionHome
	case "wait":
		act.Kind = ActionWait
		act.Seconds = parseSeconds(firstParam(params, "seconds", "duration"))
	case "takeover", "calluser":
		act.Kind = ActionTakeOver
		act.Text = firstParam(params, "message", "text")
	case "answer":
		act.Kind = ActionAnswer
		act.Text = firstParam(params, "text", "message")
	case "finish", "finished":
		act.Kind = ActionFinish
		act.Text = firstParam(params, "message", "text")
	default:
		act.Kind = ActionInvalid
	}

	return act, nil
}

// structuredAction is the field form some models emit as a JSON object.
type structuredAction struct {
	Action      string    `json:"action"`
	Coordinate  []float64 `json:"coordinate"`
	Coordinate2 []float64 `json:"coordinate2"`
	Text        string    `json:"text"`
	Button      string    `json:"button"`
}

func parseStructured(text string) (Action, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return Action{}, false
	}

	var s structuredAction
	if err := json.Unmarshal([]byte(text[start:end+1]), &s); err != nil || s.Action == "" {
		return Action{}, false
	}

	act := Action{Raw: text}
	if len(s.Coordinate) >= 2 {
		act.X, act.Y = int(s.Coordinate[0]), int(s.Coordinate[1])
	}
	if len(s.Coordinate2) >= 2 {
		act.X2, act.Y2 = int(s.Coordinate2[0]), int(s.Coordinate2[1])
	}

	switch normalizeActionName(s.Action) {
	case "tap", "click", "leftclick":
		act.Kind = ActionTap
		if normalizeActionName(s.Button) == "right" {
			act.Kind = ActionLongPress
		}
	case "doubletap", "doubleclick":
		act.Kind = ActionDoubleTap
	case "longpress":
		act.Kind = ActionLongPress
	case "swipe", "drag":
		act.Kind = ActionSwipe
	case "type", "input":
		act.Kind = ActionTypeText
		act.Text = s.Text
	case "launch", "openapp":
		act.Kind = ActionLaunch
		act.App = s.Text
	case "back":
		act.Kind = ActionBack
	case "home":
		act.Kind = ActionHome
	case "wait":
		act.Kind = ActionWait
		act.Seconds = parseSeconds(s.Text)
	case "answer":
		act.Kind = ActionAnswer
		act.Text = s.Text
	case "finish", "finished", "terminate":
		act.Kind = ActionFinish
		act.Text = s.Text
	default:
		act.Kind = ActionInvalid
	}

	return act, true
}

// extractQuoted reads a double-quoted string starting at s. The closing
// quote is the first unescaped `"`; model text may legitimately contain
// nested escaped quotes. Returns the unescaped value and the remainder
// after the closing quote.
func extractQuoted(s string) (string, string) {
	if !strings.HasPrefix(s, `"`) {
		end := strings.IndexAny(s, ",)")
		if end < 0 {
			end = len(s)
		}
		return strings.TrimSpace(s[:end]), s[end:]
	}

	var b strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '"':
				b.WriteByte('"')
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte('\\')
				b.WriteByte(s[i+1])
			}
			i += 2
			continue
		}
		if c == '"' {
			return b.String(), s[i+1:]
		}
		b.WriteByte(c)
		i++
	}
	// Unterminated quote: keep what we have.
	return b.String(), ""
}

var pairPattern = regexp.MustCompile(`^[\[(]\s*(-?\d+)\s*,\s*(-?\d+)\s*[\])]`)

func extractPair(s string) ([2]int, string, bool) {
	m := pairPattern.FindStringSubmatch(s)
	if m == nil {
		end := strings.IndexAny(s, ",)")
		if end < 0 {
			end = len(s)
		}
		return [2]int{}, s[end:], false
	}
	x, _ := strconv.Atoi(m[1])
	y, _ := strconv.Atoi(m[2])
	return [2]int{x, y}, s[len(m[0]):], true
}

func firstPair(coords map[string][2]int, keys ...string) ([2]int, bool) {
	for _, k := range keys {
		if v, ok := coords[k]; ok {
			return v, true
		}
	}
	return [2]int{}, false
}

func firstParam(params map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := params[k]; ok {
			return v
		}
	}
	return ""
}

func normalizeActionName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "")
	name = strings.ReplaceAll(name, "_", "")
	return name
}

func parseSeconds(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "s")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 1
	}
	return v
}
