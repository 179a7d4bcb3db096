package skill

import (
	"regexp"
	"strings"
)

// RawInstructionKey is the reserved parameter key that always holds the
// unmodified instruction.
const RawInstructionKey = "_raw_instruction"

var (
	// Directional captures: "to <dest>", "call <contact>", "at <time>".
	destinationPattern = regexp.MustCompile(`(?i)(?:to|towards|去|到)\s+(.+?)(?:\s+(?:by|via|before|at)\b|$)`)
	contactPattern     = regexp.MustCompile(`(?i)(?:to|call|message|text|给)\s+([\p{L}\d]+(?:\s+[\p{L}\d]+)?)`)
	timePattern        = regexp.MustCompile(`(?i)(?:at|by|before)\s+([\d:]+\s*(?:am|pm)?|noon|midnight|tonight|tomorrow)`)
)

// ExtractParams applies per-parameter-name heuristics to pull values out of
// the instruction. Extraction is best effort: a parameter that cannot be
// resolved is simply absent from the result. The raw instruction is always
// retained under RawInstructionKey.
func ExtractParams(instruction string, def Definition) map[string]string {
	params := map[string]string{
		RawInstructionKey: instruction,
	}

	for _, p := range def.Params {
		if value := extractOne(instruction, p, def); value != "" {
			params[p.Name] = value
		} else if p.Default != "" {
			params[p.Name] = p.Default
		}
	}

	return params
}

func extractOne(instruction string, p Param, def Definition) string {
	name := strings.ToLower(p.Name)

	switch {
	case containsAny(name, "destination", "address", "place", "location"):
		if m := destinationPattern.FindStringSubmatch(instruction); m != nil {
			return strings.TrimSpace(m[1])
		}
	case containsAny(name, "contact", "recipient", "callee"):
		if m := contactPattern.FindStringSubmatch(instruction); m != nil {
			return trimTrailingPreposition(strings.TrimSpace(m[1]))
		}
	case containsAny(name, "time", "when", "schedule"):
		if m := timePattern.FindStringSubmatch(instruction); m != nil {
			return strings.TrimSpace(m[1])
		}
	case containsAny(name, "food", "item", "song", "query", "content", "keyword", "product"):
		return freeTextRemainder(instruction, def)
	}

	return ""
}

// freeTextRemainder strips the skill's keyword tokens and leading verbs
// from the instruction and returns what is left, which for "order me a
// burger" against keyword "order" is "burger".
func freeTextRemainder(instruction string, def Definition) string {
	text := " " + strings.ToLower(instruction) + " "

	tokens := append([]string{}, def.Keywords...)
	tokens = append(tokens, def.Name)
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			text = strings.ReplaceAll(text, " "+tok+" ", " ")
		}
	}

	var kept []string
	for _, f := range strings.Fields(text) {
		if isFillerWord(f) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// trimTrailingPreposition drops a dangling preposition the greedy name
// capture may have swallowed, as in "message Alice at 9pm".
func trimTrailingPreposition(s string) string {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return s
	}
	switch strings.ToLower(fields[len(fields)-1]) {
	case "at", "by", "before", "on", "in":
		return strings.Join(fields[:len(fields)-1], " ")
	}
	return s
}

func isFillerWord(w string) bool {
	switch w {
	case "a", "an", "the", "me", "my", "some", "please", "for", "i", "want", "would", "like":
		return true
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
