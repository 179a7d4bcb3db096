package skill

import (
	"strings"
	"unicode"
)

// Match score tiers. Exact keyword containment beats name containment beats
// fuzzy description overlap.
const (
	scoreKeyword     = 0.9
	scoreName        = 0.8
	scoreOverlapMin  = 0.3
	scoreOverlapSpan = 0.4
)

// MatchScore rates how well an instruction matches a skill.
func MatchScore(instruction string, def Definition) float64 {
	lower := strings.ToLower(instruction)

	for _, kw := range def.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return scoreKeyword
		}
	}

	if name := strings.ToLower(strings.TrimSpace(def.Name)); name != "" && strings.Contains(lower, name) {
		return scoreName
	}

	words := descriptionWords(def.Description)
	if len(words) == 0 {
		return 0
	}
	matched := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	fraction := float64(matched) / float64(len(words))
	return scoreOverlapMin + scoreOverlapSpan*fraction
}

// descriptionWords tokenizes a description into lowercase words worth
// matching. Short function words are skipped.
func descriptionWords(desc string) []string {
	fields := strings.FieldsFunc(strings.ToLower(desc), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var words []string
	for _, f := range fields {
		if len(f) > 3 {
			words = append(words, f)
		}
	}
	return words
}
