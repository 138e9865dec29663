package leveling

import (
	"sort"
	"strings"
	"unicode"
)

// stopWords are excluded from skill keyword profiles and task tokenization.
// Deliberately small: the length-3 minimum already drops most noise.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "this": {}, "that": {},
	"from": {}, "are": {}, "was": {}, "were": {}, "will": {}, "would": {},
	"should": {}, "could": {}, "have": {}, "has": {}, "had": {}, "not": {},
	"but": {}, "all": {}, "any": {}, "can": {}, "its": {}, "into": {},
	"when": {}, "then": {}, "than": {}, "them": {}, "they": {}, "there": {},
	"where": {}, "which": {}, "while": {}, "about": {}, "after": {},
	"before": {}, "being": {}, "also": {}, "more": {}, "some": {}, "such": {},
	"only": {}, "other": {}, "over": {}, "under": {}, "very": {}, "each": {},
	"how": {}, "what": {}, "why": {}, "who": {}, "you": {}, "your": {},
	"our": {}, "out": {}, "per": {}, "via": {}, "needs": {}, "need": {},
	"make": {}, "made": {}, "using": {}, "use": {}, "used": {}, "one": {},
	"two": {}, "get": {}, "new": {}, "now": {}, "does": {}, "done": {},
}

// Tokenize splits free text into lowercase keyword tokens: words of at least
// minLen characters, stop words excluded, pure numbers dropped. The same
// tokenizer is used for building skill profiles and for scoring task text so
// the two sides always agree.
func Tokenize(text string, minLen int) []string {
	if minLen <= 0 {
		minLen = 3
	}

	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < minLen {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		if !containsLetter(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// BuildKeywordProfile counts keyword frequencies across the given texts and
// keeps the top limit entries. Ties break lexicographically so rebuilding
// from the same source data yields an identical profile.
func BuildKeywordProfile(texts []string, minLen, limit int) map[string]int {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, tok := range Tokenize(text, minLen) {
			counts[tok]++
		}
	}
	if limit <= 0 || len(counts) <= limit {
		return counts
	}

	type kw struct {
		word string
		n    int
	}
	ranked := make([]kw, 0, len(counts))
	for w, n := range counts {
		ranked = append(ranked, kw{w, n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].n != ranked[j].n {
			return ranked[i].n > ranked[j].n
		}
		return ranked[i].word < ranked[j].word
	})

	top := make(map[string]int, limit)
	for _, k := range ranked[:limit] {
		top[k.word] = k.n
	}
	return top
}

// SkillMatcher scores how well a candidate's accumulated keyword profile
// matches the text of a unit of work.
type SkillMatcher struct {
	config SkillMatcherConfig
}

// SkillMatcherConfig represents configuration for skill matching
type SkillMatcherConfig struct {
	// FrequencyCap limits each keyword's contribution so one
	// obsessively-repeated keyword cannot dominate the score.
	FrequencyCap int `json:"frequency_cap"`

	// NeutralScore is returned when there is no keyword evidence either
	// way. Absence of evidence is not evidence of mismatch.
	NeutralScore float64 `json:"neutral_score"`

	// MinWordLength mirrors the profile tokenizer.
	MinWordLength int `json:"min_word_length"`
}

// DefaultSkillMatcherConfig returns default skill matcher configuration
func DefaultSkillMatcherConfig() SkillMatcherConfig {
	return SkillMatcherConfig{
		FrequencyCap:  10,
		NeutralScore:  50,
		MinWordLength: 3,
	}
}

// NewSkillMatcher creates a new skill matcher
func NewSkillMatcher() *SkillMatcher {
	return &SkillMatcher{config: DefaultSkillMatcherConfig()}
}

// NewSkillMatcherWithConfig creates a new skill matcher with custom config
func NewSkillMatcherWithConfig(config SkillMatcherConfig) *SkillMatcher {
	return &SkillMatcher{config: config}
}

// Match returns a 0-100 score for how well the keyword profile matches the
// task text. A candidate with no keyword data, or with zero overlap, gets the
// neutral score rather than 0: an unrelated task must not read as a
// definitively bad fit.
func (m *SkillMatcher) Match(keywords map[string]int, taskText string) float64 {
	if len(keywords) == 0 {
		return m.config.NeutralScore
	}

	distinct := make(map[string]struct{})
	for _, tok := range Tokenize(taskText, m.config.MinWordLength) {
		distinct[tok] = struct{}{}
	}
	if len(distinct) == 0 {
		return m.config.NeutralScore
	}

	matched := 0
	possible := 0
	for word := range distinct {
		possible += m.config.FrequencyCap
		if freq, ok := keywords[word]; ok {
			if freq > m.config.FrequencyCap {
				freq = m.config.FrequencyCap
			}
			matched += freq
		}
	}

	if matched == 0 {
		return m.config.NeutralScore
	}

	score := float64(matched) / float64(possible) * 100
	if score > 100 {
		score = 100
	}
	return score
}
