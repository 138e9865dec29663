package leveling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	t.Run("lowercases and splits on non-word runes", func(t *testing.T) {
		tokens := Tokenize("Fix OAuth2 token-refresh in API/gateway", 3)
		assert.Equal(t, []string{"fix", "oauth2", "token", "refresh", "api", "gateway"}, tokens)
	})

	t.Run("drops stop words and short tokens", func(t *testing.T) {
		tokens := Tokenize("the fix for a db and the api", 3)
		assert.Equal(t, []string{"fix", "api"}, tokens)
	})

	t.Run("drops pure numbers", func(t *testing.T) {
		tokens := Tokenize("migrate 12345 rows to v2024 schema", 3)
		assert.NotContains(t, tokens, "12345")
		assert.Contains(t, tokens, "v2024")
		assert.Contains(t, tokens, "schema")
	})

	t.Run("empty text yields no tokens", func(t *testing.T) {
		assert.Empty(t, Tokenize("", 3))
		assert.Empty(t, Tokenize("a an of", 3))
	})
}

func TestBuildKeywordProfile(t *testing.T) {
	t.Run("counts frequencies across texts", func(t *testing.T) {
		profile := BuildKeywordProfile([]string{
			"payment gateway integration",
			"payment refunds",
		}, 3, 50)
		assert.Equal(t, 2, profile["payment"])
		assert.Equal(t, 1, profile["gateway"])
		assert.Equal(t, 1, profile["refunds"])
	})

	t.Run("caps profile size with deterministic ties", func(t *testing.T) {
		texts := []string{"alpha alpha beta gamma delta"}
		profile := BuildKeywordProfile(texts, 3, 2)
		assert.Len(t, profile, 2)
		assert.Equal(t, 2, profile["alpha"])
		// beta wins the frequency tie lexicographically.
		assert.Equal(t, 1, profile["beta"])
	})
}

func TestSkillMatcher(t *testing.T) {
	matcher := NewSkillMatcher()

	t.Run("no keyword data scores neutral", func(t *testing.T) {
		assert.Equal(t, 50.0, matcher.Match(nil, "build payment gateway"))
		assert.Equal(t, 50.0, matcher.Match(map[string]int{}, "build payment gateway"))
	})

	t.Run("task text with no usable tokens scores neutral", func(t *testing.T) {
		keywords := map[string]int{"payment": 5}
		assert.Equal(t, 50.0, matcher.Match(keywords, "a an to"))
	})

	t.Run("zero overlap scores neutral not zero", func(t *testing.T) {
		frontend := map[string]int{"css": 8, "layout": 6, "responsive": 4}
		score := matcher.Match(frontend, "payment gateway integration")
		assert.Equal(t, 50.0, score)
	})

	t.Run("overlap scores by capped frequency over possible", func(t *testing.T) {
		keywords := map[string]int{"payment": 10, "gateway": 8}
		// Distinct task words: payment, gateway, integration -> possible 30.
		score := matcher.Match(keywords, "payment gateway integration")
		assert.InDelta(t, 60.0, score, 0.001) // (10+8)/30 * 100
	})

	t.Run("frequency contribution is capped", func(t *testing.T) {
		obsessive := map[string]int{"payment": 500}
		score := matcher.Match(obsessive, "payment")
		assert.InDelta(t, 100.0, score, 0.001)
	})

	t.Run("strong specialist beats weak generalist", func(t *testing.T) {
		specialist := map[string]int{"payment": 9, "gateway": 7, "stripe": 5}
		generalist := map[string]int{"payment": 1, "docs": 3, "meeting": 2}
		text := "payment gateway timeout handling"
		assert.Greater(t, matcher.Match(specialist, text), matcher.Match(generalist, text))
	})
}
