package engine

import (
	"math"
	"strings"
)

// EstimateTokens approximates the token count of generated text from its
// word count. English prose averages roughly 1.3 tokens per word. The
// estimate is never below one token.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(math.Max(1, math.Round(float64(words)*1.3)))
}
