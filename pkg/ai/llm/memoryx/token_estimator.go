package memoryx

import (
	"unicode/utf8"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
)

// TokenEstimator estimates token counts for messages.
// Provide a custom implementation for more accurate counting (e.g. tiktoken).
type TokenEstimator interface {
	EstimateMessage(message llm.Message) int
}

// DefaultTokenRatio is the tokens-per-character factor used when none is configured.
const DefaultTokenRatio = 0.75

// RatioEstimator estimates floor(chars * Ratio) tokens per message, where
// chars counts runes, not bytes, so CJK text is not over-counted. It is a cost
// heuristic, not a tokenizer.
type RatioEstimator struct {
	Ratio float64 // defaults to DefaultTokenRatio if zero
}

func (e RatioEstimator) ratio() float64 {
	if e.Ratio <= 0 {
		return DefaultTokenRatio
	}
	return e.Ratio
}

func (e RatioEstimator) EstimateMessage(m llm.Message) int {
	return int(float64(utf8.RuneCountInString(m.Content)) * e.ratio())
}
