package tokenizer

import "strings"

// Tokenizer counts tokens for the admission token quota.
type Tokenizer interface {
	// CountTokens returns the number of tokens in text.
	CountTokens(text string) (int, error)

	// Name returns the tokenizer name.
	Name() string
}

// ForModel returns a tiktoken counter for known OpenAI models and the
// CJK-aware estimator otherwise. An empty model selects the estimator.
func ForModel(model string) Tokenizer {
	if _, ok := lookupEncoding(model); ok {
		return NewTiktokenTokenizer(model)
	}
	return NewEstimatorTokenizer(model)
}

// lookupEncoding resolves a model by exact name, then by the longest known prefix.
func lookupEncoding(model string) (modelEncoding, bool) {
	if model == "" {
		return modelEncoding{}, false
	}
	if info, ok := modelEncodings[model]; ok {
		return info, true
	}

	var (
		best    modelEncoding
		bestLen int
	)
	for prefix, info := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = info, len(prefix)
		}
	}
	return best, bestLen > 0
}
