package rag

import "strings"

const (
	DefaultMaxContextChars = 50000

	chunkSeparator = "\n\n"
	sentenceWindow = 10000
)

// Assemble joins chunks into one prompt-ready context of at most maxChars
// runes. An over-long context is cut back to the last '.' found in the final
// sentenceWindow runes, or hard-cut when there is none.
func Assemble(chunks []string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}
	joined := strings.Join(chunks, chunkSeparator)
	if len(joined) <= maxChars {
		return joined
	}
	runes := []rune(joined)
	if len(runes) <= maxChars {
		return joined
	}
	cut := runes[:maxChars]
	floor := maxChars - sentenceWindow
	for i := len(cut) - 1; i >= 0 && i > floor; i-- {
		if cut[i] == '.' {
			return string(cut[:i+1])
		}
	}
	return string(cut)
}
