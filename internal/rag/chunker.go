package rag

import (
	"fmt"

	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunk cuts text into windows of size runes. Each window starts
// size-overlap runes after the previous one; the last window may be shorter.
func Chunk(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", appErr.ErrInvalid, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", appErr.ErrInvalid, size, overlap)
	}
	runes := []rune(text)
	step := size - overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}
