package testutil

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/xxxsen/docrag/internal/ai"
	"github.com/xxxsen/docrag/internal/model"
)

// BagOfWordsEmbedder maps every word to one of the vector components, so
// texts sharing words have a positive cosine similarity.
type BagOfWordsEmbedder struct {
	mu    sync.Mutex
	calls int
	// FailOn makes Embed fail for any text containing it.
	FailOn string
	Err    error
}

func (e *BagOfWordsEmbedder) Embed(ctx context.Context, text string, taskType ai.TaskType) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.FailOn != "" && strings.Contains(text, e.FailOn) {
		return nil, e.Err
	}
	vec := make([]float32, model.EmbeddingDimension)
	for _, word := range Words(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%model.EmbeddingDimension]++
	}
	return vec, nil
}

func (e *BagOfWordsEmbedder) ModelName() string {
	return "test:bag-of-words"
}

func (e *BagOfWordsEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

var stopWords = map[string]struct{}{
	"the": {}, "is": {}, "a": {}, "an": {}, "what": {}, "of": {}, "and": {},
}

func Words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, ok := stopWords[f]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}
