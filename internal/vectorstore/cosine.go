package vectorstore

import (
	"math"
	"sort"

	"github.com/xxxsen/docrag/internal/model"
)

func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rankExact scores rows, which must be in insertion order, against query.
// The stable sort keeps earlier rows first among equal similarities.
func rankExact(rows []model.Chunk, query []float32, k int, minSimilarity float64) []model.ScoredChunk {
	matches := make([]model.ScoredChunk, 0, len(rows))
	for _, row := range rows {
		sim := CosineSimilarity(query, row.Embedding)
		if sim > minSimilarity {
			row.Embedding = nil
			row.Metadata = copyMetadata(row.Metadata)
			matches = append(matches, model.ScoredChunk{Chunk: row, Similarity: sim})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// copyMetadata keeps stored rows and the chunks handed to callers from
// sharing one map.
func copyMetadata(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
