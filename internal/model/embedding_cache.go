package model

// CachedEmbedding is a vector remembered for one (model, task, text) triple.
// Only the text hash is kept, never the text itself.
type CachedEmbedding struct {
	Model    string    `json:"model"`
	Task     string    `json:"task"`
	TextHash string    `json:"text_hash"`
	Vector   []float32 `json:"vector"`
	Ctime    int64     `json:"ctime"`
}

// Usable reports whether the vector has the width chunks are stored with.
// Anything else came from a misconfigured provider and must not be served.
func (c *CachedEmbedding) Usable() bool {
	return c != nil && len(c.Vector) == EmbeddingDimension
}
