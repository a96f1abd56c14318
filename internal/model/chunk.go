package model

import "strings"

// EmbeddingDimension is the only vector width accepted by the chunk stores.
const EmbeddingDimension = 768

// Scope isolates the chunks of one project of one session user.
type Scope struct {
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
}

func (s Scope) Valid() bool {
	return strings.TrimSpace(s.UserID) != "" && strings.TrimSpace(s.ProjectID) != ""
}

func (s Scope) String() string {
	return s.UserID + "/" + s.ProjectID
}

type Chunk struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Embedding []float32              `json:"-"`
	UserID    string                 `json:"user_id"`
	ProjectID string                 `json:"project_id"`
	CreatedAt int64                  `json:"created_at"`
}

func (c *Chunk) Scope() Scope {
	return Scope{UserID: c.UserID, ProjectID: c.ProjectID}
}

type ScoredChunk struct {
	Chunk      Chunk   `json:"chunk"`
	Similarity float64 `json:"similarity"`
}

func Contents(chunks []Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Content)
	}
	return out
}

func ScoredContents(chunks []ScoredChunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Chunk.Content)
	}
	return out
}
