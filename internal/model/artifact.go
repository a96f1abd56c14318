package model

const (
	ArtifactKindAudio = "audio"
	ArtifactKindVideo = "video"
)

// Artifact records a generated file kept in the file store.
type Artifact struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	Kind      string `json:"kind"`
	FileKey   string `json:"file_key"`
	Size      int64  `json:"size"`
	Ctime     int64  `json:"ctime"`
}
