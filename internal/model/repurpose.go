package model

type PodcastTurn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type AudioOverview struct {
	Script          []PodcastTurn `json:"script"`
	URL             string        `json:"url"`
	DurationSeconds float64       `json:"duration_seconds"`
	SkippedTurns    int           `json:"skipped_turns"`
}

const (
	StudyAidFlowchart = "flowchart"
	StudyAidFlashcard = "flashcard"
	StudyAidQuiz      = "quiz"
)

type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type QuizQuestion struct {
	Question         string   `json:"question"`
	Options          []string `json:"options"`
	Answer           string   `json:"answer"`
	Explanation      string   `json:"explanation"`
	WrongExplanation string   `json:"wrong_explanation"`
}

type StudyAid struct {
	Type       string         `json:"type"`
	Mermaid    string         `json:"mermaid,omitempty"`
	Flashcards []Flashcard    `json:"flashcards,omitempty"`
	Quiz       []QuizQuestion `json:"quiz,omitempty"`
}

const (
	SlideTypeTitle   = "title"
	SlideTypeContent = "content"
)

type Slide struct {
	Type      string   `json:"type"`
	Title     string   `json:"title"`
	Subtitle  string   `json:"subtitle,omitempty"`
	Points    []string `json:"points,omitempty"`
	Narration string   `json:"narration,omitempty"`
}

type SlideDeck struct {
	Title  string  `json:"title"`
	Slides []Slide `json:"slides"`
}

// VideoSegment pairs one slide with its narration clip. An empty URL means
// the renderer has to hold the slide in silence for DurationSeconds.
type VideoSegment struct {
	Slide           Slide   `json:"slide"`
	AudioURL        string  `json:"audio_url,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Silent          bool    `json:"silent"`
}

type VideoTimeline struct {
	Title           string         `json:"title"`
	Segments        []VideoSegment `json:"segments"`
	DurationSeconds float64        `json:"duration_seconds"`
}
