package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/docrag/internal/model"
	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
)

type ManagerConfig struct {
	Timeout int
}

// Manager owns the prompts of every generation feature. Callers pass in
// the already assembled context text.
type Manager struct {
	generator IGenerator
	cfg       ManagerConfig
}

func NewManager(generator IGenerator, cfg ManagerConfig) *Manager {
	return &Manager{generator: generator, cfg: cfg}
}

func (m *Manager) Available() bool {
	return m != nil && m.generator != nil
}

func (m *Manager) Answer(ctx context.Context, contextText, question string) (string, error) {
	prompt := fmt.Sprintf(`You are a helpful assistant. Answer the user question strictly based on the provided context.
If the context does not contain the answer, say so.

Context:
%s

Question: %s

Answer:`, contextText, question)
	return m.generateText(ctx, prompt, FormatText)
}

func (m *Manager) PodcastScript(ctx context.Context, contextText string) ([]model.PodcastTurn, error) {
	prompt := fmt.Sprintf(`Write a podcast script in which two hosts (Host A and Host B) discuss the content below.
- Keep it conversational, engaging and in simple English.
- Use at most 10 exchanges.
- Return JSON only: [{"speaker": "Host A", "text": "..."}, {"speaker": "Host B", "text": "..."}]

Content:
%s`, contextText)
	var turns []model.PodcastTurn
	if err := m.generateJSON(ctx, prompt, &turns); err != nil {
		return nil, err
	}
	out := turns[:0]
	for _, turn := range turns {
		turn.Speaker = strings.TrimSpace(turn.Speaker)
		turn.Text = strings.TrimSpace(turn.Text)
		if turn.Text == "" {
			continue
		}
		out = append(out, turn)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: podcast script is empty", appErr.ErrGeneration)
	}
	return out, nil
}

func (m *Manager) Flowchart(ctx context.Context, contextText string) (string, error) {
	prompt := fmt.Sprintf(`Produce Mermaid.js code for the key concepts of the text below and how they relate.
Start with 'graph TD' or 'graph LR'. Return ONLY the mermaid code, without markdown fences or any other text.

Text:
%s`, contextText)
	out, err := m.generateText(ctx, prompt, FormatText)
	if err != nil {
		return "", err
	}
	out = strings.ReplaceAll(out, "```mermaid", "")
	out = strings.ReplaceAll(out, "```", "")
	return strings.TrimSpace(out), nil
}

func (m *Manager) Flashcards(ctx context.Context, contextText string) ([]model.Flashcard, error) {
	prompt := fmt.Sprintf(`Create 5 to 10 flashcards from the text below.
Questions must be clear and answers concise.
Return JSON only: [{"question": "...", "answer": "..."}]

Text:
%s`, contextText)
	var cards []model.Flashcard
	if err := m.generateJSON(ctx, prompt, &cards); err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("%w: no flashcards generated", appErr.ErrGeneration)
	}
	return cards, nil
}

func (m *Manager) Quiz(ctx context.Context, contextText string) ([]model.QuizQuestion, error) {
	prompt := fmt.Sprintf(`Create 5 to 7 multiple choice questions that test understanding of the key concepts in the text below.
Each item has:
- question: the question text
- options: exactly 4 possible answers
- answer: the correct answer, copied verbatim from options
- explanation: 1-2 sentences on why the answer is correct
- wrong_explanation: 1-2 sentences shown after a wrong answer
Return JSON only: [{"question": "...", "options": ["A", "B", "C", "D"], "answer": "A", "explanation": "...", "wrong_explanation": "..."}]

Text:
%s`, contextText)
	var questions []model.QuizQuestion
	if err := m.generateJSON(ctx, prompt, &questions); err != nil {
		return nil, err
	}
	valid := questions[:0]
	for _, q := range questions {
		if q.Question == "" || len(q.Options) < 2 || !containsString(q.Options, q.Answer) {
			continue
		}
		valid = append(valid, q)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no valid quiz questions generated", appErr.ErrGeneration)
	}
	return valid, nil
}

func (m *Manager) Slides(ctx context.Context, contextText string) (*model.SlideDeck, error) {
	prompt := fmt.Sprintf(`Build a professional presentation of 6 to 8 slides from the content below.
Rules:
- The first slide has type "title" with title and subtitle.
- Every other slide has type "content" with a title and 3 to 5 points.
- Each point is at most 15 words.
Return JSON only:
{"title": "...", "slides": [{"type": "title", "title": "...", "subtitle": "..."}, {"type": "content", "title": "...", "points": ["..."]}]}

Content:
%s`, contextText)
	return m.slideDeck(ctx, prompt)
}

func (m *Manager) VideoScript(ctx context.Context, contextText string) (*model.SlideDeck, error) {
	prompt := fmt.Sprintf(`Build a narrated video presentation of 6 to 8 slides from the content below, 3 to 5 minutes in total.
Rules:
- The first slide has type "title" with title, subtitle and narration.
- Every other slide has type "content" with a title, 3 to 5 points and narration.
- Each narration is 40 to 65 words and explains its slide naturally.
- Each point is at most 12 words.
Return JSON only:
{"title": "...", "slides": [{"type": "title", "title": "...", "subtitle": "...", "narration": "..."}, {"type": "content", "title": "...", "points": ["..."], "narration": "..."}]}

Content:
%s`, contextText)
	return m.slideDeck(ctx, prompt)
}

func (m *Manager) slideDeck(ctx context.Context, prompt string) (*model.SlideDeck, error) {
	deck := &model.SlideDeck{}
	if err := m.generateJSON(ctx, prompt, deck); err != nil {
		return nil, err
	}
	if len(deck.Slides) == 0 {
		return nil, fmt.Errorf("%w: presentation has no slides", appErr.ErrGeneration)
	}
	for i := range deck.Slides {
		s := &deck.Slides[i]
		if s.Type != model.SlideTypeTitle {
			s.Type = model.SlideTypeContent
		}
	}
	if deck.Title == "" {
		deck.Title = deck.Slides[0].Title
	}
	return deck, nil
}

func (m *Manager) generateText(ctx context.Context, prompt string, format ResponseFormat) (string, error) {
	if !m.Available() {
		return "", ErrUnavailable
	}
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	resp, err := m.generator.Generate(ctx, prompt, format)
	if err != nil {
		return "", fmt.Errorf("%w: %w", appErr.ErrGeneration, err)
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("%w: empty ai response", appErr.ErrGeneration)
	}
	return text, nil
}

func (m *Manager) generateJSON(ctx context.Context, prompt string, out interface{}) error {
	text, err := m.generateText(ctx, prompt, FormatJSON)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), out); err != nil {
		return fmt.Errorf("%w: parse ai json: %w", appErr.ErrGeneration, err)
	}
	return nil
}

// extractJSON strips markdown fences and any prose around the outermost
// JSON array or object.
func extractJSON(output string) string {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.IndexAny(clean, "[{")
	if start < 0 {
		return clean
	}
	closer := "]"
	if clean[start] == '{' {
		closer = "}"
	}
	end := strings.LastIndex(clean, closer)
	if end > start {
		return clean[start : end+1]
	}
	return clean
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
