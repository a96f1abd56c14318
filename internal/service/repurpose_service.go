package service

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docrag/internal/ai"
	"github.com/xxxsen/docrag/internal/filestore"
	"github.com/xxxsen/docrag/internal/model"
	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
)

const (
	VoiceHostA = "host_a"
	VoiceHostB = "host_b"

	silentSlideSeconds = 10.0
	minNarrationChars  = 10
	turnPauseSeconds   = 0.4
)

var (
	markupPattern     = regexp.MustCompile("[*_#`>\\[\\]]+")
	whitespacePattern = regexp.MustCompile(`\s+`)
)

type ArtifactRecorder interface {
	Create(ctx context.Context, item *model.Artifact) error
}

// RepurposeService turns the uploaded sources of a scope into podcasts,
// study aids, slides and narrated videos.
type RepurposeService struct {
	rag       *RAGService
	ai        *ai.Manager
	speech    ai.ISynthesizer
	files     filestore.Store
	artifacts ArtifactRecorder
	limit     int
}

func NewRepurposeService(rag *RAGService, manager *ai.Manager, speech ai.ISynthesizer, files filestore.Store, artifacts ArtifactRecorder, recentLimit int) *RepurposeService {
	return &RepurposeService{rag: rag, ai: manager, speech: speech, files: files, artifacts: artifacts, limit: recentLimit}
}

func (s *RepurposeService) sourceText(ctx context.Context, scope model.Scope) (string, error) {
	if !s.ai.Available() {
		return "", ai.ErrUnavailable
	}
	return s.rag.BulkContext(ctx, scope, s.limit)
}

func (s *RepurposeService) AudioOverview(ctx context.Context, scope model.Scope, baseURL string) (*model.AudioOverview, error) {
	if s.speech == nil || s.files == nil {
		return nil, ai.ErrUnavailable
	}
	text, err := s.sourceText(ctx, scope)
	if err != nil {
		return nil, err
	}
	turns, err := s.ai.PodcastScript(ctx, text)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("scope", scope.String()))
	var (
		pcm        bytes.Buffer
		sampleRate int
		skipped    int
	)
	for i, turn := range turns {
		audio, err := s.speech.Synthesize(ctx, turn.Text, voiceFor(turn.Speaker, i))
		if err != nil {
			skipped++
			logger.Warn("synthesize podcast turn failed", zap.Int("turn", i), zap.Error(err))
			continue
		}
		if sampleRate == 0 {
			sampleRate = audio.SampleRate
		}
		if audio.SampleRate != sampleRate {
			skipped++
			logger.Warn("skip podcast turn with mismatched sample rate",
				zap.Int("turn", i), zap.Int("sample_rate", audio.SampleRate), zap.Int("want", sampleRate))
			continue
		}
		if pcm.Len() > 0 {
			pcm.Write(silence(turnPauseSeconds, sampleRate))
		}
		pcm.Write(audio.PCM)
	}
	if pcm.Len() == 0 {
		return nil, fmt.Errorf("%w: no podcast turn could be synthesized", appErr.ErrGeneration)
	}
	clip := &ai.Audio{PCM: pcm.Bytes(), SampleRate: sampleRate}
	url, err := s.saveClip(ctx, scope, model.ArtifactKindAudio, clip, baseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("audio overview generated", zap.Int("turns", len(turns)), zap.Int("skipped", skipped))
	return &model.AudioOverview{
		Script:          turns,
		URL:             url,
		DurationSeconds: clip.Duration(),
		SkippedTurns:    skipped,
	}, nil
}

func (s *RepurposeService) StudyAid(ctx context.Context, scope model.Scope, kind string) (*model.StudyAid, error) {
	switch kind {
	case model.StudyAidFlowchart, model.StudyAidFlashcard, model.StudyAidQuiz:
	default:
		return nil, fmt.Errorf("%w: unknown study aid type %q", appErr.ErrInvalid, kind)
	}
	text, err := s.sourceText(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := &model.StudyAid{Type: kind}
	switch kind {
	case model.StudyAidFlowchart:
		out.Mermaid, err = s.ai.Flowchart(ctx, text)
	case model.StudyAidFlashcard:
		out.Flashcards, err = s.ai.Flashcards(ctx, text)
	case model.StudyAidQuiz:
		out.Quiz, err = s.ai.Quiz(ctx, text)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RepurposeService) Slides(ctx context.Context, scope model.Scope) (*model.SlideDeck, error) {
	text, err := s.sourceText(ctx, scope)
	if err != nil {
		return nil, err
	}
	return s.ai.Slides(ctx, text)
}

// Video narrates every slide. Slides without usable narration, or whose
// narration could not be synthesized, are held silently.
func (s *RepurposeService) Video(ctx context.Context, scope model.Scope, baseURL string) (*model.VideoTimeline, error) {
	text, err := s.sourceText(ctx, scope)
	if err != nil {
		return nil, err
	}
	deck, err := s.ai.VideoScript(ctx, text)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("scope", scope.String()))
	timeline := &model.VideoTimeline{Title: deck.Title}
	for i, slide := range deck.Slides {
		segment := model.VideoSegment{Slide: slide, DurationSeconds: silentSlideSeconds, Silent: true}
		narration := sanitizeNarration(slide.Narration)
		if utf8.RuneCountInString(narration) >= minNarrationChars && s.speech != nil && s.files != nil {
			if url, duration, err := s.narrate(ctx, scope, narration, baseURL); err != nil {
				logger.Warn("narrate slide failed, using silence", zap.Int("slide", i), zap.Error(err))
			} else {
				segment.AudioURL = url
				segment.DurationSeconds = duration
				segment.Silent = false
			}
		}
		timeline.Segments = append(timeline.Segments, segment)
		timeline.DurationSeconds += segment.DurationSeconds
	}
	logger.Info("video timeline generated", zap.Int("slides", len(timeline.Segments)), zap.Float64("duration", timeline.DurationSeconds))
	return timeline, nil
}

func (s *RepurposeService) narrate(ctx context.Context, scope model.Scope, text, baseURL string) (string, float64, error) {
	audio, err := s.speech.Synthesize(ctx, text, VoiceHostA)
	if err != nil {
		return "", 0, err
	}
	if len(audio.PCM) == 0 {
		return "", 0, fmt.Errorf("%w: empty narration audio", appErr.ErrGeneration)
	}
	url, err := s.saveClip(ctx, scope, model.ArtifactKindVideo, audio, baseURL)
	if err != nil {
		return "", 0, err
	}
	return url, audio.Duration(), nil
}

func (s *RepurposeService) saveClip(ctx context.Context, scope model.Scope, kind string, audio *ai.Audio, baseURL string) (string, error) {
	data := encodeWAV(audio.PCM, audio.SampleRate)
	key := fmt.Sprintf("%s_%s.wav", kind, newID())
	if err := s.files.Save(ctx, key, bytes.NewReader(data), int64(len(data)), "audio/wav"); err != nil {
		return "", fmt.Errorf("save %s clip: %w", kind, err)
	}
	if s.artifacts != nil {
		item := &model.Artifact{
			ID:        newID(),
			UserID:    scope.UserID,
			ProjectID: scope.ProjectID,
			Kind:      kind,
			FileKey:   key,
			Size:      int64(len(data)),
			Ctime:     time.Now().Unix(),
		}
		if err := s.artifacts.Create(ctx, item); err != nil {
			logutil.GetLogger(ctx).Warn("record artifact failed", zap.String("file_key", key), zap.Error(err))
		}
	}
	return s.files.URL(key, baseURL), nil
}

// voiceFor maps "Host A"/"Host B" to the two logical voices, alternating
// when the script uses other speaker names.
func voiceFor(speaker string, index int) string {
	name := strings.ToLower(strings.TrimSpace(speaker))
	switch {
	case strings.HasSuffix(name, " b"), name == "b":
		return VoiceHostB
	case strings.HasSuffix(name, " a"), name == "a":
		return VoiceHostA
	}
	if index%2 == 1 {
		return VoiceHostB
	}
	return VoiceHostA
}

func sanitizeNarration(text string) string {
	text = markupPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
