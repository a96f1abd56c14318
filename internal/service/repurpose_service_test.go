package service

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docrag/internal/ai"
	"github.com/xxxsen/docrag/internal/filestore"
	"github.com/xxxsen/docrag/internal/model"
	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
)

type promptRouter struct {
	calls   int
	replies map[string]string
	err     error
}

// Generate answers with the first reply whose marker appears in the prompt.
func (p *promptRouter) Generate(ctx context.Context, prompt string, format ai.ResponseFormat) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	for marker, reply := range p.replies {
		if strings.Contains(prompt, marker) {
			return reply, nil
		}
	}
	return "", errors.New("unexpected prompt")
}

type fakeSpeech struct {
	failOn string
	voices []string
}

func (f *fakeSpeech) Synthesize(ctx context.Context, text string, voice string) (*ai.Audio, error) {
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("tts failed")
	}
	f.voices = append(f.voices, voice)
	return &ai.Audio{PCM: make([]byte, 24000*2), SampleRate: 24000}, nil
}

type memArtifacts struct {
	items []model.Artifact
}

func (m *memArtifacts) Create(ctx context.Context, item *model.Artifact) error {
	m.items = append(m.items, *item)
	return nil
}

type repurposeFixture struct {
	*ragFixture
	gen       *promptRouter
	speech    *fakeSpeech
	files     filestore.Store
	artifacts *memArtifacts
	svc       *RepurposeService
}

func newRepurposeFixture(t *testing.T) *repurposeFixture {
	f := &repurposeFixture{
		ragFixture: newRAGFixture(RAGConfig{}),
		gen:        &promptRouter{replies: map[string]string{}},
		speech:     &fakeSpeech{},
		files:      filestore.NewLocalStore(t.TempDir(), ""),
		artifacts:  &memArtifacts{},
	}
	f.svc = NewRepurposeService(f.ragFixture.svc, ai.NewManager(f.gen, ai.ManagerConfig{}), f.speech, f.files, f.artifacts, 50)
	_, err := f.ragFixture.svc.IngestText(context.Background(), scopeOne, "notes.txt", "Photosynthesis turns light into chemical energy.")
	require.NoError(t, err)
	return f
}

func TestAudioOverview_SkipsFailedTurns(t *testing.T) {
	f := newRepurposeFixture(t)
	f.gen.replies["podcast script"] = `[
		{"speaker": "Host A", "text": "Welcome to the show."},
		{"speaker": "Host B", "text": "This line breaks the voice."},
		{"speaker": "Host B", "text": "Plants eat light."}
	]`
	f.speech.failOn = "breaks"

	out, err := f.svc.AudioOverview(context.Background(), scopeOne, "http://localhost:8000")
	require.NoError(t, err)
	require.Len(t, out.Script, 3)
	require.Equal(t, 1, out.SkippedTurns)
	require.Equal(t, []string{VoiceHostA, VoiceHostB}, f.speech.voices)
	require.InDelta(t, 2.4, out.DurationSeconds, 1e-6)
	require.True(t, strings.HasPrefix(out.URL, "http://localhost:8000/api/v1/files/audio_"))

	require.Len(t, f.artifacts.items, 1)
	item := f.artifacts.items[0]
	require.Equal(t, model.ArtifactKindAudio, item.Kind)
	rc, err := f.files.Open(context.Background(), item.FileKey)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "RIFF", string(data[:4]))
	require.Equal(t, uint32(24000), binary.LittleEndian.Uint32(data[24:28]))
	require.Equal(t, int64(len(data)), item.Size)
}

func TestAudioOverview_AllTurnsFail(t *testing.T) {
	f := newRepurposeFixture(t)
	f.gen.replies["podcast script"] = `[{"speaker": "Host A", "text": "nope"}]`
	f.speech.failOn = "nope"
	_, err := f.svc.AudioOverview(context.Background(), scopeOne, "")
	require.ErrorIs(t, err, appErr.ErrGeneration)
}

func TestRepurpose_EmptyScopeIsNotFound(t *testing.T) {
	f := newRepurposeFixture(t)
	_, err := f.svc.Slides(context.Background(), scopeTwo)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.Equal(t, 0, f.gen.calls)
}

func TestStudyAid(t *testing.T) {
	f := newRepurposeFixture(t)
	f.gen.replies["flashcards"] = `[{"question": "What is photosynthesis?", "answer": "Light to energy."}]`
	f.gen.replies["Mermaid"] = "graph TD\nLight-->Energy"

	aid, err := f.svc.StudyAid(context.Background(), scopeOne, model.StudyAidFlashcard)
	require.NoError(t, err)
	require.Len(t, aid.Flashcards, 1)

	aid, err = f.svc.StudyAid(context.Background(), scopeOne, model.StudyAidFlowchart)
	require.NoError(t, err)
	require.Equal(t, "graph TD\nLight-->Energy", aid.Mermaid)

	_, err = f.svc.StudyAid(context.Background(), scopeOne, "mindmap")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestVideo_SilentFallbacks(t *testing.T) {
	f := newRepurposeFixture(t)
	f.gen.replies["narrated video"] = `{"title": "Plants", "slides": [
		{"type": "title", "title": "Plants", "subtitle": "How they eat", "narration": "**Welcome** to a short tour of how plants feed themselves."},
		{"type": "content", "title": "Light", "points": ["sun"], "narration": "Too short"},
		{"type": "content", "title": "Energy", "points": ["sugar"], "narration": "This narration will fail in the speech engine."}
	]}`
	f.speech.failOn = "fail in the speech"

	timeline, err := f.svc.Video(context.Background(), scopeOne, "http://localhost")
	require.NoError(t, err)
	require.Equal(t, "Plants", timeline.Title)
	require.Len(t, timeline.Segments, 3)

	require.False(t, timeline.Segments[0].Silent)
	require.NotEmpty(t, timeline.Segments[0].AudioURL)
	require.InDelta(t, 1.0, timeline.Segments[0].DurationSeconds, 1e-6)

	require.True(t, timeline.Segments[1].Silent)
	require.InDelta(t, 10.0, timeline.Segments[1].DurationSeconds, 1e-6)
	require.True(t, timeline.Segments[2].Silent)
	require.InDelta(t, 21.0, timeline.DurationSeconds, 1e-6)
	require.Len(t, f.artifacts.items, 1)
	require.Equal(t, model.ArtifactKindVideo, f.artifacts.items[0].Kind)
}

func TestSanitizeNarrationAndVoices(t *testing.T) {
	require.Equal(t, "Hello world", sanitizeNarration("  **Hello**\n\n  _world_ "))
	require.Equal(t, VoiceHostA, voiceFor("Host A", 1))
	require.Equal(t, VoiceHostB, voiceFor("host b", 0))
	require.Equal(t, VoiceHostB, voiceFor("Narrator", 1))
	require.Equal(t, VoiceHostA, voiceFor("Narrator", 2))
}

func TestEncodeWAV_Header(t *testing.T) {
	pcm := []byte{1, 0, 2, 0}
	data := encodeWAV(pcm, 16000)
	require.Len(t, data, 48)
	require.Equal(t, "WAVE", string(data[8:12]))
	require.Equal(t, uint32(40), binary.LittleEndian.Uint32(data[4:8]))
	require.Equal(t, uint32(32000), binary.LittleEndian.Uint32(data[28:32]))
	require.Equal(t, uint32(4), binary.LittleEndian.Uint32(data[40:44]))
	require.Len(t, silence(0.5, 16000), 16000)
}
