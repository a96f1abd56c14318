package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type ResponseFormat string

const (
	FormatText ResponseFormat = "text"
	FormatJSON ResponseFormat = "json"
)

type TaskType string

const (
	TaskRetrievalDocument TaskType = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    TaskType = "RETRIEVAL_QUERY"
)

// Audio is raw 16-bit little-endian mono PCM at SampleRate.
type Audio struct {
	PCM        []byte
	SampleRate int
}

func (a *Audio) Duration() float64 {
	if a == nil || a.SampleRate <= 0 {
		return 0
	}
	return float64(len(a.PCM)) / float64(a.SampleRate*2)
}

type IAIProvider interface {
	Name() string
	Generate(ctx context.Context, model string, prompt string, format ResponseFormat) (string, error)
}

type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, text string, taskType TaskType) ([]float32, error)
}

type ISpeechProvider interface {
	Name() string
	Synthesize(ctx context.Context, model string, text string, voice string) (*Audio, error)
}

type IGenerator interface {
	Generate(ctx context.Context, prompt string, format ResponseFormat) (string, error)
}

type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType TaskType) ([]float32, error)
	ModelName() string
}

// ISynthesizer speaks text with a logical voice such as "host_a" or
// "narrator"; each backend maps it to one of its own voices.
type ISynthesizer interface {
	Synthesize(ctx context.Context, text string, voice string) (*Audio, error)
}

type generator struct {
	provider IAIProvider
	model    string
}

func NewGenerator(p IAIProvider, model string) IGenerator {
	return &generator{provider: p, model: model}
}

func (g *generator) Generate(ctx context.Context, prompt string, format ResponseFormat) (string, error) {
	return g.provider.Generate(ctx, g.model, prompt, format)
}

type embedder struct {
	provider IEmbedProvider
	model    string
}

func NewEmbedder(p IEmbedProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType TaskType) ([]float32, error) {
	return e.provider.Embed(ctx, e.model, text, taskType)
}

func (e *embedder) ModelName() string {
	return e.provider.Name() + ":" + e.model
}

type synthesizer struct {
	provider ISpeechProvider
	model    string
	voices   map[string]string
}

func NewSynthesizer(p ISpeechProvider, model string, voices map[string]string) ISynthesizer {
	return &synthesizer{provider: p, model: model, voices: voices}
}

func (s *synthesizer) Synthesize(ctx context.Context, text string, voice string) (*Audio, error) {
	if mapped, ok := s.voices[voice]; ok && mapped != "" {
		voice = mapped
	}
	return s.provider.Synthesize(ctx, s.model, text, voice)
}

type (
	ProviderFactory       func(args interface{}) (IAIProvider, error)
	EmbedProviderFactory  func(args interface{}) (IEmbedProvider, error)
	SpeechProviderFactory func(args interface{}) (ISpeechProvider, error)
)

var (
	registry       = map[string]ProviderFactory{}
	embedRegistry  = map[string]EmbedProviderFactory{}
	speechRegistry = map[string]SpeechProviderFactory{}
)

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func Register(name string, factory ProviderFactory) {
	key := normalizeName(name)
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func RegisterEmbed(name string, factory EmbedProviderFactory) {
	key := normalizeName(name)
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func RegisterSpeech(name string, factory SpeechProviderFactory) {
	key := normalizeName(name)
	if key == "" || factory == nil {
		return
	}
	speechRegistry[key] = factory
}

func NewProvider(name string, args interface{}) (IAIProvider, error) {
	key := normalizeName(name)
	if key == "" {
		return nil, fmt.Errorf("ai provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := normalizeName(name)
	if key == "" {
		return nil, fmt.Errorf("embed provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embed provider: %s", name)
	}
	return factory(args)
}

func NewSpeechProvider(name string, args interface{}) (ISpeechProvider, error) {
	key := normalizeName(name)
	if key == "" {
		return nil, fmt.Errorf("speech provider is required")
	}
	factory := speechRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported speech provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
