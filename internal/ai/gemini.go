package ai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/xxxsen/docrag/internal/model"
)

const geminiTTSSampleRate = 24000

type geminiConfig struct {
	APIKey     string `json:"api_key"`
	Dimensions int    `json:"dimensions"`
}

type geminiProvider struct {
	apiKey     string
	dimensions int
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) client(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

func (p *geminiProvider) Generate(ctx context.Context, model string, prompt string, format ResponseFormat) (string, error) {
	client, err := p.client(ctx)
	if err != nil {
		return "", err
	}
	var config *genai.GenerateContentConfig
	if format == FormatJSON {
		config = &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	}
	resp, err := client.Models.GenerateContent(
		ctx,
		model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		config,
	)
	if err != nil {
		return "", geminiError(err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (p *geminiProvider) Embed(ctx context.Context, model string, text string, taskType TaskType) ([]float32, error) {
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	config := &genai.EmbedContentConfig{}
	if taskType != "" {
		config.TaskType = string(taskType)
	}
	if p.dimensions > 0 {
		dims := int32(p.dimensions)
		config.OutputDimensionality = &dims
	}
	resp, err := client.Models.EmbedContent(
		ctx,
		model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		config,
	)
	if err != nil {
		return nil, geminiError(err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned")
	}
	return resp.Embeddings[0].Values, nil
}

func (p *geminiProvider) Synthesize(ctx context.Context, model string, text string, voice string) (*Audio, error) {
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}
	resp, err := client.Models.GenerateContent(
		ctx,
		model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		config,
	)
	if err != nil {
		return nil, geminiError(err)
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			return &Audio{
				PCM:        part.InlineData.Data,
				SampleRate: sampleRateFromMIME(part.InlineData.MIMEType, geminiTTSSampleRate),
			}, nil
		}
	}
	return nil, fmt.Errorf("gemini speech response has no audio")
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == "RESOURCE_EXHAUSTED" {
			return markQuota(err, 429)
		}
		return markQuota(err, apiErr.Code)
	}
	return markQuota(err, 0)
}

// sampleRateFromMIME reads the rate parameter of "audio/L16;codec=pcm;rate=24000".
func sampleRateFromMIME(mime string, fallback int) int {
	for _, part := range strings.Split(mime, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || strings.ToLower(key) != "rate" {
			continue
		}
		if rate, err := strconv.Atoi(value); err == nil && rate > 0 {
			return rate
		}
	}
	return fallback
}

func createGeminiProvider(args interface{}) (*geminiProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = model.EmbeddingDimension
	}
	return &geminiProvider{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		dimensions: cfg.Dimensions,
	}, nil
}

func init() {
	Register("gemini", func(args interface{}) (IAIProvider, error) {
		return createGeminiProvider(args)
	})
	RegisterEmbed("gemini", func(args interface{}) (IEmbedProvider, error) {
		return createGeminiProvider(args)
	})
	RegisterSpeech("gemini", func(args interface{}) (ISpeechProvider, error) {
		return createGeminiProvider(args)
	})
}
