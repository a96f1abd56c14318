package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xxxsen/docrag/internal/model"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	openAIPCMSampleRate      = 24000
)

type openAIConfig struct {
	APIKey      string `json:"api_key"`
	BaseURL     string `json:"base_url"`
	Dimensions  int    `json:"dimensions"`
	HTTPReferer string `json:"http_referer"`
	XTitle      string `json:"x_title"`
}

// openAIProvider talks to any OpenAI compatible endpoint. OpenRouter is the
// same protocol with two extra attribution headers.
type openAIProvider struct {
	name       string
	apiKey     string
	baseURL    string
	dimensions int
	headers    map[string]string
	client     *http.Client
}

type openAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIChatMsg       `json:"messages"`
	Stream         bool                  `json:"stream"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIEmbedRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type openAISpeechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

func (p *openAIProvider) Name() string {
	return p.name
}

func (p *openAIProvider) Generate(ctx context.Context, model string, prompt string, format ResponseFormat) (string, error) {
	reqBody := openAIChatRequest{
		Model:    model,
		Messages: []openAIChatMsg{{Role: "user", Content: prompt}},
		Stream:   false,
	}
	if format == FormatJSON {
		reqBody.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}
	data, err := p.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return "", err
	}
	var out openAIChatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s response has no choices", p.name)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (p *openAIProvider) Embed(ctx context.Context, model string, text string, taskType TaskType) ([]float32, error) {
	_ = taskType
	data, err := p.post(ctx, "/embeddings", openAIEmbedRequest{
		Model:      model,
		Input:      text,
		Dimensions: p.dimensions,
	})
	if err != nil {
		return nil, err
	}
	var out openAIEmbedResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("%s response has no embeddings", p.name)
	}
	return out.Data[0].Embedding, nil
}

func (p *openAIProvider) Synthesize(ctx context.Context, model string, text string, voice string) (*Audio, error) {
	data, err := p.post(ctx, "/audio/speech", openAISpeechRequest{
		Model:          model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: "pcm",
	})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s speech response is empty", p.name)
	}
	return &Audio{PCM: data, SampleRate: openAIPCMSampleRate}, nil
}

func (p *openAIProvider) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err := fmt.Errorf("%s request failed: %s: %s", p.name, resp.Status, strings.TrimSpace(string(raw)))
		return nil, markQuota(err, resp.StatusCode)
	}
	return raw, nil
}

func newOpenAICompatible(name, defaultBaseURL string, args interface{}) (*openAIProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = model.EmbeddingDimension
	}
	return &openAIProvider{
		name:       name,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    baseURL,
		dimensions: cfg.Dimensions,
		headers: map[string]string{
			"HTTP-Referer": cfg.HTTPReferer,
			"X-Title":      cfg.XTitle,
		},
		client: &http.Client{},
	}, nil
}

func init() {
	Register("openai", func(args interface{}) (IAIProvider, error) {
		return newOpenAICompatible("openai", defaultOpenAIBaseURL, args)
	})
	RegisterEmbed("openai", func(args interface{}) (IEmbedProvider, error) {
		return newOpenAICompatible("openai", defaultOpenAIBaseURL, args)
	})
	RegisterSpeech("openai", func(args interface{}) (ISpeechProvider, error) {
		return newOpenAICompatible("openai", defaultOpenAIBaseURL, args)
	})
	Register("openrouter", func(args interface{}) (IAIProvider, error) {
		return newOpenAICompatible("openrouter", defaultOpenRouterBaseURL, args)
	})
}
