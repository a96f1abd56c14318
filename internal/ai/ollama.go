package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

const defaultOllamaHost = "http://127.0.0.1:11434"

type ollamaConfig struct {
	Host string `json:"host"`
	// TaskPrefix prepends the nomic-embed style "search_document: " and
	// "search_query: " markers to embedded text.
	TaskPrefix bool `json:"task_prefix"`
}

type ollamaProvider struct {
	client     *api.Client
	taskPrefix bool
}

func (p *ollamaProvider) Name() string {
	return "ollama"
}

func (p *ollamaProvider) Generate(ctx context.Context, model string, prompt string, format ResponseFormat) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: &stream,
	}
	if format == FormatJSON {
		req.Format = json.RawMessage(`"json"`)
	}
	var sb strings.Builder
	err := p.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", ollamaError(err)
	}
	return strings.TrimSpace(sb.String()), nil
}

func (p *ollamaProvider) Embed(ctx context.Context, model string, text string, taskType TaskType) ([]float32, error) {
	if p.taskPrefix {
		switch taskType {
		case TaskRetrievalDocument:
			text = "search_document: " + text
		case TaskRetrievalQuery:
			text = "search_query: " + text
		}
	}
	resp, err := p.client.Embed(ctx, &api.EmbedRequest{
		Model: model,
		Input: text,
	})
	if err != nil {
		return nil, ollamaError(err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama response has no embeddings")
	}
	return resp.Embeddings[0], nil
}

func ollamaError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return markQuota(err, statusErr.StatusCode)
	}
	return markQuota(err, 0)
}

func createOllamaProvider(args interface{}) (*ollamaProvider, error) {
	cfg := &ollamaConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = defaultOllamaHost
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	return &ollamaProvider{
		client:     api.NewClient(base, http.DefaultClient),
		taskPrefix: cfg.TaskPrefix,
	}, nil
}

func init() {
	Register("ollama", func(args interface{}) (IAIProvider, error) {
		return createOllamaProvider(args)
	})
	RegisterEmbed("ollama", func(args interface{}) (IEmbedProvider, error) {
		return createOllamaProvider(args)
	})
}
