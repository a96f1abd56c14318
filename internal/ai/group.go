package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Entry[T any] struct {
	Name string
	Item T
}

type (
	GeneratorEntry   = Entry[IGenerator]
	EmbedderEntry    = Entry[IEmbedder]
	SynthesizerEntry = Entry[ISynthesizer]
)

// Fallback tries the entries in order and returns the first success. The
// last failure is returned when every entry fails.
func Fallback[T any, R any](ctx context.Context, kind string, items []Entry[T], call func(T) (R, error)) (R, error) {
	var zero R
	var lastErr error
	for i, item := range items {
		if any(item.Item) == nil {
			continue
		}
		res, err := call(item.Item)
		if err == nil {
			if lastErr != nil {
				logutil.GetLogger(ctx).Info(kind+" fallback succeeded", zap.Int("index", i), zap.String("name", item.Name))
			}
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn(kind+" failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		return zero, fmt.Errorf("%s: %w", kind, ErrUnavailable)
	}
	return zero, lastErr
}

type groupGenerator struct {
	items []GeneratorEntry
}

func NewGroupGenerator(items []GeneratorEntry) IGenerator {
	if len(items) == 0 {
		return nil
	}
	return &groupGenerator{items: items}
}

func (g *groupGenerator) Generate(ctx context.Context, prompt string, format ResponseFormat) (string, error) {
	return Fallback(ctx, "generator", g.items, func(gen IGenerator) (string, error) {
		return gen.Generate(ctx, prompt, format)
	})
}

// groupEmbedder only makes sense when every entry produces vectors in the
// same space, e.g. one model served by several endpoints.
type groupEmbedder struct {
	items []EmbedderEntry
}

func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	if len(items) == 0 {
		return nil
	}
	return &groupEmbedder{items: items}
}

func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType TaskType) ([]float32, error) {
	return Fallback(ctx, "embedder", g.items, func(e IEmbedder) ([]float32, error) {
		return e.Embed(ctx, text, taskType)
	})
}

func (g *groupEmbedder) ModelName() string {
	names := make([]string, 0, len(g.items))
	for _, item := range g.items {
		if item.Item == nil {
			continue
		}
		names = append(names, item.Item.ModelName())
	}
	return strings.Join(names, "|")
}

type groupSynthesizer struct {
	items []SynthesizerEntry
}

func NewGroupSynthesizer(items []SynthesizerEntry) ISynthesizer {
	if len(items) == 0 {
		return nil
	}
	return &groupSynthesizer{items: items}
}

func (g *groupSynthesizer) Synthesize(ctx context.Context, text string, voice string) (*Audio, error) {
	return Fallback(ctx, "synthesizer", g.items, func(s ISynthesizer) (*Audio, error) {
		return s.Synthesize(ctx, text, voice)
	})
}
