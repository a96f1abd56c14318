package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docrag/internal/model"
	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *openAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := newOpenAICompatible("openai", defaultOpenAIBaseURL, map[string]interface{}{
		"api_key":  "sk-test",
		"base_url": srv.URL,
	})
	require.NoError(t, err)
	return p
}

func TestOpenAIGenerate_JSONMode(t *testing.T) {
	var got openAIChatRequest
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  [1,2]  "}}]}`))
	})

	out, err := p.Generate(context.Background(), "gpt-4o-mini", "prompt", FormatJSON)
	require.NoError(t, err)
	require.Equal(t, "[1,2]", out)
	require.NotNil(t, got.ResponseFormat)
	require.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Equal(t, "gpt-4o-mini", got.Model)
}

func TestOpenAIEmbed_SendsDimensions(t *testing.T) {
	var got openAIEmbedRequest
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		vec := make([]float32, model.EmbeddingDimension)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"embedding": vec}},
		})
	})

	vec, err := p.Embed(context.Background(), "text-embedding-3-small", "hello", TaskRetrievalQuery)
	require.NoError(t, err)
	require.Len(t, vec, model.EmbeddingDimension)
	require.Equal(t, model.EmbeddingDimension, got.Dimensions)
}

func TestOpenAISynthesize_ReturnsPCM(t *testing.T) {
	var got openAISpeechRequest
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio/speech", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte{1, 0, 2, 0})
	})

	audio, err := p.Synthesize(context.Background(), "tts-1", "hello", "alloy")
	require.NoError(t, err)
	require.Equal(t, "pcm", got.ResponseFormat)
	require.Equal(t, openAIPCMSampleRate, audio.SampleRate)
	require.Len(t, audio.PCM, 4)
}

func TestOpenAI_RateLimitIsQuota(t *testing.T) {
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	})
	_, err := p.Generate(context.Background(), "gpt-4o-mini", "prompt", FormatText)
	require.ErrorIs(t, err, appErr.ErrQuotaExceeded)
}

func TestOpenAI_ServerErrorIsNotQuota(t *testing.T) {
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`boom`))
	})
	_, err := p.Generate(context.Background(), "gpt-4o-mini", "prompt", FormatText)
	require.Error(t, err)
	require.NotErrorIs(t, err, appErr.ErrQuotaExceeded)
}

func TestOpenAI_MissingKeyIsUnavailable(t *testing.T) {
	p, err := newOpenAICompatible("openai", defaultOpenAIBaseURL, map[string]interface{}{})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), "gpt-4o-mini", "prompt", FormatText)
	require.ErrorIs(t, err, appErr.ErrUnavailable)
}

func TestMarkQuota_MessageHeuristics(t *testing.T) {
	for _, msg := range []string{"RESOURCE_EXHAUSTED", "Quota exceeded for metric", "rate limit reached", "status 429"} {
		err := markQuota(errorString(msg), http.StatusBadRequest)
		require.ErrorIs(t, err, appErr.ErrQuotaExceeded, msg)
	}
	require.NotErrorIs(t, markQuota(errorString("bad request"), http.StatusBadRequest), appErr.ErrQuotaExceeded)
	require.Nil(t, markQuota(nil, http.StatusTooManyRequests))
}

type errorString string

func (e errorString) Error() string { return string(e) }
