package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/docrag/internal/ai"
	"github.com/xxxsen/docrag/internal/filestore"
	"github.com/xxxsen/docrag/internal/handler"
	"github.com/xxxsen/docrag/internal/middleware"
	"github.com/xxxsen/docrag/internal/rag"
	"github.com/xxxsen/docrag/internal/service"
	"github.com/xxxsen/docrag/internal/testutil"
	"github.com/xxxsen/docrag/internal/vectorstore"
)

type stubGenerator struct {
	reply string
	err   error
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string, format ai.ResponseFormat) (string, error) {
	return s.reply, s.err
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	handler http.Handler
	gen     *stubGenerator
	token   string
}

func setupRouter(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	embedClient := rag.NewEmbeddingClient(&testutil.BagOfWordsEmbedder{}, 0)
	store := vectorstore.NewMemoryStore()
	retriever := rag.NewRetriever(embedClient, store, 5, 0.3)
	ragSvc := service.NewRAGService(embedClient, store, retriever, service.RAGConfig{
		ChunkSize:      20,
		ChunkOverlap:   0,
		MaxUploadBytes: 1024,
	})
	gen := &stubGenerator{}
	manager := ai.NewManager(gen, ai.ManagerConfig{})
	files := filestore.NewLocalStore(t.TempDir(), "")

	deps := handler.RouterDeps{
		RAG:           handler.NewRAGHandler(ragSvc, service.NewQAService(ragSvc, manager), 1024),
		Repurpose:     handler.NewRepurposeHandler(service.NewRepurposeService(ragSvc, manager, nil, files, nil, 50)),
		Files:         handler.NewFileHandler(files),
		SessionSecret: []byte("test-secret"),
		SessionTTL:    time.Hour,
		NewScope:      service.NewScope,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)

	srv := &testServer{handler: engine, gen: gen}
	resp := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	require.Equal(t, 0, resp.Code)
	srv.token = resp.header.Get(middleware.SessionHeader)
	require.NotEmpty(t, srv.token)
	return srv
}

type result struct {
	envelope
	header http.Header
}

func (s *testServer) do(t *testing.T, req *http.Request) result {
	t.Helper()
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var out result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out.envelope))
	out.header = w.Header()
	return out
}

func (s *testServer) postJSON(t *testing.T, path, body string) result {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req)
}

func (s *testServer) upload(t *testing.T, filename, content string) result {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(t, req)
}
