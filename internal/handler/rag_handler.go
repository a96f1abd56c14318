package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docrag/internal/parser"
	"github.com/xxxsen/docrag/internal/pkg/errcode"
	"github.com/xxxsen/docrag/internal/pkg/response"
	"github.com/xxxsen/docrag/internal/service"
)

type RAGHandler struct {
	rag            *service.RAGService
	qa             *service.QAService
	maxUploadBytes int64
}

func NewRAGHandler(rag *service.RAGService, qa *service.QAService, maxUploadBytes int64) *RAGHandler {
	return &RAGHandler{rag: rag, qa: qa, maxUploadBytes: maxUploadBytes}
}

type UploadResponse struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
}

type ChatRequest struct {
	Query string `json:"query"`
}

type SessionResponse struct {
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
}

func (h *RAGHandler) Session(c *gin.Context) {
	scope := getScope(c)
	response.Success(c, SessionResponse{UserID: scope.UserID, ProjectID: scope.ProjectID})
}

func (h *RAGHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1024*1024)
	}
	file, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(c, errcode.ErrUploadTooLarge, "file too large, limit "+formatUploadLimit(h.maxUploadBytes))
			return
		}
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		response.Error(c, errcode.ErrUploadTooLarge, "file too large, limit "+formatUploadLimit(h.maxUploadBytes))
		return
	}
	if !parser.Supported(file.Filename) {
		response.Error(c, errcode.ErrInvalidFile, "unsupported file type, use pdf, md or txt")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	data, err := io.ReadAll(opened)
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}
	count, err := h.rag.Ingest(c.Request.Context(), getScope(c), file.Filename, data)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, UploadResponse{Filename: file.Filename, Chunks: count})
}

func (h *RAGHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		response.Error(c, errcode.ErrInvalid, "query is required")
		return
	}
	result, err := h.qa.Ask(c.Request.Context(), getScope(c), req.Query)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
