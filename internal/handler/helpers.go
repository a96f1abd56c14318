package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docrag/internal/middleware"
	"github.com/xxxsen/docrag/internal/model"
	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
	"github.com/xxxsen/docrag/internal/pkg/errcode"
	"github.com/xxxsen/docrag/internal/pkg/response"
)

const QuotaExceededMessage = "API quota exceeded. Please wait a moment and try again."

func getScope(c *gin.Context) model.Scope {
	return middleware.ScopeFromContext(c)
}

// handleError is the single place where core failures become responses.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("scope", getScope(c).String()),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrQuotaExceeded):
		response.Error(c, errcode.ErrQuotaExceeded, QuotaExceededMessage)
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, err.Error())
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	case errors.Is(err, appErr.ErrUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "ai service is not configured")
	case errors.Is(err, appErr.ErrEmbedding):
		response.Error(c, errcode.ErrEmbeddingFailed, "failed to embed text, please try again")
	case errors.Is(err, appErr.ErrStore):
		response.Error(c, errcode.ErrStoreUnavailable, "vector store unavailable, please try again")
	case errors.Is(err, appErr.ErrGeneration):
		response.Error(c, errcode.ErrGenerationFailed, "failed to generate content, please try again")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

func requestBaseURL(c *gin.Context) string {
	proto := c.GetHeader("X-Forwarded-Proto")
	if proto == "" {
		if c.Request.TLS != nil {
			proto = "https"
		} else {
			proto = "http"
		}
	}
	host := c.GetHeader("X-Forwarded-Host")
	if host == "" {
		host = c.Request.Host
	}
	return proto + "://" + host
}

func formatUploadLimit(bytes int64) string {
	const mb = 1024 * 1024
	if bytes <= 0 {
		return "0MB"
	}
	value := bytes / mb
	if value <= 0 {
		value = 1
	}
	return strconv.FormatInt(value, 10) + "MB"
}
