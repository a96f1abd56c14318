package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docrag/internal/middleware"
	"github.com/xxxsen/docrag/internal/model"
)

type RouterDeps struct {
	RAG             *RAGHandler
	Repurpose       *RepurposeHandler
	Files           *FileHandler
	SessionSecret   []byte
	SessionTTL      time.Duration
	NewScope        func() model.Scope
	GenerateLimiter time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/files/:key", deps.Files.Get)

	sessionGroup := api.Group("")
	sessionGroup.Use(middleware.Session(deps.SessionSecret, deps.SessionTTL, deps.NewScope))
	sessionGroup.GET("/session", deps.RAG.Session)
	sessionGroup.POST("/upload", deps.RAG.Upload)

	limited := sessionGroup.Group("")
	limited.Use(middleware.RateLimit(deps.GenerateLimiter))
	limited.POST("/chat", deps.RAG.Chat)
	limited.POST("/generate/audio", deps.Repurpose.Audio)
	limited.POST("/generate/study-aid", deps.Repurpose.StudyAid)
	limited.POST("/generate/slides", deps.Repurpose.Slides)
	limited.POST("/generate/video", deps.Repurpose.Video)
}
