package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docrag/internal/pkg/errcode"
	"github.com/xxxsen/docrag/internal/pkg/response"
	"github.com/xxxsen/docrag/internal/service"
)

type RepurposeHandler struct {
	svc *service.RepurposeService
}

func NewRepurposeHandler(svc *service.RepurposeService) *RepurposeHandler {
	return &RepurposeHandler{svc: svc}
}

type StudyAidRequest struct {
	Type string `json:"type"`
}

func (h *RepurposeHandler) Audio(c *gin.Context) {
	out, err := h.svc.AudioOverview(c.Request.Context(), getScope(c), requestBaseURL(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, out)
}

func (h *RepurposeHandler) StudyAid(c *gin.Context) {
	var req StudyAidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "type is required")
		return
	}
	out, err := h.svc.StudyAid(c.Request.Context(), getScope(c), strings.ToLower(strings.TrimSpace(req.Type)))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, out)
}

func (h *RepurposeHandler) Slides(c *gin.Context) {
	out, err := h.svc.Slides(c.Request.Context(), getScope(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, out)
}

func (h *RepurposeHandler) Video(c *gin.Context) {
	out, err := h.svc.Video(c.Request.Context(), getScope(c), requestBaseURL(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, out)
}
