package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"morning-coach/internal/model"
	"morning-coach/internal/service"
	"morning-coach/pkg/log"
)

// CoachHandler 处理 webhook 与有状态教练接口。
type CoachHandler struct {
	service service.CoachService
}

// NewCoachHandler 创建一个新的 CoachHandler。
func NewCoachHandler(service service.CoachService) *CoachHandler {
	return &CoachHandler{service: service}
}

// Webhook 处理 POST /coach。请求体缺失或无法解析时按空对象处理，
// 单个字段类型不符不影响其他字段。
func (h *CoachHandler) Webhook(c *gin.Context) {
	var req model.WebhookRequest
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warnf("Webhook: 读取请求体失败，使用缺省值: %v", err)
	} else if req, err = model.ParseWebhookRequest(body); err != nil {
		log.Warnf("Webhook: 请求体无法解析，使用缺省值: %v", err)
	}

	c.JSON(http.StatusOK, h.service.Webhook(c.Request.Context(), req))
}

// Coach 处理 POST /api/coach。
func (h *CoachHandler) Coach(c *gin.Context) {
	var req model.CoachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Coach: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	if req.UserID == "" {
		req.UserID = model.AnonymousUser
	}
	if req.Context == nil {
		req.Context = map[string]any{}
	}

	resp, err := h.service.Coach(c.Request.Context(), req.UserID, req.Message, req.Context)
	if err != nil {
		log.Errorf("Coach: 处理请求失败, userID=%s, error: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}
