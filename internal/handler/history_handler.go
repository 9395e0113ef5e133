package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"morning-coach/internal/service"
	"morning-coach/pkg/log"
)

// HistoryHandler 处理与对话历史相关的 API 请求。
type HistoryHandler struct {
	service service.CoachService
}

// NewHistoryHandler 创建一个新的 HistoryHandler。
func NewHistoryHandler(service service.CoachService) *HistoryHandler {
	return &HistoryHandler{service: service}
}

// GetHistory 处理 GET /api/history/:user_id。
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	userID := c.Param("user_id")

	resp, err := h.service.History(c.Request.Context(), userID)
	if err != nil {
		log.Errorf("GetHistory: 获取历史失败, userID=%s, error: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ClearHistory 处理 DELETE /api/history/:user_id，用户不存在时同样返回 cleared。
func (h *HistoryHandler) ClearHistory(c *gin.Context) {
	userID := c.Param("user_id")

	if err := h.service.ClearHistory(c.Request.Context(), userID); err != nil {
		log.Errorf("ClearHistory: 清除历史失败, userID=%s, error: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Infof("已清除用户 %s 的对话历史", userID)
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "status": "cleared"})
}
