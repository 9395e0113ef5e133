// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Status 是健康检查接口，无需认证。
func Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
