// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"morning-coach/pkg/log"
)

// AuthHeader 携带 webhook 共享密钥。
const AuthHeader = "X-Auth"

// WebhookAuth 校验 X-Auth 请求头与配置的共享密钥完全一致。
// 未配置密钥时拒绝所有请求。
func WebhookAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(header), []byte(secret)) != 1 {
			if secret == "" {
				log.Warnf("webhook secret 未配置，拒绝请求: %s", c.Request.URL.Path)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
