package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"morning-coach/pkg/log"
)

// Recovery 捕获处理函数中的 panic，返回 500 和 {"error": <message>}。
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		msg := fmt.Sprint(recovered)
		if err, ok := recovered.(error); ok {
			msg = err.Error()
		}
		log.Errorf("处理请求时发生 panic: %s %s: %s", c.Request.Method, c.Request.URL.Path, msg)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msg})
	})
}
