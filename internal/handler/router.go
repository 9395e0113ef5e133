package handler

import (
	"github.com/gin-gonic/gin"

	"morning-coach/internal/middleware"
	"morning-coach/internal/service"
)

// RouterOptions 描述一个部署形态：webhook 密钥，以及是否开启有状态的历史接口。
type RouterOptions struct {
	WebhookSecret  string
	HistoryEnabled bool
}

// NewRouter 创建 gin 引擎并注册路由。
func NewRouter(coachService service.CoachService, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), middleware.Recovery())

	r.GET("/", Status)
	r.GET("/status", Status)

	coachHandler := NewCoachHandler(coachService)
	r.POST("/coach", middleware.WebhookAuth(opts.WebhookSecret), coachHandler.Webhook)

	if opts.HistoryEnabled {
		historyHandler := NewHistoryHandler(coachService)
		api := r.Group("/api")
		{
			api.POST("/coach", coachHandler.Coach)
			api.GET("/history/:user_id", historyHandler.GetHistory)
			api.DELETE("/history/:user_id", historyHandler.ClearHistory)
		}
	}
	return r
}
