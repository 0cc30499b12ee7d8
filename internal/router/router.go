package router

import (
	"context"
	"net/http"
	"time"

	"github.com/blues/cleanfund/internal/handler"
	"github.com/blues/cleanfund/internal/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthFunc 附加到健康检查中的链状态，可为空
type HealthFunc func(ctx context.Context) map[string]interface{}

// Services 路由依赖的业务
type Services struct {
	Campaigns  handler.CampaignService
	Dispatches handler.DispatchService
	Health     HealthFunc
}

func Setup(services Services) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(requestLogger())
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		resp := handler.HealthResponse{
			Status:  "ok",
			Service: "cleanfund",
		}
		if services.Health != nil {
			resp.Chain = services.Health(c.Request.Context())
		}
		c.JSON(http.StatusOK, resp)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		campaignHandler := handler.NewCampaignHandler(services.Campaigns)
		crowdfunding := api.Group("/crowdfunding")
		{
			crowdfunding.POST("", campaignHandler.CreateCampaign)
			crowdfunding.GET("", campaignHandler.GetCampaigns)
			crowdfunding.GET("/:task_id", campaignHandler.GetCampaign)
			crowdfunding.GET("/:task_id/funding", campaignHandler.GetFunding)
		}

		dispatchHandler := handler.NewDispatchHandler(services.Dispatches)
		api.POST("/irl-agents/tasks", dispatchHandler.CreateTasks)
	}

	return r
}

// requestLogger 通过 zap 记录请求
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("%s %s %d %s", c.Request.Method, path, status, latency)
		case status >= http.StatusBadRequest:
			logger.Warn("%s %s %d %s", c.Request.Method, path, status, latency)
		default:
			logger.Info("%s %s %d %s", c.Request.Method, path, status, latency)
		}
	}
}
