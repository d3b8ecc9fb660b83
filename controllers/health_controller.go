package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// 进程启动时间，健康检查上报运行时长
var startedAt = time.Now()

// HealthCheckController 健康检查控制器
type HealthCheckController struct{}

// NewHealthCheckController 创建健康检查控制器实例
func NewHealthCheckController() *HealthCheckController {
	return &HealthCheckController{}
}

// Ping 健康检查端点
func (h *HealthCheckController) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "pso-monitor-service",
		"status":  "healthy",
		"uptime":  time.Since(startedAt).Round(time.Second).String(),
		"time":    time.Now().Format(time.RFC3339),
	})
}
