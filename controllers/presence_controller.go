package controllers

import (
	"net/http"

	"pso-monitor-service/internal/error/response"
	"pso-monitor-service/services"
	"pso-monitor-service/services/container"

	"github.com/gin-gonic/gin"
)

// InterfacePresenceController 定义在线状态控制器接口
type InterfacePresenceController interface {
	GetStatus()
	SyncAll()
}

// PresenceController 在线状态控制器实现
type PresenceController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewPresenceController 创建一个新的在线状态控制器
func NewPresenceController(ctx *gin.Context, container *container.ServiceContainer) InterfacePresenceController {
	return &PresenceController{
		Ctx:       ctx,
		Container: container,
	}
}

// HandlePresenceFunc 返回一个处理在线状态请求的Gin处理函数
func HandlePresenceFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewPresenceController(ctx, container)

		switch method {
		case "getStatus":
			controller.GetStatus()
		case "syncAll":
			controller.SyncAll()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// GetStatus 查询某用户的在线状态
// @Summary      Get Presence Status
// @Tags         Presence
// @Produce      json
// @Param        email query string true "User email"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/presence [get]
func (c *PresenceController) GetStatus() {
	email := c.Ctx.Query("email")
	if email == "" {
		response.ParamError(c.Ctx, "缺少 email 参数")
		return
	}

	presenceService := c.Container.GetService("presence").(services.InterfacePresenceService)
	status, err := presenceService.GetStatus(services.KeyByEmail(email))
	if err != nil {
		respondServiceError(c.Ctx, err)
		return
	}

	response.Success(c.Ctx, gin.H{"email": email, "status": status})
}

// SyncAll 触发一次全量在线状态广播
// @Summary      Broadcast Presence Snapshot
// @Description  Push a database-backed presence snapshot to all subscribers
// @Tags         Presence
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/presence/sync [post]
func (c *PresenceController) SyncAll() {
	broadcastService := c.Container.GetService("broadcast").(services.InterfaceBroadcastService)
	if err := broadcastService.SyncAllUsersWithDatabase(); err != nil {
		respondServiceError(c.Ctx, err)
		return
	}

	response.Success(c.Ctx, nil)
}
