package controllers

import (
	"net/http"
	"strings"
	"time"

	"pso-monitor-service/internal/error/code"
	"pso-monitor-service/internal/error/response"
	"pso-monitor-service/models"
	"pso-monitor-service/services"
	"pso-monitor-service/services/container"

	"github.com/gin-gonic/gin"
)

// InterfaceCommandController 定义推流指令控制器接口
type InterfaceCommandController interface {
	SendCommand()
	GetPendingCommands()
}

// CommandController 推流指令控制器实现
type CommandController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewCommandController 创建一个新的推流指令控制器
func NewCommandController(ctx *gin.Context, container *container.ServiceContainer) InterfaceCommandController {
	return &CommandController{
		Ctx:       ctx,
		Container: container,
	}
}

// SendCommandRequest 下发指令请求
type SendCommandRequest struct {
	TargetEmail string    `json:"target_email" binding:"required,email"`
	Command     string    `json:"command" binding:"required"`
	Timestamp   time.Time `json:"timestamp"`
	Reason      string    `json:"reason,omitempty"`
}

// HandleCommandFunc 返回一个处理推流指令请求的Gin处理函数
func HandleCommandFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewCommandController(ctx, container)

		switch method {
		case "sendCommand":
			controller.SendCommand()
		case "getPendingCommands":
			controller.GetPendingCommands()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// SendCommand 下发推流指令
// @Summary      Send Streaming Command
// @Description  Send a START/STOP/REFRESH command to a field user, stored for replay when offline
// @Tags         Command
// @Accept       json
// @Produce      json
// @Param        request body SendCommandRequest true "Command request"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/commands [post]
func (c *CommandController) SendCommand() {
	var req SendCommandRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "无效的请求参数: "+err.Error(), nil)
		return
	}

	commandType := models.CommandType(req.Command)
	switch commandType {
	case models.CommandStart, models.CommandStop, models.CommandRefresh:
	default:
		response.Fail(c.Ctx, code.ErrCommandInvalid, gin.H{"command": req.Command})
		return
	}
	if commandType == models.CommandStop && strings.TrimSpace(req.Reason) == "" {
		response.FailWithMessage(c.Ctx, code.ErrValidation, "STOP 指令必须提供 reason", nil)
		return
	}

	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	commandService := c.Container.GetService("command").(services.InterfaceCommandService)
	result, err := commandService.ProcessCommand(req.TargetEmail, commandType, timestamp, req.Reason)
	if err != nil {
		respondServiceError(c.Ctx, err)
		return
	}

	response.Success(c.Ctx, result)
}

// GetPendingCommands 触发一次指令回放
// @Summary      Replay Pending Commands
// @Description  Re-deliver stored commands for a reconnected user
// @Tags         Command
// @Produce      json
// @Param        email query string true "Target user email"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/commands/replay [post]
func (c *CommandController) GetPendingCommands() {
	email := c.Ctx.Query("email")
	if email == "" {
		response.ParamError(c.Ctx, "缺少 email 参数")
		return
	}

	commandService := c.Container.GetService("command").(services.InterfaceCommandService)
	replayed, err := commandService.ReplayPendingCommands(email)
	if err != nil {
		respondServiceError(c.Ctx, err)
		return
	}

	response.Success(c.Ctx, gin.H{"replayed": replayed})
}
