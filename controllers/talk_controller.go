package controllers

import (
	"net/http"
	"strconv"

	"pso-monitor-service/internal/error/code"
	"pso-monitor-service/internal/error/response"
	"pso-monitor-service/models"
	"pso-monitor-service/services"
	"pso-monitor-service/services/container"

	"github.com/gin-gonic/gin"
)

// InterfaceTalkController 定义对讲控制器接口
type InterfaceTalkController interface {
	StartTalk()
	StopTalk()
}

// TalkController 对讲控制器实现
type TalkController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewTalkController 创建一个新的对讲控制器
func NewTalkController(ctx *gin.Context, container *container.ServiceContainer) InterfaceTalkController {
	return &TalkController{
		Ctx:       ctx,
		Container: container,
	}
}

// 请求结构体定义
type (
	// StartTalkRequest 发起对讲请求
	StartTalkRequest struct {
		SupervisorExternalID string `json:"supervisor_external_id" binding:"required"`
		PsoEmail             string `json:"pso_email" binding:"required,email"`
	}

	// StopTalkRequest 结束对讲请求
	StopTalkRequest struct {
		Reason string `json:"reason,omitempty"`
	}
)

// HandleTalkFunc 返回一个处理对讲请求的Gin处理函数
func HandleTalkFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewTalkController(ctx, container)

		switch method {
		case "startTalk":
			controller.StartTalk()
		case "stopTalk":
			controller.StopTalk()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// StartTalk 发起对讲会话
// @Summary      Start Talk Session
// @Description  Open an exclusive talk session between a supervisor and a field user
// @Tags         Talk
// @Accept       json
// @Produce      json
// @Param        request body StartTalkRequest true "Start request"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /api/talks [post]
func (c *TalkController) StartTalk() {
	var req StartTalkRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "无效的请求参数: "+err.Error(), nil)
		return
	}

	talkService := c.Container.GetService("talk").(services.InterfaceTalkService)
	result, err := talkService.Start(services.KeyByExternalID(req.SupervisorExternalID), req.PsoEmail)
	if err != nil {
		respondServiceError(c.Ctx, err)
		return
	}

	response.Success(c.Ctx, result)
}

// StopTalk 结束对讲会话
// @Summary      Stop Talk Session
// @Tags         Talk
// @Accept       json
// @Produce      json
// @Param        id path int true "Talk session ID"
// @Param        request body StopTalkRequest false "Stop request"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/talks/{id}/stop [post]
func (c *TalkController) StopTalk() {
	id, err := strconv.ParseUint(c.Ctx.Param("id"), 10, 32)
	if err != nil {
		response.ParamError(c.Ctx, "无效的会话ID")
		return
	}

	var req StopTalkRequest
	_ = c.Ctx.ShouldBindJSON(&req)

	reason := models.TalkStopUserInitiated
	if req.Reason != "" {
		reason = models.TalkStopReason(req.Reason)
	}

	talkService := c.Container.GetService("talk").(services.InterfaceTalkService)
	if err := talkService.Stop(uint(id), reason); err != nil {
		respondServiceError(c.Ctx, err)
		return
	}

	response.Success(c.Ctx, nil)
}
