package controllers

import (
	"net/http"
	"time"

	"pso-monitor-service/internal/error/code"
	"pso-monitor-service/internal/error/response"
	"pso-monitor-service/models"
	"pso-monitor-service/services"
	"pso-monitor-service/services/container"

	"github.com/gin-gonic/gin"
)

// InterfaceSupervisorController 定义主管指派控制器接口
type InterfaceSupervisorController interface {
	ChangeSupervisor()
	GetMonitoredUsers()
}

// SupervisorController 主管指派控制器实现
type SupervisorController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewSupervisorController 创建一个新的主管指派控制器
func NewSupervisorController(ctx *gin.Context, container *container.ServiceContainer) InterfaceSupervisorController {
	return &SupervisorController{
		Ctx:       ctx,
		Container: container,
	}
}

// ChangeSupervisorRequest 主管变更请求
type ChangeSupervisorRequest struct {
	UserEmails         []string `json:"user_emails" binding:"required"`
	NewSupervisorEmail *string  `json:"new_supervisor_email"`
	ChangeType         string   `json:"change_type" binding:"required"`
}

// HandleSupervisorFunc 返回一个处理主管指派请求的Gin处理函数
func HandleSupervisorFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewSupervisorController(ctx, container)

		switch method {
		case "changeSupervisor":
			controller.ChangeSupervisor()
		case "getMonitoredUsers":
			controller.GetMonitoredUsers()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// ChangeSupervisor 批量变更主管
// @Summary      Change Supervisor
// @Description  Reassign or unassign the supervisor for a batch of field users
// @Tags         Supervisor
// @Accept       json
// @Produce      json
// @Param        request body ChangeSupervisorRequest true "Change request"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Router       /api/supervisors/change [post]
func (c *SupervisorController) ChangeSupervisor() {
	var req ChangeSupervisorRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "无效的请求参数: "+err.Error(), nil)
		return
	}

	assignment := &models.SupervisorAssignment{
		UserEmails:         req.UserEmails,
		NewSupervisorEmail: req.NewSupervisorEmail,
		ChangeType:         models.SupervisorChangeType(req.ChangeType),
		Timestamp:          time.Now(),
	}

	supervisorService := c.Container.GetService("supervisor").(services.InterfaceSupervisorService)
	result, err := supervisorService.ChangeSupervisor(assignment)
	if err != nil {
		respondServiceError(c.Ctx, err)
		return
	}

	response.Success(c.Ctx, result)
}

// GetMonitoredUsers 列出受监控用户及其主管
// @Summary      List Monitored Users
// @Tags         Supervisor
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/supervisors/monitored [get]
func (c *SupervisorController) GetMonitoredUsers() {
	managementService := c.Container.GetService("user_management").(services.InterfaceUserManagementService)
	users, err := managementService.ListMonitoredUsers()
	if err != nil {
		respondServiceError(c.Ctx, err)
		return
	}

	response.Success(c.Ctx, users)
}
