package controllers

import (
	"net/http"

	"pso-monitor-service/services"
	"pso-monitor-service/services/container"

	"github.com/gin-gonic/gin"
)

// InterfaceAuthController 定义认证控制器接口
type InterfaceAuthController interface {
	Login()
}

// AuthController 认证控制器实现
type AuthController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewAuthController 创建一个新的认证控制器
func NewAuthController(ctx *gin.Context, container *container.ServiceContainer) InterfaceAuthController {
	return &AuthController{
		Ctx:       ctx,
		Container: container,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// HandleAuthFunc 返回一个处理认证请求的Gin处理函数
func HandleAuthFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewAuthController(ctx, container)

		switch method {
		case "login":
			controller.Login()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// Login 管理员登录
// @Summary      Admin Login
// @Description  Authenticate an administrator and issue a JWT
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login request"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  ErrorResponse
// @Router       /api/auth/login [post]
func (c *AuthController) Login() {
	var req LoginRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	authService := c.Container.GetService("auth").(services.InterfaceAuthService)
	result, err := authService.Login(req.Username, req.Password)
	if err != nil {
		c.Ctx.JSON(http.StatusUnauthorized, gin.H{
			"code":    401,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "成功",
		"data":    result,
	})
}
