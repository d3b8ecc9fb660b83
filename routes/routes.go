package routes

import (
	"pso-monitor-service/config"
	"pso-monitor-service/controllers"
	"pso-monitor-service/middleware"
	"pso-monitor-service/services/container"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// SetupRouter 初始化并返回配置好的路由
func SetupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// 初始化 Gin
	r := gin.Default()

	// 添加 CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
	// 创建服务容器
	serviceContainer := container.NewServiceContainer(db, cfg, nil)
	// 初始化中间件
	middleware.InitAuthMiddleware(cfg, db)
	// 添加 Swagger 文档路由
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 注册路由
	registerRoutes(r, serviceContainer)
	return r
}

// registerRoutes 配置所有API路由
func registerRoutes(
	r *gin.Engine,
	container *container.ServiceContainer,
) {
	// API 路由根路径
	api := r.Group("/api")
	// 注册公共路由
	registerPublicRoutes(api, container)
	// 注册需要认证的路由
	registerAuthenticatedRoutes(api, container)
}

// registerPublicRoutes 注册公共路由
func registerPublicRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	// 健康检查
	health := controllers.NewHealthCheckController()
	api.GET("/ping", health.Ping)

	// 认证路由
	api.POST("/auth/login", controllers.HandleAuthFunc(container, "login"))

	// 现场端长连接，上线/断开级联由连接生命周期驱动
	api.GET("/ws", controllers.HandleWebSocketFunc(container))
}

// registerAuthenticatedRoutes 注册需要认证的路由
func registerAuthenticatedRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	// 添加认证中间件
	auth := api.Group("/")
	auth.Use(middleware.AuthenticateAdmin())

	// 在线状态路由
	auth.Group("/presence").GET("", controllers.HandlePresenceFunc(container, "getStatus"))
	auth.Group("/presence").POST("/sync", controllers.HandlePresenceFunc(container, "syncAll"))

	// 推流指令路由
	auth.Group("/commands").POST("", controllers.HandleCommandFunc(container, "sendCommand"))
	auth.Group("/commands").POST("/replay", controllers.HandleCommandFunc(container, "getPendingCommands"))

	// 录像路由
	auth.Group("/recordings").POST("", controllers.HandleRecordingFunc(container, "startRecording"))
	auth.Group("/recordings").GET("", controllers.HandleRecordingFunc(container, "getRecordings"))
	auth.Group("/recordings").GET("/active", controllers.HandleRecordingFunc(container, "getActiveRecordings"))
	auth.Group("/recordings").POST("/stop-all", controllers.HandleRecordingFunc(container, "stopAllForUser"))
	auth.Group("/recordings").POST("/:id/stop", controllers.HandleRecordingFunc(container, "stopRecording"))
	auth.Group("/recordings").GET("/:id/playback", controllers.HandleRecordingFunc(container, "getPlaybackURL"))
	auth.Group("/recordings").DELETE("/:id", controllers.HandleRecordingFunc(container, "deleteRecording"))

	// 对讲会话路由
	auth.Group("/talks").POST("", controllers.HandleTalkFunc(container, "startTalk"))
	auth.Group("/talks").POST("/:id/stop", controllers.HandleTalkFunc(container, "stopTalk"))

	// 主管指派路由
	auth.Group("/supervisors").POST("/change", controllers.HandleSupervisorFunc(container, "changeSupervisor"))
	auth.Group("/supervisors").GET("/monitored", controllers.HandleSupervisorFunc(container, "getMonitoredUsers"))
}
