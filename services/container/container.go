package container

import (
	"context"
	"log"
	"sync"
	"time"

	"pso-monitor-service/config"
	"pso-monitor-service/services"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ServiceContainer 管理所有服务的依赖注入
type ServiceContainer struct {
	db     *gorm.DB
	config *config.Config
	redis  *redis.Client

	// 存取层
	userRepo      services.InterfaceUserRepository
	presenceRepo  services.InterfacePresenceRepository
	commandRepo   services.InterfaceCommandRepository
	recordingRepo services.InterfaceRecordingRepository
	talkRepo      services.InterfaceTalkRepository
	streamingRepo services.InterfaceStreamingRepository

	// 基础服务
	authService      services.InterfaceAuthService
	errorLogger      services.InterfaceErrorLogger
	broadcastService services.InterfaceBroadcastService
	messagingService services.InterfaceMessagingService
	egressService    services.InterfaceEgressService
	storageService   services.InterfaceStorageService

	// 业务服务
	presenceService   services.InterfacePresenceService
	streamingService  services.InterfaceStreamingService
	commandService    services.InterfaceCommandService
	recordingService  services.InterfaceRecordingService
	talkService       services.InterfaceTalkService
	connectionService services.InterfaceConnectionService
	managementService services.InterfaceUserManagementService
	supervisorService services.InterfaceSupervisorService

	mu sync.RWMutex
}

// NewServiceContainer 创建新的服务容器
func NewServiceContainer(db *gorm.DB, cfg *config.Config, redisClient *redis.Client) *ServiceContainer {
	if db == nil {
		panic("数据库连接为空")
	}

	if cfg == nil {
		panic("配置为空")
	}

	// 测试Redis连接
	if redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Redis连接测试失败: %v，广播可能不可用", err)
		}
	}

	container := &ServiceContainer{
		db:     db,
		config: cfg,
		redis:  redisClient,
	}
	container.initializeServices()
	return container
}

// initializeServices 初始化所有服务
func (c *ServiceContainer) initializeServices() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 初始化存取层
	c.userRepo = services.NewUserRepository(c.db)
	c.presenceRepo = services.NewPresenceRepository(c.db)
	c.commandRepo = services.NewCommandRepository(c.db)
	c.recordingRepo = services.NewRecordingRepository(c.db)
	c.talkRepo = services.NewTalkRepository(c.db)
	c.streamingRepo = services.NewStreamingRepository(c.db)

	// 初始化基础服务
	c.authService = services.NewAuthService(c.config, c.db)
	c.errorLogger = services.NewErrorLogger()
	c.broadcastService = services.NewBroadcastService(c.config, c.userRepo, c.presenceRepo)
	c.messagingService = services.NewMessagingService(c.config)
	c.egressService = services.NewEgressService(c.config)
	c.storageService = services.NewStorageService(c.config)

	// 连接MQTT服务器
	if err := c.messagingService.Connect(); err != nil {
		log.Printf("MQTT服务连接失败: %v", err)
	}

	// 初始化业务服务
	c.presenceService = services.NewPresenceService(c.userRepo, c.presenceRepo, c.broadcastService)
	c.streamingService = services.NewStreamingService(c.streamingRepo)
	c.commandService = services.NewCommandService(c.commandRepo, c.userRepo, c.presenceService, c.streamingService, c.messagingService, c.broadcastService, c.errorLogger)
	c.recordingService = services.NewRecordingService(c.recordingRepo, c.userRepo, c.egressService, c.storageService, c.errorLogger)
	c.talkService = services.NewTalkService(c.talkRepo, c.userRepo, c.broadcastService, c.errorLogger)
	c.connectionService = services.NewConnectionService(c.userRepo, c.presenceService, c.commandService, c.talkService, c.recordingService, c.streamingService, c.broadcastService, c.errorLogger)
	c.managementService = services.NewUserManagementService(c.userRepo)
	c.supervisorService = services.NewSupervisorService(c.userRepo, c.managementService, c.messagingService, c.broadcastService, c.errorLogger)
}

// GetService 获取指定名称的服务
func (c *ServiceContainer) GetService(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch name {
	case "config":
		return c.config
	case "db":
		return c.db
	case "auth":
		return c.authService
	case "error_logger":
		return c.errorLogger
	case "broadcast":
		return c.broadcastService
	case "messaging":
		return c.messagingService
	case "egress":
		return c.egressService
	case "storage":
		return c.storageService
	case "presence":
		return c.presenceService
	case "streaming":
		return c.streamingService
	case "command":
		return c.commandService
	case "recording":
		return c.recordingService
	case "talk":
		return c.talkService
	case "connection":
		return c.connectionService
	case "user_management":
		return c.managementService
	case "supervisor":
		return c.supervisorService
	default:
		return nil
	}
}

// GetDB 获取数据库连接
func (c *ServiceContainer) GetDB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
