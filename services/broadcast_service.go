package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"pso-monitor-service/config"
	"pso-monitor-service/models"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// 广播频道常量
const (
	// ChannelPresence 在线状态变更频道
	ChannelPresence = "monitor/presence"

	// ChannelSupervisorChange 主管变更刷新频道
	ChannelSupervisorChange = "monitor/supervisor_change"

	// channelUserPrefix 按用户邮箱定向的消息频道前缀
	channelUserPrefix = "monitor/user/"
)

// PresenceBroadcast 在线状态广播载荷
type PresenceBroadcast struct {
	Email           string                `json:"email"`
	FullName        string                `json:"fullName"`
	Status          models.PresenceStatus `json:"status"`
	LastSeenAt      time.Time             `json:"lastSeenAt"`
	Role            models.Role           `json:"role"`
	SupervisorID    *uint                 `json:"supervisorId"`
	SupervisorEmail *string               `json:"supervisorEmail"`
}

// SupervisorChangeBroadcast 主管变更刷新广播载荷
type SupervisorChangeBroadcast struct {
	UserEmails              []string  `json:"userEmails"`
	UserNames               []string  `json:"userNames"`
	NewSupervisorEmail      *string   `json:"newSupervisorEmail"`
	NewSupervisorName       *string   `json:"newSupervisorName"`
	NewSupervisorExternalID *string   `json:"newSupervisorExternalId"`
	Timestamp               time.Time `json:"timestamp"`
}

// InterfaceBroadcastService 广播通道接口：向所有订阅方扇出状态变更
type InterfaceBroadcastService interface {
	BroadcastPresence(payload PresenceBroadcast) error
	BroadcastMessage(channelKey string, payload interface{}) error
	BroadcastSupervisorChange(payload SupervisorChangeBroadcast) error
	SyncAllUsersWithDatabase() error
}

// BroadcastService 基于 Redis 发布订阅的广播实现
type BroadcastService struct {
	Client       *redis.Client
	Ctx          context.Context
	userRepo     InterfaceUserRepository
	presenceRepo InterfacePresenceRepository
}

// NewBroadcastService 创建广播服务
func NewBroadcastService(cfg *config.Config, userRepo InterfaceUserRepository, presenceRepo InterfacePresenceRepository) *BroadcastService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &BroadcastService{
		Client:       client,
		Ctx:          context.Background(),
		userRepo:     userRepo,
		presenceRepo: presenceRepo,
	}
}

// publish 序列化并发布到指定频道
func (s *BroadcastService) publish(channel string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := s.Client.Publish(s.Ctx, channel, data).Err(); err != nil {
		return &ExternalServiceError{Service: "broadcast", Err: err}
	}
	return nil
}

// BroadcastPresence 广播一次在线状态变更
func (s *BroadcastService) BroadcastPresence(payload PresenceBroadcast) error {
	return s.publish(ChannelPresence, map[string]interface{}{
		"type":    "presence",
		"payload": payload,
	})
}

// BroadcastMessage 向某用户的定向频道广播消息
func (s *BroadcastService) BroadcastMessage(channelKey string, payload interface{}) error {
	return s.publish(channelUserPrefix+models.NormalizeEmail(channelKey), payload)
}

// BroadcastSupervisorChange 广播一次主管变更刷新事件
func (s *BroadcastService) BroadcastSupervisorChange(payload SupervisorChangeBroadcast) error {
	return s.publish(ChannelSupervisorChange, map[string]interface{}{
		"type":    "supervisor_change",
		"payload": payload,
	})
}

// SyncAllUsersWithDatabase 以数据库为准广播一次全量在线状态快照
// 连接/断开级联结束后调用，订阅方据此对齐本地视图
func (s *BroadcastService) SyncAllUsersWithDatabase() error {
	users, err := s.userRepo.FindByRolesWithSupervisor([]models.Role{
		models.RolePSO,
		models.RoleSupervisor,
		models.RoleAdmin,
		models.RoleSuperAdmin,
	})
	if err != nil {
		return err
	}

	snapshot := make([]PresenceBroadcast, 0, len(users))
	for i := range users {
		user := &users[i]

		status := models.PresenceOffline
		lastSeen := time.Time{}
		record, err := s.presenceRepo.FindByUserID(user.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if record != nil {
			status = record.Status
			lastSeen = record.LastSeenAt
		}

		entry := PresenceBroadcast{
			Email:        user.Email,
			FullName:     user.FullName,
			Status:       status,
			LastSeenAt:   lastSeen,
			Role:         user.Role,
			SupervisorID: user.SupervisorID,
		}
		if user.Supervisor != nil {
			entry.SupervisorEmail = &user.Supervisor.Email
		}
		snapshot = append(snapshot, entry)
	}

	return s.publish(ChannelPresence, map[string]interface{}{
		"type":    "presence_sync",
		"payload": snapshot,
	})
}
