package services

import (
	"errors"
	"log"
	"time"

	"pso-monitor-service/models"

	"gorm.io/gorm"
)

// InterfacePresenceService 在线状态服务接口
type InterfacePresenceService interface {
	SetOnline(key UserKey) error
	SetOffline(key UserKey) error
	GetStatus(key UserKey) (models.PresenceStatus, error)
}

// PresenceService 在线状态服务实现
// 每次状态变更恰好发出一次广播，调用方不自行重试广播
type PresenceService struct {
	userRepo     InterfaceUserRepository
	presenceRepo InterfacePresenceRepository
	broadcast    InterfaceBroadcastService
}

// NewPresenceService 创建在线状态服务
func NewPresenceService(userRepo InterfaceUserRepository, presenceRepo InterfacePresenceRepository, broadcast InterfaceBroadcastService) InterfacePresenceService {
	return &PresenceService{
		userRepo:     userRepo,
		presenceRepo: presenceRepo,
		broadcast:    broadcast,
	}
}

// SetOnline 置为在线：覆盖当前记录、开启新时段流水并广播
func (s *PresenceService) SetOnline(key UserKey) error {
	user, err := resolveUser(s.userRepo, key)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := s.presenceRepo.UpsertPresence(user.ID, models.PresenceOnline, now); err != nil {
		return err
	}

	// 非正常断开后重连可能留下未闭合流水，先闭合再开新行，保证至多一行未闭合
	if err := s.presenceRepo.CloseOpenHistory(user.ID, now); err != nil {
		return err
	}
	if err := s.presenceRepo.OpenHistory(user.ID, now); err != nil {
		return err
	}

	log.Printf("[Presence] 用户 %s 上线", user.Email)
	return s.broadcastChange(user, models.PresenceOnline, now)
}

// SetOffline 置为离线：覆盖当前记录、闭合时段流水并广播
// 没有未闭合流水时闭合为空操作
func (s *PresenceService) SetOffline(key UserKey) error {
	user, err := resolveUser(s.userRepo, key)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := s.presenceRepo.UpsertPresence(user.ID, models.PresenceOffline, now); err != nil {
		return err
	}
	if err := s.presenceRepo.CloseOpenHistory(user.ID, now); err != nil {
		return err
	}

	log.Printf("[Presence] 用户 %s 下线", user.Email)
	return s.broadcastChange(user, models.PresenceOffline, now)
}

// GetStatus 查询当前在线状态，无记录时默认离线，不会自动创建记录
func (s *PresenceService) GetStatus(key UserKey) (models.PresenceStatus, error) {
	user, err := resolveUser(s.userRepo, key)
	if err != nil {
		return models.PresenceOffline, err
	}

	record, err := s.presenceRepo.FindByUserID(user.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.PresenceOffline, nil
	}
	if err != nil {
		return models.PresenceOffline, err
	}
	return record.Status, nil
}

// broadcastChange 发出一次状态变更广播
func (s *PresenceService) broadcastChange(user *models.User, status models.PresenceStatus, at time.Time) error {
	payload := PresenceBroadcast{
		Email:        user.Email,
		FullName:     user.FullName,
		Status:       status,
		LastSeenAt:   at,
		Role:         user.Role,
		SupervisorID: user.SupervisorID,
	}
	if user.Supervisor != nil {
		payload.SupervisorEmail = &user.Supervisor.Email
	}
	return s.broadcast.BroadcastPresence(payload)
}
