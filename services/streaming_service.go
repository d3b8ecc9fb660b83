package services

import (
	"errors"
	"log"
	"time"

	"pso-monitor-service/models"

	"gorm.io/gorm"
)

// InterfaceStreamingService 推流会话服务接口
type InterfaceStreamingService interface {
	Start(userID uint, at time.Time) error
	Stop(userID uint, reason models.StreamingStopReason, at time.Time) (int64, error)
	IsStreaming(userID uint) (bool, error)
}

// StreamingService 推流会话服务实现
type StreamingService struct {
	streamingRepo InterfaceStreamingRepository
}

// NewStreamingService 创建推流会话服务
func NewStreamingService(streamingRepo InterfaceStreamingRepository) InterfaceStreamingService {
	return &StreamingService{streamingRepo: streamingRepo}
}

// Start 开启推流会话，已有进行中的会话时复用
func (s *StreamingService) Start(userID uint, at time.Time) error {
	existing, err := s.streamingRepo.FindActiveByUserID(userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if existing != nil {
		log.Printf("[Streaming] 用户 %d 已有进行中的推流会话: %d", userID, existing.ID)
		return nil
	}

	session := &models.StreamingSession{
		UserID:    userID,
		StartedAt: at,
	}
	if err := s.streamingRepo.Create(session); err != nil {
		return err
	}

	log.Printf("[Streaming] 用户 %d 开始推流，会话: %d", userID, session.ID)
	return nil
}

// Stop 关闭该用户全部进行中的推流会话，返回关闭数量
func (s *StreamingService) Stop(userID uint, reason models.StreamingStopReason, at time.Time) (int64, error) {
	count, err := s.streamingRepo.StopActiveByUserID(userID, reason, at)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		log.Printf("[Streaming] 用户 %d 停止推流: %d 个会话, 原因=%s", userID, count, reason)
	}
	return count, nil
}

// IsStreaming 判断该用户是否在推流
func (s *StreamingService) IsStreaming(userID uint) (bool, error) {
	_, err := s.streamingRepo.FindActiveByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
