package services

import (
	"time"

	"pso-monitor-service/models"

	"gorm.io/gorm"
)

// InterfaceStreamingRepository 推流会话存取接口
type InterfaceStreamingRepository interface {
	Create(session *models.StreamingSession) error
	FindActiveByUserID(userID uint) (*models.StreamingSession, error)
	StopActiveByUserID(userID uint, reason models.StreamingStopReason, at time.Time) (int64, error)
}

// StreamingRepository 基于GORM的推流会话存取实现
type StreamingRepository struct {
	DB *gorm.DB
}

// NewStreamingRepository 创建推流会话存取实现
func NewStreamingRepository(db *gorm.DB) InterfaceStreamingRepository {
	return &StreamingRepository{DB: db}
}

// Create 落库一条 Active 推流会话
func (r *StreamingRepository) Create(session *models.StreamingSession) error {
	session.Status = models.StreamingActive
	return r.DB.Create(session).Error
}

// FindActiveByUserID 查询某用户进行中的推流会话，无记录时返回 gorm.ErrRecordNotFound
func (r *StreamingRepository) FindActiveByUserID(userID uint) (*models.StreamingSession, error) {
	var session models.StreamingSession
	if err := r.DB.Where("user_id = ? AND status = ?", userID, models.StreamingActive).
		Order("started_at DESC").
		First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// StopActiveByUserID 关闭某用户全部进行中的推流会话，返回关闭数量
func (r *StreamingRepository) StopActiveByUserID(userID uint, reason models.StreamingStopReason, at time.Time) (int64, error) {
	result := r.DB.Model(&models.StreamingSession{}).
		Where("user_id = ? AND status = ?", userID, models.StreamingActive).
		Updates(map[string]interface{}{
			"status":      models.StreamingStopped,
			"stopped_at":  at,
			"stop_reason": reason,
		})
	return result.RowsAffected, result.Error
}
