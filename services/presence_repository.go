package services

import (
	"errors"
	"time"

	"pso-monitor-service/models"

	"gorm.io/gorm"
)

// InterfacePresenceRepository 在线状态存取接口
type InterfacePresenceRepository interface {
	UpsertPresence(userID uint, status models.PresenceStatus, at time.Time) error
	FindByUserID(userID uint) (*models.PresenceRecord, error)
	OpenHistory(userID uint, at time.Time) error
	CloseOpenHistory(userID uint, at time.Time) error
	CountOpenHistories(userID uint) (int64, error)
}

// PresenceRepository 基于GORM的在线状态存取实现
type PresenceRepository struct {
	DB *gorm.DB
}

// NewPresenceRepository 创建在线状态存取实现
func NewPresenceRepository(db *gorm.DB) InterfacePresenceRepository {
	return &PresenceRepository{DB: db}
}

// UpsertPresence 覆盖式更新当前在线状态，每个用户只保留一行
func (r *PresenceRepository) UpsertPresence(userID uint, status models.PresenceStatus, at time.Time) error {
	var record models.PresenceRecord
	err := r.DB.Where("user_id = ?", userID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record = models.PresenceRecord{
			UserID:     userID,
			Status:     status,
			LastSeenAt: at,
		}
		// user_id 上有唯一索引，并发首次上线时靠约束兜底
		return r.DB.Create(&record).Error
	}
	if err != nil {
		return err
	}

	return r.DB.Model(&record).Updates(map[string]interface{}{
		"status":       status,
		"last_seen_at": at,
	}).Error
}

// FindByUserID 查询当前在线状态，无记录时返回 gorm.ErrRecordNotFound
func (r *PresenceRepository) FindByUserID(userID uint) (*models.PresenceRecord, error) {
	var record models.PresenceRecord
	if err := r.DB.Where("user_id = ?", userID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// OpenHistory 开启一条新的在线时段流水
func (r *PresenceRepository) OpenHistory(userID uint, at time.Time) error {
	history := models.PresenceHistory{
		UserID:    userID,
		EnteredAt: at,
	}
	return r.DB.Create(&history).Error
}

// CloseOpenHistory 闭合该用户所有未闭合的流水，无未闭合流水时不报错
func (r *PresenceRepository) CloseOpenHistory(userID uint, at time.Time) error {
	return r.DB.Model(&models.PresenceHistory{}).
		Where("user_id = ? AND exited_at IS NULL", userID).
		Update("exited_at", at).Error
}

// CountOpenHistories 统计未闭合流水数量
func (r *PresenceRepository) CountOpenHistories(userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&models.PresenceHistory{}).
		Where("user_id = ? AND exited_at IS NULL", userID).
		Count(&count).Error
	return count, err
}
