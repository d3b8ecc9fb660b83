package services

import (
	"errors"
	"time"

	"pso-monitor-service/models"

	"gorm.io/gorm"
)

// InterfaceRecordingRepository 录像会话存取接口
type InterfaceRecordingRepository interface {
	CreateActive(session *models.RecordingSession) error
	FindByID(id uint) (*models.RecordingSession, error)
	FindActiveByRoom(roomName string) ([]models.RecordingSession, error)
	FindActiveBySubject(subjectID uint) ([]models.RecordingSession, error)
	FindByUser(userID uint) ([]models.RecordingSession, error)
	FindActive() ([]models.RecordingSession, error)
	Complete(id uint, stoppedAt time.Time, blobURL *string) error
	Fail(id uint, stoppedAt time.Time) error
	DeleteByID(id uint) error
}

// RecordingRepository 基于GORM的录像会话存取实现
type RecordingRepository struct {
	DB *gorm.DB
}

// NewRecordingRepository 创建录像会话存取实现
func NewRecordingRepository(db *gorm.DB) InterfaceRecordingRepository {
	return &RecordingRepository{DB: db}
}

// CreateActive 落库一条 Active 状态的录像会话
func (r *RecordingRepository) CreateActive(session *models.RecordingSession) error {
	session.Status = models.RecordingActive
	return r.DB.Create(session).Error
}

// FindByID 按ID查询录像会话
func (r *RecordingRepository) FindByID(id uint) (*models.RecordingSession, error) {
	var session models.RecordingSession
	if err := r.DB.First(&session, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordingNotFound
		}
		return nil, err
	}
	return &session, nil
}

// FindActiveByRoom 查询某房间所有进行中的录像会话
func (r *RecordingRepository) FindActiveByRoom(roomName string) ([]models.RecordingSession, error) {
	var sessions []models.RecordingSession
	if err := r.DB.Where("room_name = ? AND status = ?", roomName, models.RecordingActive).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// FindActiveBySubject 查询以某用户为被录像对象的进行中会话
func (r *RecordingRepository) FindActiveBySubject(subjectID uint) ([]models.RecordingSession, error) {
	var sessions []models.RecordingSession
	if err := r.DB.Where("subject_id = ? AND status = ?", subjectID, models.RecordingActive).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// FindByUser 查询某用户相关 (发起或被录) 的全部录像会话
func (r *RecordingRepository) FindByUser(userID uint) ([]models.RecordingSession, error) {
	var sessions []models.RecordingSession
	if err := r.DB.Where("initiator_id = ? OR subject_id = ?", userID, userID).
		Order("started_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// FindActive 查询全部进行中的录像会话
func (r *RecordingRepository) FindActive() ([]models.RecordingSession, error) {
	var sessions []models.RecordingSession
	if err := r.DB.Where("status = ?", models.RecordingActive).
		Order("started_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// Complete 置为 Completed 终态并记录停止时间与最终地址
// 状态条件保证终态不被改写，Active 是唯一可离开的状态
func (r *RecordingRepository) Complete(id uint, stoppedAt time.Time, blobURL *string) error {
	updates := map[string]interface{}{
		"status":     models.RecordingCompleted,
		"stopped_at": stoppedAt,
	}
	if blobURL != nil {
		updates["blob_url"] = *blobURL
	}
	return r.DB.Model(&models.RecordingSession{}).
		Where("id = ? AND status = ?", id, models.RecordingActive).
		Updates(updates).Error
}

// Fail 置为 Failed 终态，已到终态的行不动
func (r *RecordingRepository) Fail(id uint, stoppedAt time.Time) error {
	return r.DB.Model(&models.RecordingSession{}).
		Where("id = ? AND status = ?", id, models.RecordingActive).
		Updates(map[string]interface{}{
			"status":     models.RecordingFailed,
			"stopped_at": stoppedAt,
		}).Error
}

// DeleteByID 删除录像会话记录
func (r *RecordingRepository) DeleteByID(id uint) error {
	return r.DB.Delete(&models.RecordingSession{}, id).Error
}
